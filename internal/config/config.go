// Package config defines the configuration contract and handles loading and validating environment configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	// Canonical environment variable keys.
	KeyBotToken      = "BOT_TOKEN"
	KeyAPIKey        = "API_KEY"
	KeyAPIBaseURL    = "API_BASE_URL"
	KeyLogLevel      = "LOG_LEVEL"
	KeyAppEnv        = "APP_ENV"
	KeyWeatherAPIURL = "WEATHER_API_URL"
	KeyQuoteAPIURL   = "QUOTE_API_URL"
	KeyCryptoAPIURL  = "CRYPTO_API_URL"
	KeyMongoURI      = "MONGO_URI"
	KeyMongoDB       = "MONGO_DB"
	KeyHTTPPort      = "HTTP_PORT"
	KeyStatsSchedule = "STATS_SCHEDULE"

	// Allowed environment values.
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// Defaults for optional settings.
	DefaultAppEnv        = EnvDevelopment
	DefaultLogLevel      = "info"
	DefaultAPIBaseURL    = "https://api.example.com"
	DefaultWeatherAPIURL = "https://wttr.in"
	DefaultQuoteAPIURL   = "https://api.quotable.io"
	DefaultCryptoAPIURL  = "https://api.coingecko.com/api/v3"
	DefaultMongoDB       = "tg_assistant_bot"
	DefaultHTTPPort      = 8080
	DefaultStatsSchedule = "0 * * * *"
)

// VarSpec describes a single configuration key.
type VarSpec struct {
	Key         string // environment variable name
	Example     string // human-friendly sample value
	Required    bool   // whether the bot must refuse to start without this value
	Default     string // default when unset (empty when required)
	Description string // what the variable controls
	Notes       string // extra guidance or policies
}

// Contract enumerates the authoritative configuration keys for the bot.
// .env loading is only permitted when APP_ENV=development; production must rely
// on environment variables supplied by the runtime.
var Contract = []VarSpec{
	{
		Key:         KeyBotToken,
		Example:     "123:ABC",
		Required:    true,
		Description: "Telegram Bot Token issued by BotFather.",
	},
	{
		Key:         KeyAPIKey,
		Description: "Bearer token sent by the generic API client.",
		Notes:       "The Authorization header is omitted when empty.",
	},
	{
		Key:         KeyAPIBaseURL,
		Example:     DefaultAPIBaseURL,
		Default:     DefaultAPIBaseURL,
		Description: "Base URL of the generic API client.",
	},
	{
		Key:         KeyLogLevel,
		Example:     DefaultLogLevel,
		Default:     DefaultLogLevel,
		Description: "Minimum log level: error, warn, info or debug.",
	},
	{
		Key:         KeyAppEnv,
		Example:     EnvDevelopment + " / " + EnvProduction,
		Default:     DefaultAppEnv,
		Description: "Runtime environment; controls log format and dotenv usage.",
		Notes:       "Load .env files only when APP_ENV=" + EnvDevelopment + ".",
	},
	{
		Key:         KeyWeatherAPIURL,
		Example:     DefaultWeatherAPIURL,
		Default:     DefaultWeatherAPIURL,
		Description: "Weather provider base URL (wttr.in compatible).",
	},
	{
		Key:         KeyQuoteAPIURL,
		Example:     DefaultQuoteAPIURL,
		Default:     DefaultQuoteAPIURL,
		Description: "Quote provider base URL (quotable compatible).",
	},
	{
		Key:         KeyCryptoAPIURL,
		Example:     DefaultCryptoAPIURL,
		Default:     DefaultCryptoAPIURL,
		Description: "Price provider base URL (CoinGecko compatible).",
	},
	{
		Key:         KeyMongoURI,
		Example:     "mongodb://localhost:27017",
		Description: "MongoDB connection string for the user registry.",
		Notes:       "The registry is disabled when empty.",
	},
	{
		Key:         KeyMongoDB,
		Example:     DefaultMongoDB,
		Default:     DefaultMongoDB,
		Description: "MongoDB database name.",
	},
	{
		Key:         KeyHTTPPort,
		Example:     strconv.Itoa(DefaultHTTPPort),
		Default:     strconv.Itoa(DefaultHTTPPort),
		Description: "HTTP health/diagnostics port.",
	},
	{
		Key:         KeyStatsSchedule,
		Example:     DefaultStatsSchedule,
		Default:     DefaultStatsSchedule,
		Description: "Cron expression (UTC, five fields) for the registry stats log job.",
		Notes:       "Only scheduled when the registry is enabled.",
	},
}

// Config mirrors resolved configuration values after loading.
type Config struct {
	BotToken      string `validate:"required"`
	APIKey        string
	APIBaseURL    string `validate:"required,url"`
	LogLevel      string `validate:"required,oneof=error warn info debug"`
	AppEnv        string `validate:"required,oneof=development production"`
	WeatherAPIURL string `validate:"required,url"`
	QuoteAPIURL   string `validate:"required,url"`
	CryptoAPIURL  string `validate:"required,url"`
	MongoURI      string `validate:"omitempty,startswith=mongodb://|startswith=mongodb+srv://"`
	MongoDB       string `validate:"required"`
	HTTPPort      int    `validate:"gt=0,lt=65536"`
	StatsSchedule string `validate:"required"`
}

var validate = validator.New()

// normalizeLogLevel lower-cases value and maps the "warning" alias to warn.
func normalizeLogLevel(value string) string {
	level := strings.ToLower(strings.TrimSpace(value))
	if level == "warning" {
		return "warn"
	}
	return level
}

// Load resolves configuration from the environment (with optional dotenv in development).
func Load() (Config, error) {
	appEnv, err := resolveAppEnv()
	if err != nil {
		return Config{}, err
	}

	if err := loadDotEnv(appEnv); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppEnv:        firstNonEmpty(normalizeEnv(os.Getenv(KeyAppEnv)), appEnv),
		BotToken:      strings.TrimSpace(os.Getenv(KeyBotToken)),
		APIKey:        strings.TrimSpace(os.Getenv(KeyAPIKey)),
		APIBaseURL:    firstNonEmpty(os.Getenv(KeyAPIBaseURL), DefaultAPIBaseURL),
		LogLevel:      normalizeLogLevel(firstNonEmpty(os.Getenv(KeyLogLevel), DefaultLogLevel)),
		WeatherAPIURL: strings.TrimRight(firstNonEmpty(os.Getenv(KeyWeatherAPIURL), DefaultWeatherAPIURL), "/"),
		QuoteAPIURL:   strings.TrimRight(firstNonEmpty(os.Getenv(KeyQuoteAPIURL), DefaultQuoteAPIURL), "/"),
		CryptoAPIURL:  strings.TrimRight(firstNonEmpty(os.Getenv(KeyCryptoAPIURL), DefaultCryptoAPIURL), "/"),
		MongoURI:      strings.TrimSpace(os.Getenv(KeyMongoURI)),
		MongoDB:       firstNonEmpty(os.Getenv(KeyMongoDB), DefaultMongoDB),
		HTTPPort:      DefaultHTTPPort,
		StatsSchedule: firstNonEmpty(os.Getenv(KeyStatsSchedule), DefaultStatsSchedule),
	}

	if err := validateAppEnv(cfg.AppEnv); err != nil {
		return Config{}, err
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("missing required environment variable(s): %s", KeyBotToken)
	}

	httpPortRaw := strings.TrimSpace(os.Getenv(KeyHTTPPort))
	if httpPortRaw != "" {
		port, parseErr := strconv.Atoi(httpPortRaw)
		if parseErr != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", KeyHTTPPort, parseErr)
		}
		cfg.HTTPPort = port
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field-level constraints and reports the offending keys by
// their environment variable names.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("invalid %s (%s)", envKeyForField(fe.Field()), fe.Tag()))
	}

	return errors.New(strings.Join(problems, "; "))
}

// IsDevelopment reports if APP_ENV is development.
func (c Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// RegistryEnabled reports whether a MongoDB user registry is configured.
func (c Config) RegistryEnabled() bool {
	return c.MongoURI != ""
}

var fieldKeys = map[string]string{
	"BotToken":      KeyBotToken,
	"APIKey":        KeyAPIKey,
	"APIBaseURL":    KeyAPIBaseURL,
	"LogLevel":      KeyLogLevel,
	"AppEnv":        KeyAppEnv,
	"WeatherAPIURL": KeyWeatherAPIURL,
	"QuoteAPIURL":   KeyQuoteAPIURL,
	"CryptoAPIURL":  KeyCryptoAPIURL,
	"MongoURI":      KeyMongoURI,
	"MongoDB":       KeyMongoDB,
	"HTTPPort":      KeyHTTPPort,
	"StatsSchedule": KeyStatsSchedule,
}

func envKeyForField(field string) string {
	if key, ok := fieldKeys[field]; ok {
		return key
	}
	return field
}

func resolveAppEnv() (string, error) {
	if explicit := normalizeEnv(os.Getenv(KeyAppEnv)); explicit != "" {
		return explicit, nil
	}

	dotEnvValues, err := godotenv.Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultAppEnv, nil
		}
		return "", fmt.Errorf("read .env: %w", err)
	}

	if envFromFile := normalizeEnv(dotEnvValues[KeyAppEnv]); envFromFile != "" {
		return envFromFile, nil
	}

	return DefaultAppEnv, nil
}

func loadDotEnv(appEnv string) error {
	if appEnv != EnvDevelopment {
		return nil
	}

	if err := godotenv.Load(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load .env: %w", err)
	}

	return nil
}

func validateAppEnv(appEnv string) error {
	if appEnv == EnvDevelopment || appEnv == EnvProduction {
		return nil
	}

	return fmt.Errorf("invalid %s: must be %q or %q", KeyAppEnv, EnvDevelopment, EnvProduction)
}

func normalizeEnv(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func firstNonEmpty(values ...string) string {
	for _, val := range values {
		if strings.TrimSpace(val) != "" {
			return strings.TrimSpace(val)
		}
	}
	return ""
}
