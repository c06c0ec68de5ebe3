package config

import (
	"fmt"
	"net/url"
	"strings"
)

const redactedSuffix = "...redacted"

// FormatRedacted renders the resolved configuration with secrets masked, for
// the --config-only diagnostic.
func FormatRedacted(cfg Config) string {
	lines := []string{
		"bot_token: " + maskSecret(cfg.BotToken),
		"api_key: " + maskSecret(cfg.APIKey),
		"api_base_url: " + cfg.APIBaseURL,
		"weather_api_url: " + cfg.WeatherAPIURL,
		"quote_api_url: " + cfg.QuoteAPIURL,
		"crypto_api_url: " + cfg.CryptoAPIURL,
		"mongo_uri: " + redactURI(cfg.MongoURI),
		"mongo_db: " + cfg.MongoDB,
		"app_env: " + cfg.AppEnv,
		"log_level: " + cfg.LogLevel,
		fmt.Sprintf("http_port: %d", cfg.HTTPPort),
		"stats_schedule: " + cfg.StatsSchedule,
	}

	return strings.Join(lines, "\n")
}

func maskSecret(value string) string {
	if value == "" {
		return "(unset)"
	}
	if len(value) <= 4 {
		return redactedSuffix
	}

	return value[:4] + redactedSuffix
}

func redactURI(raw string) string {
	if raw == "" {
		return "(unset)"
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return redactedSuffix
	}
	parsed.User = nil

	return parsed.String()
}
