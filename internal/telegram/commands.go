package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"tg_assistant_bot/internal/api"
	"tg_assistant_bot/internal/logging"
)

const (
	defaultCryptoSymbol = "bitcoin"
	defaultWeatherCity  = "London"

	quoteFallback   = "Sorry, I couldn't fetch a quote right now. Please try again later."
	cryptoFallback  = "Sorry, I couldn't fetch the cryptocurrency price. Please check the symbol and try again."
	weatherFallback = "Sorry, I couldn't fetch weather data for that location. Please try again with a valid city name."

	botVersion = "1.0.0"

	activeWindow = 24 * time.Hour
)

const welcomeMessage = `🤖 *Welcome to the Telegram Bot!*

I can help you with various tasks:
• Get real-time data from APIs
• Answer common questions
• Provide automated responses

Use /help to see all available commands.`

const helpMessage = `📚 *Available Commands:*

/start - Start the bot
/help - Show this help message
/quote - Get a random inspirational quote
/crypto <symbol> - Get cryptocurrency price (e.g., /crypto bitcoin)
/weather <city> - Get weather information (e.g., /weather London)
/info - Get bot information

You can also send me a message and I'll respond automatically!`

const infoMessage = `ℹ️ *Bot Information*

🤖 *Version:* ` + botVersion + `
📅 *Status:* Online
🔧 *Features:*
• Custom commands
• Automated responses
• External API integration
• Real-time data fetching

Built with Go and go-telegram/bot`

var pricePrinter = message.NewPrinter(language.English)

// Lookup is the set of provider lookups the commands depend on.
type Lookup interface {
	Weather(ctx context.Context, city string) (api.Weather, error)
	RandomQuote(ctx context.Context) (api.Quote, error)
	CryptoPrice(ctx context.Context, symbol string) (api.CryptoPrices, error)
}

// UserCounter reports how many users the registry has seen.
type UserCounter interface {
	CountUsers(ctx context.Context) (int64, error)
	CountActiveSince(ctx context.Context, since time.Time) (int64, error)
}

// Handlers groups the command, text and callback handlers. Its fields are set
// once at construction and only read afterwards.
type Handlers struct {
	lookup Lookup
	errors *ErrorReporter
	logger *logrus.Entry
	users  UserCounter
}

// HandlerDeps carries the collaborators of Handlers.
type HandlerDeps struct {
	Lookup Lookup
	Errors *ErrorReporter
	Logger *logrus.Entry
	// Users is optional; /info omits the user count when nil.
	Users UserCounter
}

// NewHandlers constructs Handlers from deps.
func NewHandlers(deps HandlerDeps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Logger()
	}
	reporter := deps.Errors
	if reporter == nil {
		reporter = NewErrorReporter(logger)
	}

	return &Handlers{
		lookup: deps.Lookup,
		errors: reporter,
		logger: logger,
		users:  deps.Users,
	}
}

// Start sends the welcome message.
func (h *Handlers) Start(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	if err := sendMarkdown(ctx, s, msg.Chat.ID, welcomeMessage); err != nil {
		return fmt.Errorf("send welcome: %w", err)
	}

	h.logFor(msg, "command_start").Infof("User %d started the bot", userID(msg.From))
	return nil
}

// Help sends the command list.
func (h *Handlers) Help(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	if err := sendMarkdown(ctx, s, msg.Chat.ID, helpMessage); err != nil {
		return fmt.Errorf("send help: %w", err)
	}

	return nil
}

// Quote replies with a random quote.
func (h *Handlers) Quote(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}
	chatID := msg.Chat.ID

	if err := sendText(ctx, s, chatID, "📖 Fetching a quote for you..."); err != nil {
		return h.fail(ctx, s, chatID, err, quoteFallback)
	}

	quote, err := h.lookup.RandomQuote(ctx)
	if err != nil {
		return h.fail(ctx, s, chatID, err, quoteFallback)
	}

	text := fmt.Sprintf("💬 *%s*\n\n\"%s\"", boldSafe(quote.Author), escapeMarkdown(quote.Content))
	if err := sendMarkdown(ctx, s, chatID, text); err != nil {
		return h.fail(ctx, s, chatID, err, quoteFallback)
	}

	h.logFor(msg, "command_quote").Infof("Quote sent to user %d", userID(msg.From))
	return nil
}

// Crypto replies with the USD price of the coin id given as first argument.
func (h *Handlers) Crypto(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}
	chatID := msg.Chat.ID

	symbol := defaultCryptoSymbol
	if args := commandArgs(msg.Text); len(args) > 0 {
		symbol = strings.ToLower(args[0])
	}

	if err := sendText(ctx, s, chatID, fmt.Sprintf("💰 Fetching %s price...", symbol)); err != nil {
		return h.fail(ctx, s, chatID, err, cryptoFallback)
	}

	notFound := fmt.Sprintf("Sorry, I couldn't find price data for %s.", symbol)

	prices, err := h.lookup.CryptoPrice(ctx, symbol)
	switch {
	case errors.Is(err, api.ErrNotFound):
		if err := sendText(ctx, s, chatID, notFound); err != nil {
			return h.fail(ctx, s, chatID, err, cryptoFallback)
		}
	case err != nil:
		return h.fail(ctx, s, chatID, err, cryptoFallback)
	default:
		text := notFound
		send := sendText
		// A zero price is treated as missing data.
		if price, ok := prices.Price(symbol, api.QuoteCurrency); ok && price > 0 {
			text = fmt.Sprintf("💵 *%s*\n\nPrice: $%s", strings.ToUpper(symbol), formatPrice(price))
			send = sendMarkdown
		}
		if err := send(ctx, s, chatID, text); err != nil {
			return h.fail(ctx, s, chatID, err, cryptoFallback)
		}
	}

	h.logFor(msg, "command_crypto").WithField("symbol", symbol).Infof("Crypto price sent to user %d for %s", userID(msg.From), symbol)
	return nil
}

// Weather replies with current conditions for the city given as arguments.
func (h *Handlers) Weather(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}
	chatID := msg.Chat.ID

	city := defaultWeatherCity
	if args := commandArgs(msg.Text); len(args) > 0 {
		city = strings.Join(args, " ")
	}

	if err := sendText(ctx, s, chatID, fmt.Sprintf("🌤️ Fetching weather for %s...", city)); err != nil {
		return h.fail(ctx, s, chatID, err, weatherFallback)
	}

	weather, err := h.lookup.Weather(ctx, city)
	if err != nil {
		fallback := api.UserMessage(err)
		if fallback == "" {
			fallback = weatherFallback
		}
		return h.fail(ctx, s, chatID, err, fallback)
	}

	if err := sendMarkdown(ctx, s, chatID, formatWeather(weather)); err != nil {
		return h.fail(ctx, s, chatID, err, weatherFallback)
	}

	h.logFor(msg, "command_weather").WithField("city", city).Infof("Weather sent to user %d for %s", userID(msg.From), city)
	return nil
}

// Info sends static bot information, plus the known-user count when a
// registry is configured.
func (h *Handlers) Info(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil {
		return nil
	}

	text := infoMessage
	if h.users != nil {
		if line, err := h.userStats(ctx); err != nil {
			h.logFor(msg, "command_info").WithError(err).Warn("failed to count users")
		} else {
			text += "\n\n" + line
		}
	}

	if err := sendMarkdown(ctx, s, msg.Chat.ID, text); err != nil {
		return fmt.Errorf("send info: %w", err)
	}

	return nil
}

func (h *Handlers) userStats(ctx context.Context) (string, error) {
	total, err := h.users.CountUsers(ctx)
	if err != nil {
		return "", err
	}
	active, err := h.users.CountActiveSince(ctx, time.Now().Add(-activeWindow))
	if err != nil {
		return "", err
	}

	return pricePrinter.Sprintf("👥 *Users:* %d (%d active today)", total, active), nil
}

// fail reports err with a command-specific message and marks it handled.
func (h *Handlers) fail(ctx context.Context, s Sender, chatID int64, err error, userMessage string) error {
	h.errors.HandleError(ctx, s, chatID, err, userMessage)
	return nil
}

func (h *Handlers) logFor(msg *models.Message, event string) *logrus.Entry {
	return h.logger.WithFields(logging.Fields{
		"event":   event,
		"user_id": userID(msg.From),
		"chat_id": msg.Chat.ID,
	})
}

func formatWeather(w api.Weather) string {
	return fmt.Sprintf(`🌡️ *Weather in %s, %s*

🌡️ Temperature: %d°C
🤔 Feels like: %d°C
☁️ Condition: %s
💧 Humidity: %d%%
💨 Wind: %d km/h`,
		w.Location, w.Country,
		w.TemperatureC,
		w.FeelsLikeC,
		w.Description,
		w.HumidityPercent,
		w.WindSpeedKmph,
	)
}

// formatPrice groups thousands and keeps at most three fraction digits.
func formatPrice(price float64) string {
	return pricePrinter.Sprint(number.Decimal(price, number.MaxFractionDigits(3)))
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "`", "\\`", "[", `\[`)

// escapeMarkdown escapes legacy Markdown markers in text placed outside an entity.
func escapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// boldSafe drops asterisks from text placed inside a *bold* entity, where
// escapes are not honored and an asterisk would close the entity early.
func boldSafe(text string) string {
	return strings.ReplaceAll(text, "*", "")
}

// commandArgs returns the whitespace-separated tokens after the command word.
func commandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return nil
	}
	return fields[1:]
}

func sendText(ctx context.Context, s Sender, chatID int64, text string) error {
	_, err := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text})
	return err
}

func sendMarkdown(ctx context.Context, s Sender, chatID int64, text string) error {
	_, err := s.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:    chatID,
		Text:      text,
		ParseMode: models.ParseModeMarkdownV1,
	})
	return err
}
