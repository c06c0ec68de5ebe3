package telegram

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"tg_assistant_bot/internal/logging"
)

// Category is the result of classifying a free-text message.
type Category int

const (
	CategoryDefault Category = iota
	CategoryGreeting
	CategoryThanks
	CategoryQuestion
)

func (c Category) String() string {
	switch c {
	case CategoryGreeting:
		return "greeting"
	case CategoryThanks:
		return "thanks"
	case CategoryQuestion:
		return "question"
	default:
		return "default"
	}
}

var (
	greetingKeywords = []string{"hi", "hello", "hey", "good morning", "good afternoon", "good evening", "greetings"}
	thanksKeywords   = []string{"thank", "thanks", "thx", "appreciate"}
	questionKeywords = []string{"what", "how", "when", "where", "why", "who", "which", "?"}
)

const (
	callbackHelp = "help"

	thanksReply = "You're welcome! 😊\n\nIs there anything else I can help you with?"

	questionReply = "I'm here to help! 🤔\n\n" +
		"You can use commands like:\n" +
		"• /quote - Get a random quote\n" +
		"• /crypto bitcoin - Get crypto prices\n" +
		"• /weather London - Get weather info\n\n" +
		"Or use /help for more options!"

	callbackHelpReply    = "Use /help to see all available commands!"
	callbackUnknownReply = "Unknown action. Please try again."
)

// Classify matches text case-insensitively against the keyword lists.
// Greeting wins over thanks, which wins over question. Keywords match as
// substrings, so "this" counts as a greeting.
func Classify(text string) Category {
	lower := strings.ToLower(text)

	switch {
	case containsAny(lower, greetingKeywords):
		return CategoryGreeting
	case containsAny(lower, thanksKeywords):
		return CategoryThanks
	case containsAny(lower, questionKeywords) || strings.HasSuffix(strings.TrimSpace(lower), "?"):
		return CategoryQuestion
	default:
		return CategoryDefault
	}
}

// TextMessage answers a free-text message with the canned reply for its category.
func (h *Handlers) TextMessage(ctx context.Context, s Sender, update *models.Update) error {
	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}

	category := Classify(msg.Text)

	h.logger.WithFields(logging.Fields{
		"event":    "text_message",
		"user_id":  userID(msg.From),
		"chat_id":  msg.Chat.ID,
		"category": category.String(),
	}).Infof("Message from %s (%d): %s", displayName(msg.From), userID(msg.From), strings.ToLower(msg.Text))

	if err := sendText(ctx, s, msg.Chat.ID, replyFor(category, msg)); err != nil {
		return fmt.Errorf("send %s reply: %w", category, err)
	}

	return nil
}

// CallbackQuery acknowledges a button press and replies according to its payload.
func (h *Handlers) CallbackQuery(ctx context.Context, s Sender, update *models.Update) error {
	query := update.CallbackQuery
	if query == nil {
		return nil
	}

	if _, err := s.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{CallbackQueryID: query.ID}); err != nil {
		return fmt.Errorf("answer callback query: %w", err)
	}

	chatID := messageChatID(query.Message)
	if chatID == 0 {
		chatID = query.From.ID
	}

	text := callbackUnknownReply
	if query.Data == callbackHelp {
		text = callbackHelpReply
	}

	h.logger.WithFields(logging.Fields{
		"event":   "callback_query",
		"user_id": query.From.ID,
		"chat_id": chatID,
		"data":    query.Data,
	}).Debug("callback query handled")

	if err := sendText(ctx, s, chatID, text); err != nil {
		return fmt.Errorf("send callback reply: %w", err)
	}

	return nil
}

func replyFor(category Category, msg *models.Message) string {
	switch category {
	case CategoryGreeting:
		return fmt.Sprintf("Hello %s! 👋\n\nHow can I help you today? Use /help to see available commands.", firstName(msg.From))
	case CategoryThanks:
		return thanksReply
	case CategoryQuestion:
		return questionReply
	default:
		return fmt.Sprintf("I received your message: \"%s\"\n\nI can help you with various tasks. Use /help to see all available commands!", msg.Text)
	}
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

func firstName(user *models.User) string {
	if user == nil {
		return "there"
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	if user.Username != "" {
		return user.Username
	}
	return "there"
}

func displayName(user *models.User) string {
	if user == nil {
		return "unknown"
	}
	if user.Username != "" {
		return user.Username
	}
	if user.FirstName != "" {
		return user.FirstName
	}
	return "unknown"
}
