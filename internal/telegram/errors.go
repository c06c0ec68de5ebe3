package telegram

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/logging"
)

const genericErrorMessage = "Sorry, something went wrong. Please try again later."

// Sender is the part of *bot.Bot that handlers reply through.
type Sender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *bot.AnswerCallbackQueryParams) (bool, error)
}

// HandlerFunc is an update handler that may fail. Wrap turns it into a
// bot.HandlerFunc that never lets the failure reach the dispatch loop.
type HandlerFunc func(ctx context.Context, s Sender, update *models.Update) error

// ErrorReporter turns handler failures into a log line and a reply.
type ErrorReporter struct {
	logger *logrus.Entry
}

// NewErrorReporter constructs an ErrorReporter.
func NewErrorReporter(logger *logrus.Entry) *ErrorReporter {
	if logger == nil {
		logger = logging.Logger()
	}

	return &ErrorReporter{logger: logger}
}

// HandleError logs err (message only) and sends customMessage, or a generic
// apology when it is empty, to chatID. A failed send is logged and dropped.
func (r *ErrorReporter) HandleError(ctx context.Context, s Sender, chatID int64, err error, customMessage string) {
	errMessage := "Unknown error"
	if err != nil {
		errMessage = err.Error()
	}

	r.logger.WithFields(logging.Fields{
		"event":   "handler_error",
		"chat_id": chatID,
	}).Errorf("Error occurred: %s", errMessage)

	if s == nil || chatID == 0 {
		return
	}

	text := customMessage
	if text == "" {
		text = genericErrorMessage
	}

	if _, sendErr := s.SendMessage(ctx, &bot.SendMessageParams{ChatID: chatID, Text: text}); sendErr != nil {
		r.logger.WithFields(logging.Fields{
			"event":   "error_reply_failed",
			"chat_id": chatID,
		}).Errorf("Failed to send error message: %v", sendErr)
	}
}

// Wrap adapts h to the go-telegram/bot handler signature. Returned errors and
// panics are funneled into HandleError.
func (r *ErrorReporter) Wrap(h HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		var s Sender
		if b != nil {
			s = b
		}
		r.run(ctx, s, update, h)
	}
}

func (r *ErrorReporter) run(ctx context.Context, s Sender, update *models.Update, h HandlerFunc) {
	defer func() {
		if rec := recover(); rec != nil {
			r.HandleError(ctx, s, updateChatID(update), fmt.Errorf("handler panic: %v", rec), "")
		}
	}()

	if err := h(ctx, s, update); err != nil {
		r.HandleError(ctx, s, updateChatID(update), err, "")
	}
}

func updateChatID(update *models.Update) int64 {
	if update == nil {
		return 0
	}

	meta := extractUpdateMeta(update)
	if meta.chatID == 0 {
		// Private chats share the sender's id.
		return meta.userID
	}
	return meta.chatID
}
