// Package telegram hosts the Telegram client, routing, and handlers.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/config"
	"tg_assistant_bot/internal/feature/user"
	"tg_assistant_bot/internal/logging"
)

type botRunner interface {
	Start(ctx context.Context)
	RegisterHandler(handlerType bot.HandlerType, pattern string, matchType bot.MatchType, f bot.HandlerFunc, m ...bot.Middleware) string
	RegisterHandlerMatchFunc(matchFunc bot.MatchFunc, f bot.HandlerFunc, m ...bot.Middleware) string
}

// UserRegistrar records the sender of an update.
type UserRegistrar interface {
	EnsureUser(ctx context.Context, profile user.Profile) (bool, error)
}

var (
	defaultAllowedUpdates = bot.AllowedUpdates{
		"message",
		"edited_message",
		"callback_query",
	}

	createBot = func(token string, options ...bot.Option) (botRunner, error) {
		return bot.New(token, options...)
	}
)

// Commands lists the slash commands in registration order.
var Commands = []string{"start", "help", "quote", "crypto", "weather", "info"}

// Client wraps the Telegram bot instance and logging dependencies.
type Client struct {
	bot    botRunner
	logger *logrus.Entry
}

type clientOptions struct {
	registrar UserRegistrar
}

// Option customizes NewClient.
type Option func(*clientOptions)

// WithUserRegistrar records every update's sender through r.
func WithUserRegistrar(r UserRegistrar) Option {
	return func(o *clientOptions) {
		o.registrar = r
	}
}

// NewClient initializes the Telegram bot with long polling and registers the
// command, text and callback handlers. Text messages that are not a known
// command fall through to the default handler.
func NewClient(cfg config.Config, logger *logrus.Entry, handlers *Handlers, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.BotToken) == "" {
		return nil, errors.New("telegram token is required")
	}
	if handlers == nil {
		return nil, errors.New("handlers are required")
	}
	if logger == nil {
		logger = logging.Logger()
	}

	var o clientOptions
	for _, opt := range opts {
		opt(&o)
	}

	middlewares := []bot.Middleware{logUpdates(logger)}
	if o.registrar != nil {
		middlewares = append(middlewares, trackUsers(o.registrar, logger))
	}

	tgBot, err := createBot(cfg.BotToken,
		bot.WithAllowedUpdates(defaultAllowedUpdates),
		bot.WithMiddlewares(middlewares...),
		bot.WithDefaultHandler(defaultHandler(handlers, logger)),
		bot.WithErrorsHandler(errorHandler(logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot client: %w", err)
	}

	registerHandlers(tgBot, handlers)
	logger.WithFields(logging.Fields{
		"event":    "handlers_registered",
		"commands": Commands,
	}).Info("Commands registered successfully")

	return &Client{
		bot:    tgBot,
		logger: logger,
	}, nil
}

func registerHandlers(b botRunner, h *Handlers) {
	routes := map[string]HandlerFunc{
		"start":   h.Start,
		"help":    h.Help,
		"quote":   h.Quote,
		"crypto":  h.Crypto,
		"weather": h.Weather,
		"info":    h.Info,
	}

	for _, name := range Commands {
		b.RegisterHandlerMatchFunc(matchCommand(name), h.errors.Wrap(routes[name]))
	}

	b.RegisterHandler(bot.HandlerTypeCallbackQueryData, "", bot.MatchTypePrefix, h.errors.Wrap(h.CallbackQuery))
}

// matchCommand matches messages that open with /name, with or without the
// @botname suffix Telegram adds in group chats.
func matchCommand(name string) bot.MatchFunc {
	return func(update *models.Update) bool {
		if update == nil || update.Message == nil {
			return false
		}
		msg := update.Message

		startsWithCommand := false
		for _, e := range msg.Entities {
			if e.Type == models.MessageEntityTypeBotCommand && e.Offset == 0 {
				startsWithCommand = true
				break
			}
		}
		if !startsWithCommand {
			return false
		}

		fields := strings.Fields(msg.Text)
		if len(fields) == 0 {
			return false
		}
		command, _, _ := strings.Cut(strings.TrimPrefix(fields[0], "/"), "@")
		return command == name
	}
}

// Start begins receiving updates via long polling until the context is canceled.
func (c *Client) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger.WithFields(logging.Fields{
		"event":           "telegram_listen",
		"allowed_updates": defaultAllowedUpdates,
	}).Info("starting telegram long polling")

	c.bot.Start(ctx)

	c.logger.WithField("event", "telegram_stopped").Info("telegram polling stopped")
}

type updateMeta struct {
	userID     int64
	chatID     int64
	text       string
	updateType string
	username   string
	firstName  string
}

// defaultHandler receives every update no registered handler matched: plain
// text goes to the free-text responder, everything else is only logged.
func defaultHandler(h *Handlers, logger *logrus.Entry) bot.HandlerFunc {
	if logger == nil {
		logger = logging.Logger()
	}

	text := h.errors.Wrap(h.TextMessage)

	return func(ctx context.Context, b *bot.Bot, update *models.Update) {
		if update == nil {
			return
		}

		if update.Message != nil && strings.TrimSpace(update.Message.Text) != "" {
			text(ctx, b, update)
			return
		}

		meta := extractUpdateMeta(update)

		fields := logging.Fields{
			"event":       "telegram_update_ignored",
			"update_type": meta.updateType,
		}
		if meta.userID != 0 {
			fields["user_id"] = meta.userID
		}
		if meta.chatID != 0 {
			fields["chat_id"] = meta.chatID
		}

		logger.WithFields(fields).Debug("telegram update ignored")
	}
}

// logUpdates emits one debug line per inbound update.
func logUpdates(logger *logrus.Entry) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update != nil {
				meta := extractUpdateMeta(update)
				fields := logging.Fields{
					"event":       "telegram_update",
					"update_type": meta.updateType,
				}
				if meta.text != "" {
					fields["text"] = meta.text
				}
				if meta.userID != 0 {
					fields["user_id"] = meta.userID
				}
				if meta.chatID != 0 {
					fields["chat_id"] = meta.chatID
				}
				logger.WithFields(fields).Debug("Update received")
			}

			next(ctx, b, update)
		}
	}
}

// trackUsers records the sender before handing the update on. Registry
// failures are logged and never block the reply.
func trackUsers(registrar UserRegistrar, logger *logrus.Entry) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			if update != nil {
				meta := extractUpdateMeta(update)
				if meta.userID != 0 {
					profile := user.Profile{
						UserID:    meta.userID,
						Username:  meta.username,
						FirstName: meta.firstName,
					}
					if _, err := registrar.EnsureUser(ctx, profile); err != nil {
						logger.WithFields(logging.Fields{
							"event":   "user_registry_error",
							"user_id": meta.userID,
						}).WithError(err).Warn("failed to record user")
					}
				}
			}

			next(ctx, b, update)
		}
	}
}

func extractUpdateMeta(update *models.Update) updateMeta {
	switch {
	case update.Message != nil:
		return messageMeta(update.Message, "message")
	case update.EditedMessage != nil:
		return messageMeta(update.EditedMessage, "edited_message")
	case update.CallbackQuery != nil:
		return updateMeta{
			userID:     update.CallbackQuery.From.ID,
			chatID:     messageChatID(update.CallbackQuery.Message),
			text:       strings.TrimSpace(update.CallbackQuery.Data),
			updateType: "callback_query",
			username:   update.CallbackQuery.From.Username,
			firstName:  update.CallbackQuery.From.FirstName,
		}
	default:
		return updateMeta{updateType: "unknown"}
	}
}

func messageMeta(msg *models.Message, updateType string) updateMeta {
	meta := updateMeta{
		userID:     userID(msg.From),
		chatID:     msg.Chat.ID,
		text:       strings.TrimSpace(msg.Text),
		updateType: updateType,
	}
	if msg.From != nil {
		meta.username = msg.From.Username
		meta.firstName = msg.From.FirstName
	}
	return meta
}

func errorHandler(logger *logrus.Entry) bot.ErrorsHandler {
	if logger == nil {
		logger = logging.Logger()
	}

	return func(err error) {
		if err == nil {
			return
		}

		logger.WithField("event", "telegram_error").WithError(err).Error("telegram polling error")
	}
}

func userID(u *models.User) int64 {
	if u == nil {
		return 0
	}

	return u.ID
}

func messageChatID(msg models.MaybeInaccessibleMessage) int64 {
	switch msg.Type {
	case models.MaybeInaccessibleMessageTypeMessage:
		if msg.Message == nil {
			return 0
		}
		return msg.Message.Chat.ID
	case models.MaybeInaccessibleMessageTypeInaccessibleMessage:
		if msg.InaccessibleMessage == nil {
			return 0
		}
		return msg.InaccessibleMessage.Chat.ID
	default:
		return 0
	}
}
