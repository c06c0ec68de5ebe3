// Package logging builds the process-wide logrus logger and a few helpers for
// code that has no entry of its own yet.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"tg_assistant_bot/internal/config"
)

const serviceName = "telegram-bot"

var baseLogger *logrus.Entry

// Fields is a shorthand alias for structured log fields.
type Fields = logrus.Fields

// Context carries the optional identifiers most log lines are tagged with.
type Context struct {
	UserID  int64
	ChatID  int64
	Event   string
	Command string
}

// levels maps the accepted LOG_LEVEL values to logrus thresholds.
var levels = map[string]logrus.Level{
	"error": logrus.ErrorLevel,
	"warn":  logrus.WarnLevel,
	"info":  logrus.InfoLevel,
	"debug": logrus.DebugLevel,
}

// Setup builds the base logger from LOG_LEVEL and APP_ENV and caches it for
// Logger and the package helpers. It writes to stdout.
func Setup(cfg config.Config) (*logrus.Entry, error) {
	return SetupWithOutput(cfg, os.Stdout)
}

// SetupWithOutput is Setup with an explicit destination.
func SetupWithOutput(cfg config.Config, out io.Writer) (*logrus.Entry, error) {
	level, err := parseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	baseLogger = newEntry(level, cfg.AppEnv, out)
	return baseLogger, nil
}

// Logger returns the base logger. Before Setup runs it falls back to an
// info-level development logger so boot errors are still printed.
func Logger() *logrus.Entry {
	if baseLogger == nil {
		baseLogger = newEntry(logrus.InfoLevel, config.DefaultAppEnv, os.Stdout)
	}
	return baseLogger
}

// WithContext tags the base logger with the non-zero fields of ctx.
func WithContext(ctx Context) *logrus.Entry {
	fields := Fields{}

	if ctx.UserID != 0 {
		fields["user_id"] = ctx.UserID
	}
	if ctx.ChatID != 0 {
		fields["chat_id"] = ctx.ChatID
	}
	if event := strings.TrimSpace(ctx.Event); event != "" {
		fields["event"] = event
	}
	if cmd := strings.TrimSpace(ctx.Command); cmd != "" {
		fields["command"] = cmd
	}

	return withFields(fields)
}

func Debug(msg string, fields Fields) { withFields(fields).Debug(msg) }

func Info(msg string, fields Fields) { withFields(fields).Info(msg) }

func Warn(msg string, fields Fields) { withFields(fields).Warn(msg) }

func Error(msg string, fields Fields) { withFields(fields).Error(msg) }

func withFields(fields Fields) *logrus.Entry {
	if len(fields) == 0 {
		return Logger()
	}
	return Logger().WithFields(fields)
}

func newEntry(level logrus.Level, appEnv string, out io.Writer) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(formatterForEnv(appEnv))

	return logger.WithFields(Fields{
		"service": serviceName,
		"env":     appEnv,
	})
}

// formatterForEnv picks console lines for development and JSON otherwise.
func formatterForEnv(appEnv string) logrus.Formatter {
	if appEnv == config.EnvDevelopment {
		return &ConsoleFormatter{TimestampFormat: isoTimestamp}
	}

	return &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "ts",
			logrus.FieldKeyMsg:   "msg",
			logrus.FieldKeyLevel: "level",
		},
	}
}

func parseLevel(value string) (logrus.Level, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "warning" {
		normalized = "warn"
	}

	if level, ok := levels[normalized]; ok {
		return level, nil
	}
	return logrus.InfoLevel, fmt.Errorf("invalid log level %q: must be one of error, warn, info, debug", value)
}

// resetLogger clears the cached logger; used in tests.
func resetLogger() {
	baseLogger = nil
}
