package logging

import (
	"fmt"

	"github.com/go-co-op/gocron/v2"
	"github.com/sirupsen/logrus"
)

// schedulerLogger adapts a logrus entry to gocron.Logger.
type schedulerLogger struct {
	entry *logrus.Entry
}

// NewSchedulerLogger returns a gocron.Logger writing through entry, or through
// the base logger when entry is nil.
func NewSchedulerLogger(entry *logrus.Entry) gocron.Logger {
	if entry == nil {
		entry = Logger()
	}

	return &schedulerLogger{entry: entry.WithField("component", "scheduler")}
}

func (l *schedulerLogger) Debug(msg string, args ...any) {
	l.entry.WithFields(pairsToFields(args)).Debug(msg)
}

func (l *schedulerLogger) Info(msg string, args ...any) {
	l.entry.WithFields(pairsToFields(args)).Info(msg)
}

func (l *schedulerLogger) Warn(msg string, args ...any) {
	l.entry.WithFields(pairsToFields(args)).Warn(msg)
}

func (l *schedulerLogger) Error(msg string, args ...any) {
	l.entry.WithFields(pairsToFields(args)).Error(msg)
}

// pairsToFields turns gocron's alternating key/value args into fields. A
// trailing key without a value is kept under "extra".
func pairsToFields(args []any) logrus.Fields {
	fields := logrus.Fields{}

	for i := 0; i < len(args); i += 2 {
		if i+1 >= len(args) {
			fields["extra"] = args[i]
			break
		}

		key := fmt.Sprint(args[i])
		if err, ok := args[i+1].(error); ok && key == "error" {
			fields[logrus.ErrorKey] = err.Error()
			continue
		}
		fields[key] = args[i+1]
	}

	return fields
}
