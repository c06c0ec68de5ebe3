package logging

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

const isoTimestamp = "2006-01-02T15:04:05.000Z07:00"

// ConsoleFormatter renders one human-readable line per entry:
//
//	[2026-01-02T15:04:05.000Z] [INFO] message key=value
type ConsoleFormatter struct {
	TimestampFormat string
}

// Format implements logrus.Formatter.
func (f *ConsoleFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	layout := f.TimestampFormat
	if layout == "" {
		layout = isoTimestamp
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "[%s] [%s] %s", entry.Time.UTC().Format(layout), levelName(entry.Level), entry.Message)

	keys := make([]string, 0, len(entry.Data))
	for k := range entry.Data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Data[k])
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

func levelName(level logrus.Level) string {
	if level == logrus.WarnLevel {
		return "WARN"
	}
	return strings.ToUpper(level.String())
}
