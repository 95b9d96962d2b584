package logger

import (
	"github.com/sirupsen/logrus"
	"github.com/timmy/crudgate/internal/masking"
)

// sanitizeHook strips line breaks and terminal escapes from the message and
// string fields of every entry before it is formatted.
type sanitizeHook struct{}

func (sanitizeHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (sanitizeHook) Fire(entry *logrus.Entry) error {
	entry.Message = masking.SanitizeForLogging(entry.Message)
	for k, v := range entry.Data {
		if s, ok := v.(string); ok {
			entry.Data[k] = masking.SanitizeForLogging(s)
		}
	}
	return nil
}
