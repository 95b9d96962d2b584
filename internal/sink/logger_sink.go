package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/timmy/crudgate/internal/domain"
	"github.com/timmy/crudgate/internal/logger"
)

// LoggerSink writes entries as structured log lines.
type LoggerSink struct {
	log *logger.Logger
}

// NewLoggerSink creates a sink writing to log, or to the default logger when nil.
func NewLoggerSink(log *logger.Logger) *LoggerSink {
	return &LoggerSink{log: log}
}

func (s *LoggerSink) Name() string { return "logger" }

func (s *LoggerSink) Write(ctx context.Context, entry domain.LogEntry) error {
	log := s.log
	if log == nil {
		log = logger.FromContext(ctx)
	}

	h := entry.Header()
	fields := logger.Fields{
		logger.FieldLogType:       string(entry.Type()),
		logger.FieldCorrelationID: h.CorrelationID,
		logger.FieldLayer:         h.Layer,
		"entry":                   entry,
	}
	optional := map[string]string{
		logger.FieldParentCorrelationID: h.ParentCorrelationID,
		logger.FieldUserID:              h.UserID,
		logger.FieldClientIP:            h.ClientIP,
		logger.FieldRequestPath:         h.RequestPath,
		logger.FieldServerName:          h.ServerName,
		"session_id":                    h.SessionID,
		"user_agent":                    h.UserAgent,
	}
	for k, v := range optional {
		if v != "" {
			fields[k] = v
		}
	}

	level, msg := describe(entry)
	log.WithFields(fields).WithTime(h.Timestamp).Log(level, msg)
	return nil
}

// describe picks the level and one-line message for an entry.
func describe(entry domain.LogEntry) (logrus.Level, string) {
	switch e := entry.(type) {
	case *domain.RequestEntry:
		return logrus.InfoLevel, fmt.Sprintf("%s %s", e.Method, e.URL)
	case *domain.ResponseEntry:
		level := logrus.InfoLevel
		if e.StatusCode >= 500 {
			level = logrus.ErrorLevel
		} else if e.StatusCode >= 400 {
			level = logrus.WarnLevel
		}
		return level, fmt.Sprintf("Response %d in %dms", e.StatusCode, e.DurationMs)
	case *domain.ExceptionEntry:
		return logrus.ErrorLevel, fmt.Sprintf("%s: %s", e.Category, e.Message)
	case *domain.BusinessExceptionEntry:
		return logrus.WarnLevel, fmt.Sprintf("%s: %s", e.Code, e.Message)
	case *domain.AuditEntry:
		return logrus.InfoLevel, fmt.Sprintf("%s %s %s", e.Action, e.Entity, e.EntityID)
	case *domain.PerformanceEntry:
		if e.Slow {
			return logrus.WarnLevel, fmt.Sprintf("Slow %s took %dms", e.Operation, e.DurationMs)
		}
		return logrus.DebugLevel, fmt.Sprintf("%s took %dms", e.Operation, e.DurationMs)
	case *domain.GeneralEntry:
		level, err := logrus.ParseLevel(strings.ToLower(e.Level))
		switch {
		case err != nil:
			level = logrus.InfoLevel
		case level < logrus.ErrorLevel:
			// fatal and panic would exit or unwind the caller
			level = logrus.ErrorLevel
		}
		return level, e.Message
	}
	return logrus.InfoLevel, string(entry.Type())
}
