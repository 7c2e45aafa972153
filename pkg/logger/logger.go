// Package logger provides structured logging configuration for the dashboard
// service with support for different log levels, formats, and output destinations,
// plus request correlation ids carried in the context.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/GeorgiaTech-DDI/makerspace-dashboard/internal/config"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// CorrelationIDField is the log field name for the request correlation id.
const CorrelationIDField = "correlation_id"

type correlationKey struct{}

// New creates a new configured logrus logger instance with the specified
// log level, format, and output destination.
func New(level, format, output string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(strings.ToLower(level))
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	logger.SetFormatter(formatter(format))

	w, warn := openOutput(output)
	logger.SetOutput(w)
	if warn != "" {
		logger.Warn(warn)
	}

	return logger
}

// NewWithConfig creates a logger from the logging section of the configuration.
// With dual output enabled, JSON lines are also appended to FilePath.
func NewWithConfig(cfg *config.LoggingConfig) *logrus.Logger {
	logger := New(cfg.Level, cfg.Format, cfg.Output)
	if !cfg.EnableDualOutput || cfg.FilePath == "" {
		return logger
	}

	file, warn := openFile(cfg.FilePath)
	if file == nil {
		logger.Warn(warn)
		return logger
	}
	logger.AddHook(&fileHook{writer: file, formatter: formatter("json")})
	return logger
}

func formatter(format string) logrus.Formatter {
	switch strings.ToLower(format) {
	case "text":
		return &logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timestampFormat,
		}
	default:
		return &logrus.JSONFormatter{
			TimestampFormat: timestampFormat,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		}
	}
}

func openOutput(output string) (io.Writer, string) {
	switch strings.ToLower(output) {
	case "stdout", "":
		return os.Stdout, ""
	case "stderr":
		return os.Stderr, ""
	}
	file, warn := openFile(output)
	if file == nil {
		return os.Stdout, warn
	}
	return io.MultiWriter(os.Stdout, file), ""
}

func openFile(path string) (*os.File, string) {
	cleanPath := filepath.Clean(path)
	if strings.Contains(cleanPath, "..") {
		return nil, "Invalid log file path containing '..' detected, using stdout"
	}

	// #nosec G304 -- Path is validated and cleaned above to prevent traversal attacks
	file, err := os.OpenFile(cleanPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return nil, "Failed to open log file, using stdout: " + err.Error()
	}
	return file, ""
}

type fileHook struct {
	writer    io.Writer
	formatter logrus.Formatter
}

func (h *fileHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *fileHook) Fire(entry *logrus.Entry) error {
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(line)
	return err
}

// SetCorrelationID returns a context carrying the correlation id.
func SetCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the correlation id stored in ctx, or "".
func CorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// WithCorrelationID returns an entry tagged with the correlation id from ctx.
func WithCorrelationID(ctx context.Context, logger logrus.FieldLogger) *logrus.Entry {
	return logger.WithField(CorrelationIDField, CorrelationID(ctx))
}
