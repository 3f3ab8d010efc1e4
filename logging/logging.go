// Package logging builds the logrus logger shared by the service and its workers.
package logging

import (
	"io"
	"os"
	"strings"

	"example/comment-search-api/app/config"

	"github.com/sirupsen/logrus"
)

// New returns a logger configured from LOG_STYLE and LOG_LEVEL.
// Unknown levels fall back to info.
func New(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	if strings.EqualFold(cfg.Style, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(strings.TrimSpace(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// Discard returns a logger that drops everything. Used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
