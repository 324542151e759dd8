package utils

import (
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger builds the process logger. Unknown levels fall back to info.
func NewLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	log.SetDefault(logger)
	return logger
}
