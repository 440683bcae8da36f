// Package logging configures the process-wide logrus logger from
// LOG_LEVEL/LOG_FORMAT.
package logging

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Setup reads LOG_LEVEL (default "info") and LOG_FORMAT ("json" or "text",
// default "text") from the environment and configures the standard logger.
func Setup() {
	level, err := logrus.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if os.Getenv("LOG_FORMAT") == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: time.RFC3339})
	}
	logrus.SetOutput(os.Stdout)
}
