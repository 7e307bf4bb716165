// Package logging configures the process-wide structured logger. Modeled
// on docker-compose's use of logrus (cmd/compose/compose.go): a plain text
// formatter for interactive use, switching to JSON when requested, with a
// configurable level. Every call site logs through a *logrus.Entry instead
// of package-level globals so fields (session id, service, method, ...)
// compose cleanly.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger per the given level and format ("json" or
// "text"). An unrecognized level falls back to info, matching a
// conservative default rather than silently discarding logs.
func New(level, format string) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if format == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return log
}
