package logger

import (
	"io"
	"os"
	"strings"

	"employee_task_bot/internal/infra/config"

	"github.com/sirupsen/logrus"
)

// Log is shared by every component of the bot.
var Log = logrus.New()

// structuredEnvironments get JSON output for log shipping.
var structuredEnvironments = map[string]bool{"production": true, "staging": true}

// Init configures Log from the application config and writes to stdout.
func Init(cfg *config.AppConfig) {
	configure(Log, os.Stdout, cfg)
	Log.WithFields(logrus.Fields{
		"level":       Log.GetLevel().String(),
		"environment": cfg.Environment,
		"storage":     cfg.StorageDriver,
	}).Info("Logger initialized")
}

func configure(l *logrus.Logger, out io.Writer, cfg *config.AppConfig) {
	l.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if structuredEnvironments[strings.ToLower(cfg.Environment)] {
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000Z07:00"})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}

	if err != nil {
		l.WithField("log_level", cfg.LogLevel).Warn("Unknown log level, falling back to info")
	}
}

// Component returns an entry scoped to a named part of the bot.
func Component(name string) *logrus.Entry {
	return Log.WithField("component", name)
}
