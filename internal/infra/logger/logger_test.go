package logger

import (
	"bytes"
	"testing"

	"employee_task_bot/internal/infra/config"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigure_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	configure(l, &buf, &config.AppConfig{LogLevel: "DEBUG", Environment: "Production"})

	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	l.WithField("component", "notifier").Debug("Sweep finished")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Sweep finished", entry["msg"])
	assert.Equal(t, "notifier", entry["component"])
}

func TestConfigure_UnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	configure(l, &buf, &config.AppConfig{LogLevel: "loud", Environment: "development"})

	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
	assert.IsType(t, &logrus.TextFormatter{}, l.Formatter)
	assert.Contains(t, buf.String(), "Unknown log level")
}
