package scheduler

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopNotifier struct{}

func (noopNotifier) DispatchNewTasks(context.Context) error     { return nil }
func (noopNotifier) RetryDelayedTasks(context.Context) error    { return nil }
func (noopNotifier) RemindIgnoredTasks(context.Context) error   { return nil }
func (noopNotifier) EscalateExpiredTasks(context.Context) error { return nil }

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

var validSpecs = Specs{Dispatch: "* * * * *", Ignored: "*/10 * * * *", Expired: "*/5 * * * *", Delayed: "0 * * * *"}

func TestTaskScheduler_StartRejectsInvalidSpec(t *testing.T) {
	specs := validSpecs
	specs.Expired = "every five minutes"
	s := NewTaskScheduler(noopNotifier{}, specs, time.UTC, quietLogger())

	err := s.Start()
	assert.ErrorContains(t, err, "escalate_expired_tasks")
}

func TestTaskScheduler_StartAndStop(t *testing.T) {
	s := NewTaskScheduler(noopNotifier{}, validSpecs, nil, quietLogger())

	require.NoError(t, s.Start())
	assert.Len(t, s.cronEngine.Entries(), 4)
	s.Stop()
}

func TestTaskScheduler_WrapRunsSweepWithDeadline(t *testing.T) {
	s := NewTaskScheduler(noopNotifier{}, validSpecs, time.UTC, quietLogger())
	calls := 0
	var hasDeadline bool

	s.wrap("test", func(ctx context.Context) error {
		calls++
		_, hasDeadline = ctx.Deadline()
		return errors.New("store unavailable")
	})()

	assert.Equal(t, 1, calls)
	assert.True(t, hasDeadline)
}
