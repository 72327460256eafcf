package host_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipelined.dev/host"
)

func TestRun(t *testing.T) {
	f := through()
	e, next := host.New(host.DefaultSettings(), host.WithFactories(f))
	id := addPlugin(t, e, "through")
	chain(t, e, id)
	_, err := e.Activate(activation)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	var notifications []host.Notification
	err = e.Run(ctx, next, func(n host.Notification) { notifications = append(notifications, n) })
	assert.NoError(t, err)
	assert.Empty(t, notifications)
	assert.True(t, e.Active())
	e.Close()
}

func TestRunCrash(t *testing.T) {
	f := through()
	f.Plugin.Processor.PanicOnCall = "boom"
	e, next := host.New(host.DefaultSettings(), host.WithFactories(f))
	id := addPlugin(t, e, "through")
	chain(t, e, id)
	thread, err := e.Activate(activation)
	require.NoError(t, err)

	in := interleaved(8)
	thread.Process(in, make([]float32, len(in)))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	var notified []host.NotificationKind
	err = e.Run(ctx, next, func(n host.Notification) { notified = append(notified, n.Kind) })
	var crash *host.CrashError
	assert.True(t, errors.As(err, &crash))
	assert.Equal(t, []host.NotificationKind{host.EngineCrashed}, notified)
	assert.False(t, e.Active())
	e.Close()
}
