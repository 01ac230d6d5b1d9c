package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"capibridge/pkg/logging"
)

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		l, err := New("debug", format)
		require.NoError(t, err)
		assert.NotNil(t, l)
	}
}

func TestInfowCtx_AddsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.SetServiceName("capibridge")

	ctx := logging.WithRequestID(context.Background(), "req-1")
	ctx = logging.WithEventID(ctx, "purchase-42")
	l.InfowCtx(ctx, "delivered", "events_received", 1)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "purchase-42", fields["event_id"])
	assert.Equal(t, "capibridge", fields["service_name"])
	assert.Equal(t, int64(1), fields["events_received"])
}

func TestWarnwCtx_ContextServiceNameWins(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.SetServiceName("fallback")

	l.WarnwCtx(logging.WithServiceName(context.Background(), "from-ctx"), "warned")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.WarnLevel, logs.All()[0].Level)
	assert.Equal(t, "from-ctx", logs.All()[0].ContextMap()["service_name"])
}

func TestNopLogger(t *testing.T) {
	l := NopLogger()
	assert.NotPanics(t, func() {
		l.ErrorwCtx(context.Background(), "ignored", "k", "v")
	})
}
