package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContext_FromContext(t *testing.T) {
	t.Run("retrieves attached logger", func(t *testing.T) {
		logger := zap.NewNop()
		ctx := WithContext(context.Background(), logger)

		got := FromContext(ctx)
		assert.Same(t, logger, got)
	})

	t.Run("returns no-op logger when not attached", func(t *testing.T) {
		got := FromContext(context.Background())
		require.NotNil(t, got)
	})
}

func TestWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, enriched := WithRequestID(context.Background(), logger, "req-123")

	assert.Equal(t, "req-123", GetRequestID(ctx))

	enriched.Info("test")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "req-123", entries[0].ContextMap()["request_id"])
}

func TestWithAccountID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx, enriched := WithAccountID(context.Background(), logger, "acct-42")

	assert.Equal(t, "acct-42", GetAccountID(ctx))

	enriched.Info("test")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "acct-42", entries[0].ContextMap()["account_id"])
}

func TestContextLogger_InjectsContextFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-9")
	ctx = context.WithValue(ctx, AccountIDKey, "acct-7")

	WithLogger(ctx, logger).Info("billing event", zap.String("model", "gpt-4o"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-9", fields["request_id"])
	assert.Equal(t, "acct-7", fields["account_id"])
	assert.Equal(t, "gpt-4o", fields["model"])
}

func TestContextLogger_With(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	cl := WithLogger(context.Background(), logger).With(zap.String("component", "pipeline"))
	cl.Warn("slow response")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "pipeline", entries[0].ContextMap()["component"])
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
}

func TestL_NilSafety(t *testing.T) {
	// Context without a logger must not panic
	assert.NotPanics(t, func() {
		L(context.Background()).Info("no logger attached")
	})
}
