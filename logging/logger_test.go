package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestTrack(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	ctx := With(t.Context(), NewZapLogger(zap.New(core)))
	Track(ctx, "auth.subject", "123") // Passed on to child loggers.

	child := With(ctx, FromContext(ctx).Named("gate"))
	Track(child, "session.rotated", true) // Stays in the child scope.

	Infow(ctx, "root")
	Infow(child, "child")

	require.Equal(t, 2, logs.Len())
	entries := logs.All()
	assert.Equal(t, map[string]interface{}{"auth.subject": "123"}, entries[0].ContextMap())
	assert.Equal(t, map[string]interface{}{"auth.subject": "123", "session.rotated": true}, entries[1].ContextMap())
	assert.Equal(t, "gate", entries[1].LoggerName)
}

func TestTrackWithoutLogger(t *testing.T) {
	assert.NotPanics(t, func() { Track(t.Context(), "k", "v") })
}

func TestEnsureLogger(t *testing.T) {
	ctx := EnsureLogger(t.Context())
	assert.NotSame(t, nopLogger, FromContext(ctx))

	l := NewNopLogger()
	ctx = With(t.Context(), l)
	assert.Equal(t, ctx, EnsureLogger(ctx), "existing logger is kept")
}

func TestFromContextWithoutLogger(t *testing.T) {
	// Must not panic when nothing has been attached.
	Warnw(t.Context(), "dropped")
	assert.NotNil(t, FromContext(t.Context()))
}
