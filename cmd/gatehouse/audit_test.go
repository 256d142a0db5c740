package main

import (
	"testing"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/eventbus"
	"github.com/dpup/gatehouse/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuditSubscriber(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logging.With(t.Context(), logging.NewZapLogger(zap.New(core)))

	bus := eventbus.NewBus(ctx)
	subscribeAudit(bus)

	p, err := auth.NewPrincipal("google", "sub-1", "Ada", "ada@example.com")
	require.NoError(t, err)

	bus.Publish(auth.LoginEvent, auth.AuthEvent{Principal: p.WithUserID("u-1"), SessionID: "s-1"})
	bus.Publish(auth.FailureEvent, auth.FailureEventData{Provider: "google", Reason: auth.ReasonDenied})
	bus.Publish(auth.LogoutEvent, "unexpected payload")
	require.NoError(t, bus.Shutdown(t.Context()))

	login := logs.FilterMessage("audit: login").All()
	require.Len(t, login, 1)
	assert.Equal(t, "sub-1", login[0].ContextMap()["auth.subject"])
	assert.Equal(t, "u-1", login[0].ContextMap()["user.id"])

	rejected := logs.FilterMessage("audit: login rejected").All()
	require.Len(t, rejected, 1)
	assert.Equal(t, zap.WarnLevel, rejected[0].Level)
	assert.Equal(t, "denied", rejected[0].ContextMap()["auth.reason"])

	assert.Zero(t, logs.FilterMessage("audit: logout").Len(), "unknown payloads are ignored")
}
