package main

import (
	"context"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/eventbus"
	"github.com/dpup/gatehouse/logging"
)

// subscribeAudit writes one log line per login, logout and rejected callback.
func subscribeAudit(bus eventbus.EventBus) {
	bus.Subscribe(auth.LoginEvent, auditSession("login"))
	bus.Subscribe(auth.LogoutEvent, auditSession("logout"))
	bus.Subscribe(auth.FailureEvent, func(ctx context.Context, msg *eventbus.Message) error {
		ev, ok := msg.Data.(auth.FailureEventData)
		if !ok {
			return nil
		}
		logging.Warnw(ctx, "audit: login rejected",
			"event.id", msg.ID,
			"auth.provider", ev.Provider,
			"auth.reason", string(ev.Reason),
			"error", ev.Err,
			"req.remoteAddr", ev.RemoteAddr)
		return nil
	})
}

func auditSession(action string) eventbus.Handler {
	return func(ctx context.Context, msg *eventbus.Message) error {
		ev, ok := msg.Data.(auth.AuthEvent)
		if !ok {
			return nil
		}
		logging.Infow(ctx, "audit: "+action,
			"event.id", msg.ID,
			"auth.provider", ev.Principal.Provider,
			"auth.subject", ev.Principal.Subject,
			"user.id", ev.Principal.UserID)
		return nil
	}
}
