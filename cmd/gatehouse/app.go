package main

import (
	"context"
	"strings"

	"github.com/dpup/gatehouse"
	"github.com/dpup/gatehouse/auth/google"
	"github.com/dpup/gatehouse/eventbus"
	"github.com/dpup/gatehouse/gate"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/session"
	"github.com/dpup/gatehouse/storage"
	"github.com/dpup/gatehouse/storage/postgres"
	"github.com/dpup/gatehouse/storage/sqlite"
	"github.com/dpup/gatehouse/users"
	"github.com/go-chi/chi/v5"
)

// app holds the assembled components so they can be shut down in order.
type app struct {
	server   *gatehouse.Server
	repo     storage.Repository
	bus      *eventbus.Bus
	sessions *session.Manager
}

// newApp wires every component from the loaded configuration. ctx bounds
// background work such as the session sweeper.
func newApp(ctx context.Context, opts ...google.Option) (*app, error) {
	repo, err := openRepository(gatehouse.ConfigString("db.driver"), gatehouse.ConfigString("db.dsn"))
	if err != nil {
		return nil, err
	}

	policy := []session.Option{
		session.WithIdleTimeout(gatehouse.ConfigDuration("session.idleTimeout")),
		session.WithMaxAge(gatehouse.ConfigDuration("session.maxAge")),
	}
	var store session.Store
	if gatehouse.ConfigString("session.store") == "database" {
		store = session.NewPersistentStore(repo, policy...)
	} else {
		store = session.NewMemoryStore(policy...)
	}
	session.StartSweeper(ctx, store, gatehouse.ConfigDuration("session.sweepInterval"))

	secret := []byte(gatehouse.ConfigString("session.secret"))
	sessions := session.NewManager(store,
		session.NewCookieCodec(gatehouse.ConfigString("session.cookieName"), secret),
		session.WithCrossSite(gatehouse.ConfigBool("session.crossSite")),
		session.WithSecure(strings.HasPrefix(gatehouse.ConfigString("address"), "https://")),
	)

	bus := eventbus.NewBus(ctx)
	subscribeAudit(bus)

	userService := users.NewService(repo)
	g, err := gate.New(
		google.New(opts...),
		gate.NewSessionAttachment(sessions, userService),
		gate.WithEventBus(bus),
	)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}
	userRoutes := users.NewHandler(userService, sessions, bus).Routes()

	a := &app{repo: repo, bus: bus, sessions: sessions}
	a.server = gatehouse.New(
		gatehouse.WithContext(ctx),
		gatehouse.WithRoutes(g.Mount),
		gatehouse.WithRoutes(func(r chi.Router) {
			r.With(gate.RequireSession(sessions)).Mount("/user", userRoutes)
		}),
		gatehouse.WithShutdownHook(bus.Shutdown),
		gatehouse.WithShutdownHook(func(context.Context) error {
			return repo.Close()
		}),
	)
	logging.Infow(ctx, "gatehouse: ready",
		"db.driver", gatehouse.ConfigString("db.driver"),
		"session.store", gatehouse.ConfigString("session.store"),
		"login", g.LoginPath())
	return a, nil
}

func openRepository(driver, dsn string) (storage.Repository, error) {
	switch driver {
	case "postgres":
		return postgres.SafeNew(dsn)
	case "", "sqlite":
		return sqlite.SafeNew(dsn)
	default:
		return nil, gatehouse.ConfigurationErrorf("unknown db.driver %q", driver)
	}
}
