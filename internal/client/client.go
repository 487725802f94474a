// Package client assembles the session, token, and cache layers into one
// platform client.
//
// The wiring runs bottom-up: the sqlite-backed session store restores any
// persisted sign-in, the token manager drives single-flight refresh over a
// bare pipeline client, and the authenticated pipeline feeds the catalog,
// RSVP ledger, and the account, approval, and admin services. Signing out
// propagates through the session store's clear hooks, so every user-scoped
// cache empties before Clear returns.
package client

import (
	"fmt"

	"github.com/campushq/campushq/internal/client/account"
	"github.com/campushq/campushq/internal/client/admin"
	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/approval"
	"github.com/campushq/campushq/internal/client/catalog"
	"github.com/campushq/campushq/internal/client/rsvp"
	"github.com/campushq/campushq/internal/client/session"
	sessionsqlite "github.com/campushq/campushq/internal/client/session/sqlite"
	"github.com/campushq/campushq/internal/client/token"
)

// Config selects the API endpoint and the local state location.
type Config struct {
	// BaseURL is the platform API root, e.g. "https://campushq.example/api".
	BaseURL string `env:"CAMPUSHQ_API_BASE_URL" envDefault:"http://localhost:3000/api"`
	// StatePath is the sqlite file holding the persisted session. Empty
	// keeps the session in memory only.
	StatePath string `env:"CAMPUSHQ_STATE_PATH"`
}

// App is the assembled platform client.
type App struct {
	Sessions  *session.Store
	Tokens    *token.Manager
	API       *api.Client
	Catalog   *catalog.Store
	RSVPs     *rsvp.Ledger
	Approvals *approval.Workflow
	Account   *account.Service
	Admin     *admin.Service
}

// New wires an App from config. The refresh call rides its own tokenless
// pipeline client so a spent refresh token can never recurse into another
// refresh.
func New(cfg Config) (*App, error) {
	var persist session.Persistence
	if cfg.StatePath != "" {
		store, err := sessionsqlite.Open(cfg.StatePath)
		if err != nil {
			return nil, fmt.Errorf("open session state: %w", err)
		}
		persist = store
	}

	sessions, err := session.NewStore(persist)
	if err != nil {
		if persist != nil {
			persist.Close()
		}
		return nil, fmt.Errorf("restore session: %w", err)
	}

	refreshPipeline, err := api.NewClient(cfg.BaseURL, nil)
	if err != nil {
		sessions.Close()
		return nil, err
	}
	tokens := token.NewManager(sessions, api.NewRefresher(refreshPipeline))

	pipeline, err := api.NewClient(cfg.BaseURL, tokens)
	if err != nil {
		sessions.Close()
		return nil, err
	}

	events := catalog.NewStore(pipeline, sessions)
	return &App{
		Sessions:  sessions,
		Tokens:    tokens,
		API:       pipeline,
		Catalog:   events,
		RSVPs:     rsvp.NewLedger(pipeline, sessions, events),
		Approvals: approval.NewWorkflow(sessions, events),
		Account:   account.NewService(pipeline, sessions),
		Admin:     admin.NewService(pipeline),
	}, nil
}

// Close releases the persisted session handle. The in-memory session
// survives until the process exits; Close never signs the user out.
func (a *App) Close() error {
	return a.Sessions.Close()
}
