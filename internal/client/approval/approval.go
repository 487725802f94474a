// Package approval gates the event moderation operations behind the
// admin role. The catalog performs the actual state transitions; this
// package only enforces who may ask for them.
package approval

import (
	"context"
	"strings"

	"github.com/campushq/campushq/internal/client/catalog"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

// Moderator is the catalog surface the workflow drives.
type Moderator interface {
	Pending(ctx context.Context) ([]catalog.Event, error)
	Approve(ctx context.Context, id string) (catalog.Event, error)
	Reject(ctx context.Context, id, reason string) (catalog.Event, error)
}

// Workflow authorizes and forwards moderation requests. It holds no
// state of its own.
type Workflow struct {
	sessions *session.Store
	catalog  Moderator
}

func NewWorkflow(sessions *session.Store, moderator Moderator) *Workflow {
	return &Workflow{sessions: sessions, catalog: moderator}
}

// requireAdmin fails before any network call when the current user is
// not a signed-in administrator.
func (w *Workflow) requireAdmin() error {
	current, ok := w.sessions.Get()
	if !ok {
		return apperrors.New(apperrors.CodeNotSignedIn, "sign in to moderate events")
	}
	if current.User.Role != session.RoleAdmin {
		return apperrors.New(apperrors.CodeAdminRequired, "only administrators can moderate events")
	}
	return nil
}

// Pending lists the events awaiting a moderation decision.
func (w *Workflow) Pending(ctx context.Context) ([]catalog.Event, error) {
	if err := w.requireAdmin(); err != nil {
		return nil, err
	}
	return w.catalog.Pending(ctx)
}

// Approve publishes a pending event.
func (w *Workflow) Approve(ctx context.Context, id string) (catalog.Event, error) {
	if err := w.requireAdmin(); err != nil {
		return catalog.Event{}, err
	}
	return w.catalog.Approve(ctx, id)
}

// Reject declines a pending event. The reason must be non-empty after
// trimming and is forwarded to the organizer verbatim.
func (w *Workflow) Reject(ctx context.Context, id, reason string) (catalog.Event, error) {
	if err := w.requireAdmin(); err != nil {
		return catalog.Event{}, err
	}
	if strings.TrimSpace(reason) == "" {
		return catalog.Event{}, apperrors.New(apperrors.CodeRejectReasonEmpty, "a rejection reason is required")
	}
	return w.catalog.Reject(ctx, id, reason)
}
