package rsvp

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/catalog"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

// Pipeline is the request surface the ledger depends on.
type Pipeline interface {
	Get(ctx context.Context, path string, query url.Values, out any) (api.Meta, error)
	Post(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Put(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Delete(ctx context.Context, path string, out any) (api.Meta, error)
}

// EventSource is the catalog surface used for local precondition checks and
// optimistic attendee counters.
type EventSource interface {
	CachedByID(id string) (catalog.Event, bool)
	AdjustAttendees(id string, delta int)
}

// Ledger is the cached set of the current user's RSVPs.
type Ledger struct {
	pipeline Pipeline
	sessions *session.Store
	events   EventSource
	now      func() time.Time

	mu     sync.Mutex
	rsvps  []RSVP
	loaded bool

	nextSubID int
	subs      map[int]func()
}

// NewLedger creates an RSVP ledger bound to the session store. Signing out
// empties the ledger synchronously via the session's clear hook.
func NewLedger(pipeline Pipeline, sessions *session.Store, events EventSource) *Ledger {
	ledger := &Ledger{
		pipeline: pipeline,
		sessions: sessions,
		events:   events,
		now:      time.Now,
		subs:     map[int]func(){},
	}
	if sessions != nil {
		sessions.OnClear(ledger.Invalidate)
	}
	return ledger
}

// Subscribe registers a listener called after every cache change.
func (l *Ledger) Subscribe(fn func()) (unsubscribe func()) {
	l.mu.Lock()
	id := l.nextSubID
	l.nextSubID++
	l.subs[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.subs, id)
		l.mu.Unlock()
	}
}

// Invalidate drops the cached RSVP set.
func (l *Ledger) Invalidate() {
	l.mu.Lock()
	l.rsvps = nil
	l.loaded = false
	l.mu.Unlock()
	l.notify()
}

// Cached returns a snapshot of the cached RSVP set.
func (l *Ledger) Cached() []RSVP {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]RSVP(nil), l.rsvps...)
}

// CachedForEvent returns the active cached RSVP for an event, if any.
func (l *Ledger) CachedForEvent(eventID string) (RSVP, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.findActive(eventID)
}

// Add reserves a spot on an event. Preconditions are checked against the
// cached event first; a violation fails locally without any network call.
// On success the RSVP is cached and the event's attendee count incremented
// by one plus the guest count.
func (l *Ledger) Add(ctx context.Context, eventID string, opts Options) (bool, error) {
	current, signedIn := l.sessions.Get()
	if !signedIn {
		return false, apperrors.New(apperrors.CodeNotSignedIn, "sign in to RSVP")
	}
	if current.User.Role == session.RoleAdmin {
		return false, apperrors.New(apperrors.CodeForbidden, "administrators cannot RSVP to events")
	}
	if opts.Guests < 0 {
		return false, apperrors.New(apperrors.CodeInvalidGuests, "guest count cannot be negative")
	}

	l.mu.Lock()
	_, already := l.findActive(eventID)
	l.mu.Unlock()
	if already {
		return false, apperrors.New(apperrors.CodeAlreadyRSVPed, "you have already RSVP'd to this event")
	}

	event, cached := l.events.CachedByID(eventID)
	if !cached {
		return false, apperrors.New(apperrors.CodeEventNotCached, "event details are not loaded")
	}
	if event.Status != catalog.StatusApproved {
		return false, apperrors.New(apperrors.CodeEventNotApproved, "this event is not open for RSVPs")
	}
	now := l.now()
	if event.Past(now) || event.Ongoing(now) {
		return false, apperrors.New(apperrors.CodeEventEnded, "this event has already started or ended")
	}
	if event.CurrentAttendees+1+opts.Guests > event.Capacity {
		return false, apperrors.New(apperrors.CodeEventFull, "this event is full")
	}

	var created RSVP
	if _, err := l.pipeline.Post(ctx, "/rsvp/"+url.PathEscape(eventID), opts, &created); err != nil {
		return false, err
	}
	if created.EventID == "" {
		created.EventID = eventID
	}
	if created.Status == "" {
		created.Status = StatusAttending
	}
	if created.UserID == "" {
		created.UserID = current.User.ID
	}

	l.mu.Lock()
	l.rsvps = append([]RSVP{created}, l.rsvps...)
	l.mu.Unlock()
	l.events.AdjustAttendees(eventID, 1+opts.Guests)
	l.notify()

	return true, nil
}

// Remove cancels the RSVP for an event. Removal is idempotent: with no
// cached RSVP it is a no-op success and no network call is made, so a
// double cancel can never decrement the attendee count twice.
func (l *Ledger) Remove(ctx context.Context, eventID string) (bool, error) {
	l.mu.Lock()
	existing, ok := l.findActive(eventID)
	l.mu.Unlock()
	if !ok {
		return true, nil
	}

	if _, err := l.pipeline.Delete(ctx, "/rsvp/"+url.PathEscape(eventID), nil); err != nil {
		// The server already forgot this RSVP; treat the cancel as done.
		if !apperrors.IsCode(err, apperrors.CodeNotFound) {
			return false, err
		}
	}

	l.mu.Lock()
	l.drop(eventID)
	l.mu.Unlock()
	l.events.AdjustAttendees(eventID, -(1 + existing.NumberOfGuests))
	l.notify()

	return true, nil
}

// Update changes the guest count or dietary preferences of an existing
// RSVP, shifting the cached attendee count by the guest delta.
func (l *Ledger) Update(ctx context.Context, eventID string, opts Options) (RSVP, error) {
	if opts.Guests < 0 {
		return RSVP{}, apperrors.New(apperrors.CodeInvalidGuests, "guest count cannot be negative")
	}

	l.mu.Lock()
	existing, ok := l.findActive(eventID)
	l.mu.Unlock()
	if !ok {
		return RSVP{}, apperrors.New(apperrors.CodeNotFound, "no RSVP found for this event")
	}

	if event, cached := l.events.CachedByID(eventID); cached {
		if event.CurrentAttendees+(opts.Guests-existing.NumberOfGuests) > event.Capacity {
			return RSVP{}, apperrors.New(apperrors.CodeEventFull, "this event is full")
		}
	}

	var updated RSVP
	if _, err := l.pipeline.Put(ctx, "/rsvp/"+url.PathEscape(eventID), opts, &updated); err != nil {
		return RSVP{}, err
	}
	if updated.EventID == "" {
		updated.EventID = eventID
	}
	if updated.ID == "" {
		updated.ID = existing.ID
	}
	if updated.Status == "" {
		updated.Status = existing.Status
	}

	l.mu.Lock()
	l.drop(eventID)
	l.rsvps = append([]RSVP{updated}, l.rsvps...)
	l.mu.Unlock()
	l.events.AdjustAttendees(eventID, updated.NumberOfGuests-existing.NumberOfGuests)
	l.notify()

	return updated, nil
}

// StatusResult is the server-authoritative RSVP state for one event.
type StatusResult struct {
	HasRSVPed bool  `json:"hasRSVPed"`
	RSVP      *RSVP `json:"rsvp"`
}

// CheckStatus asks the server whether the user holds an RSVP and reconciles
// the cache, catching changes made elsewhere (another tab or device).
func (l *Ledger) CheckStatus(ctx context.Context, eventID string) (StatusResult, error) {
	var result StatusResult
	if _, err := l.pipeline.Get(ctx, "/rsvp/check/"+url.PathEscape(eventID), nil, &result); err != nil {
		return StatusResult{}, err
	}

	l.mu.Lock()
	if result.HasRSVPed && result.RSVP != nil {
		record := *result.RSVP
		if record.EventID == "" {
			record.EventID = eventID
		}
		l.drop(eventID)
		l.rsvps = append([]RSVP{record}, l.rsvps...)
	} else {
		l.drop(eventID)
	}
	l.mu.Unlock()
	l.notify()

	return result, nil
}

// Mine fetches the user's full RSVP set, replacing the cache.
func (l *Ledger) Mine(ctx context.Context) ([]RSVP, error) {
	var rsvps []RSVP
	if _, err := l.pipeline.Get(ctx, "/rsvp/my-rsvps", nil, &rsvps); err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.rsvps = rsvps
	l.loaded = true
	l.mu.Unlock()
	l.notify()

	return append([]RSVP(nil), rsvps...), nil
}

// Attendees lists who is coming to an event.
func (l *Ledger) Attendees(ctx context.Context, eventID string) ([]Attendee, error) {
	var attendees []Attendee
	if _, err := l.pipeline.Get(ctx, "/rsvp/event/"+url.PathEscape(eventID)+"/attendees", nil, &attendees); err != nil {
		return nil, err
	}
	return attendees, nil
}

// findActive locates the active RSVP for an event; callers hold mu.
func (l *Ledger) findActive(eventID string) (RSVP, bool) {
	for _, record := range l.rsvps {
		if record.EventID == eventID && record.Active() {
			return record, true
		}
	}
	return RSVP{}, false
}

// drop removes every RSVP for an event; callers hold mu.
func (l *Ledger) drop(eventID string) {
	filtered := l.rsvps[:0]
	for _, record := range l.rsvps {
		if record.EventID != eventID {
			filtered = append(filtered, record)
		}
	}
	l.rsvps = filtered
}

func (l *Ledger) notify() {
	l.mu.Lock()
	subs := make([]func(), 0, len(l.subs))
	for _, fn := range l.subs {
		subs = append(subs, fn)
	}
	l.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}
