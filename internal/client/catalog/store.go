package catalog

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
	"github.com/campushq/campushq/internal/platform/id"
)

// RejectReasonMaxLen caps the rejection reason forwarded to the server.
const RejectReasonMaxLen = 500

// Pipeline is the request surface the catalog depends on.
type Pipeline interface {
	Get(ctx context.Context, path string, query url.Values, out any) (api.Meta, error)
	Post(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Put(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Patch(ctx context.Context, path string, body any, out any) (api.Meta, error)
	Delete(ctx context.Context, path string, out any) (api.Meta, error)
}

// pageView is one cached listing page, keyed by filter fingerprint.
type pageView struct {
	ids  []string
	meta api.Meta
}

// viewList is a derived id list over the normalized entity table.
type viewList struct {
	ids    []string
	loaded bool
}

// Store is the cached, queryable projection of events.
type Store struct {
	pipeline Pipeline
	sessions *session.Store
	now      func() time.Time

	mu       sync.Mutex
	entities map[string]Event
	pages    map[string]pageView
	mine     viewList
	pending  viewList
	stats    *Stats

	nextSubID int
	subs      map[int]func()
}

// NewStore creates an event catalog bound to the session store. The catalog
// registers its own invalidation with the session's clear hook: signing out
// empties every cache before Clear returns.
func NewStore(pipeline Pipeline, sessions *session.Store) *Store {
	store := &Store{
		pipeline: pipeline,
		sessions: sessions,
		now:      time.Now,
		entities: map[string]Event{},
		pages:    map[string]pageView{},
		subs:     map[int]func(){},
	}
	if sessions != nil {
		sessions.OnClear(store.Invalidate)
	}
	return store
}

// Subscribe registers a listener called after every cache change.
func (s *Store) Subscribe(fn func()) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Invalidate drops every cached entity and view.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.entities = map[string]Event{}
	s.pages = map[string]pageView{}
	s.mine = viewList{}
	s.pending = viewList{}
	s.stats = nil
	s.mu.Unlock()
	s.notify()
}

// List fetches a page of events and replaces the matching cache slice.
func (s *Store) List(ctx context.Context, filter Filter) ([]Event, api.Meta, error) {
	var events []Event
	meta, err := s.pipeline.Get(ctx, "/events", filter.query(), &events)
	if err != nil {
		return nil, api.Meta{}, err
	}

	s.mu.Lock()
	ids := make([]string, 0, len(events))
	for _, event := range events {
		s.entities[event.ID] = event
		ids = append(ids, event.ID)
	}
	s.pages[filter.fingerprint()] = pageView{ids: ids, meta: meta}
	s.mu.Unlock()
	s.notify()

	return events, meta, nil
}

// ByID fetches a single event and reconciles the cache.
func (s *Store) ByID(ctx context.Context, id string) (Event, error) {
	var event Event
	if _, err := s.pipeline.Get(ctx, "/events/"+url.PathEscape(id), nil, &event); err != nil {
		return Event{}, err
	}

	s.mu.Lock()
	s.entities[event.ID] = event
	s.mu.Unlock()
	s.notify()

	return event, nil
}

// Mine fetches the signed-in user's own events.
func (s *Store) Mine(ctx context.Context) ([]Event, error) {
	var events []Event
	if _, err := s.pipeline.Get(ctx, "/events/my-events", nil, &events); err != nil {
		return nil, err
	}
	s.replaceView(&s.mine, events)
	return events, nil
}

// Pending fetches the admin approval queue.
func (s *Store) Pending(ctx context.Context) ([]Event, error) {
	var events []Event
	if _, err := s.pipeline.Get(ctx, "/events/pending", nil, &events); err != nil {
		return nil, err
	}
	s.replaceView(&s.pending, events)
	return events, nil
}

// Stats fetches the aggregate event report.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	if _, err := s.pipeline.Get(ctx, "/events/stats", nil, &stats); err != nil {
		return Stats{}, err
	}
	s.mu.Lock()
	s.stats = &stats
	s.mu.Unlock()
	s.notify()
	return stats, nil
}

// Create submits a new event. The draft appears immediately in the local
// cache with a provisional id and pending status; the server record replaces
// it on success and the insert is rolled back on failure.
func (s *Store) Create(ctx context.Context, draft Draft) (Event, error) {
	current, signedIn := s.sessions.Get()
	if !signedIn {
		return Event{}, apperrors.New(apperrors.CodeNotSignedIn, "sign in to create an event")
	}

	tempID := id.NewDraft()
	optimistic := Event{
		ID:          tempID,
		Title:       draft.Title,
		Description: draft.Description,
		Date:        draft.Date,
		Time:        draft.Time,
		EndDate:     draft.EndDate,
		EndTime:     draft.EndTime,
		Location:    draft.Location,
		Category:    draft.Category,
		Tags:        append([]string(nil), draft.Tags...),
		Capacity:    draft.Capacity,
		Status:      StatusPending,
		CreatedBy:   current.User.ID,
	}

	s.mu.Lock()
	s.entities[tempID] = optimistic
	if s.mine.loaded {
		s.mine.ids = append([]string{tempID}, s.mine.ids...)
	}
	s.mu.Unlock()
	s.notify()

	var created Event
	_, err := s.pipeline.Post(ctx, "/events", draft, &created)

	s.mu.Lock()
	delete(s.entities, tempID)
	s.mine.ids = removeID(s.mine.ids, tempID)
	if err == nil {
		s.entities[created.ID] = created
		if s.mine.loaded {
			s.mine.ids = append([]string{created.ID}, s.mine.ids...)
		}
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return Event{}, err
	}
	return created, nil
}

// Update merges the patch into the cached record, round-trips, and
// reconciles with the server's event. Failure restores the pre-mutation
// snapshot exactly.
func (s *Store) Update(ctx context.Context, id string, patch Patch) (Event, error) {
	s.mu.Lock()
	snapshot, cached := s.entities[id]
	if cached {
		s.entities[id] = patch.apply(snapshot)
	}
	s.mu.Unlock()
	if cached {
		s.notify()
	}

	var updated Event
	_, err := s.pipeline.Put(ctx, "/events/"+url.PathEscape(id), patch, &updated)

	s.mu.Lock()
	if err != nil {
		if cached {
			s.entities[id] = snapshot
		}
	} else {
		s.entities[id] = updated
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		return Event{}, err
	}
	return updated, nil
}

// Remove deletes an event, removing it from every view optimistically and
// reinserting it if the server call fails.
func (s *Store) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	snapshot := s.snapshotViews(id)
	delete(s.entities, id)
	s.dropFromViews(id)
	s.mu.Unlock()
	s.notify()

	_, err := s.pipeline.Delete(ctx, "/events/"+url.PathEscape(id), nil)
	if err != nil {
		s.mu.Lock()
		s.restoreViews(id, snapshot)
		s.mu.Unlock()
		s.notify()
		return err
	}
	return nil
}

// Approve transitions a pending event to approved. The pending view only
// changes once the server confirms.
func (s *Store) Approve(ctx context.Context, id string) (Event, error) {
	var approved Event
	_, err := s.pipeline.Patch(ctx, "/events/"+url.PathEscape(id)+"/approve", nil, &approved)
	if err != nil {
		return Event{}, err
	}
	if approved.ID == "" {
		// Some deployments return an empty body; synthesize from cache.
		s.mu.Lock()
		if cached, ok := s.entities[id]; ok {
			cached.Status = StatusApproved
			approved = cached
		} else {
			approved = Event{ID: id, Status: StatusApproved}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.entities[approved.ID] = approved
	s.pending.ids = removeID(s.pending.ids, id)
	s.mu.Unlock()
	s.notify()

	return approved, nil
}

// Reject transitions a pending event to rejected. reason is mandatory and
// validated before any network call; the owner sees it on the record.
func (s *Store) Reject(ctx context.Context, id, reason string) (Event, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Event{}, apperrors.New(apperrors.CodeRejectReasonEmpty, "a rejection reason is required")
	}
	if len(reason) > RejectReasonMaxLen {
		return Event{}, apperrors.New(apperrors.CodeRejectReasonTooLong, "rejection reason is too long")
	}

	var rejected Event
	_, err := s.pipeline.Patch(ctx, "/events/"+url.PathEscape(id)+"/reject", map[string]string{
		"reason": reason,
	}, &rejected)
	if err != nil {
		return Event{}, err
	}
	if rejected.ID == "" {
		s.mu.Lock()
		if cached, ok := s.entities[id]; ok {
			cached.Status = StatusRejected
			cached.RejectionReason = reason
			rejected = cached
		} else {
			rejected = Event{ID: id, Status: StatusRejected, RejectionReason: reason}
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	s.entities[rejected.ID] = rejected
	s.pending.ids = removeID(s.pending.ids, id)
	s.mu.Unlock()
	s.notify()

	return rejected, nil
}

// AdjustAttendees shifts the cached attendee count, clamped to the capacity
// invariant. The RSVP ledger drives this for its optimistic counters.
func (s *Store) AdjustAttendees(id string, delta int) {
	s.mu.Lock()
	event, ok := s.entities[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	next := event.CurrentAttendees + delta
	if next < 0 {
		next = 0
	}
	if next > event.Capacity {
		next = event.Capacity
	}
	event.CurrentAttendees = next
	s.entities[id] = event
	s.mu.Unlock()
	s.notify()
}

// CachedByID returns the cached event without a network call.
func (s *Store) CachedByID(id string) (Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	event, ok := s.entities[id]
	return event, ok
}

// CachedList returns the cached page for the filter, reporting false when
// that slice has not been fetched since the last invalidation.
func (s *Store) CachedList(filter Filter) ([]Event, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[filter.fingerprint()]
	if !ok {
		return nil, false
	}
	return s.collect(page.ids), true
}

// CachedMine returns the cached my-events view.
func (s *Store) CachedMine() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(s.mine.ids)
}

// CachedPending returns the cached approval queue.
func (s *Store) CachedPending() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.collect(s.pending.ids)
}

// IsPast evaluates the derived temporal state against the store clock.
func (s *Store) IsPast(event Event) bool {
	return event.Past(s.now())
}

// IsOngoing evaluates the derived temporal state against the store clock.
func (s *Store) IsOngoing(event Event) bool {
	return event.Ongoing(s.now())
}

// replaceView swaps a derived view's contents for fresh server results.
func (s *Store) replaceView(view *viewList, events []Event) {
	s.mu.Lock()
	ids := make([]string, 0, len(events))
	for _, event := range events {
		s.entities[event.ID] = event
		ids = append(ids, event.ID)
	}
	*view = viewList{ids: ids, loaded: true}
	s.mu.Unlock()
	s.notify()
}

// viewSnapshot captures the state needed to undo an optimistic removal.
type viewSnapshot struct {
	entity  Event
	existed bool
	pages   map[string][]string
	mine    []string
	pending []string
}

// snapshotViews copies the id slices that reference id; callers hold mu.
func (s *Store) snapshotViews(id string) viewSnapshot {
	snapshot := viewSnapshot{pages: map[string][]string{}}
	snapshot.entity, snapshot.existed = s.entities[id]
	for key, page := range s.pages {
		if containsID(page.ids, id) {
			snapshot.pages[key] = append([]string(nil), page.ids...)
		}
	}
	if containsID(s.mine.ids, id) {
		snapshot.mine = append([]string(nil), s.mine.ids...)
	}
	if containsID(s.pending.ids, id) {
		snapshot.pending = append([]string(nil), s.pending.ids...)
	}
	return snapshot
}

// dropFromViews removes id from every view list; callers hold mu.
func (s *Store) dropFromViews(id string) {
	for key, page := range s.pages {
		if containsID(page.ids, id) {
			page.ids = removeID(page.ids, id)
			s.pages[key] = page
		}
	}
	s.mine.ids = removeID(s.mine.ids, id)
	s.pending.ids = removeID(s.pending.ids, id)
}

// restoreViews undoes dropFromViews using the snapshot; callers hold mu.
func (s *Store) restoreViews(id string, snapshot viewSnapshot) {
	if snapshot.existed {
		s.entities[id] = snapshot.entity
	}
	for key, ids := range snapshot.pages {
		if page, ok := s.pages[key]; ok {
			page.ids = ids
			s.pages[key] = page
		}
	}
	if snapshot.mine != nil {
		s.mine.ids = snapshot.mine
	}
	if snapshot.pending != nil {
		s.pending.ids = snapshot.pending
	}
}

// collect resolves ids against the entity table; callers hold mu.
func (s *Store) collect(ids []string) []Event {
	events := make([]Event, 0, len(ids))
	for _, id := range ids {
		if event, ok := s.entities[id]; ok {
			events = append(events, event)
		}
	}
	return events
}

func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

func containsID(ids []string, id string) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

func removeID(ids []string, id string) []string {
	filtered := ids[:0]
	for _, candidate := range ids {
		if candidate != id {
			filtered = append(filtered, candidate)
		}
	}
	return filtered
}
