package rsvp

import (
	"context"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/campushq/campushq/internal/client/api"
	"github.com/campushq/campushq/internal/client/catalog"
	"github.com/campushq/campushq/internal/client/session"
	apperrors "github.com/campushq/campushq/internal/platform/errors"
)

type fakePipeline struct {
	t         *testing.T
	calls     []string
	responses map[string]any
	errs      map[string]error
}

func newFakePipeline(t *testing.T) *fakePipeline {
	return &fakePipeline{t: t, responses: map[string]any{}, errs: map[string]error{}}
}

func (f *fakePipeline) roundTrip(method, path string, out any) (api.Meta, error) {
	key := method + " " + path
	f.calls = append(f.calls, key)
	if err := f.errs[key]; err != nil {
		return api.Meta{}, err
	}
	if response, ok := f.responses[key]; ok && out != nil {
		encoded, err := json.Marshal(response)
		if err != nil {
			f.t.Fatalf("encode scripted response: %v", err)
		}
		if err := json.Unmarshal(encoded, out); err != nil {
			f.t.Fatalf("decode scripted response: %v", err)
		}
	}
	return api.Meta{}, nil
}

func (f *fakePipeline) Get(_ context.Context, path string, _ url.Values, out any) (api.Meta, error) {
	return f.roundTrip("GET", path, out)
}

func (f *fakePipeline) Post(_ context.Context, path string, _ any, out any) (api.Meta, error) {
	return f.roundTrip("POST", path, out)
}

func (f *fakePipeline) Put(_ context.Context, path string, _ any, out any) (api.Meta, error) {
	return f.roundTrip("PUT", path, out)
}

func (f *fakePipeline) Delete(_ context.Context, path string, out any) (api.Meta, error) {
	return f.roundTrip("DELETE", path, out)
}

// fakeEvents is an EventSource over a fixed event table, recording every
// attendee adjustment.
type fakeEvents struct {
	events      map[string]catalog.Event
	adjustments []int
}

func (f *fakeEvents) CachedByID(id string) (catalog.Event, bool) {
	event, ok := f.events[id]
	return event, ok
}

func (f *fakeEvents) AdjustAttendees(id string, delta int) {
	f.adjustments = append(f.adjustments, delta)
	event, ok := f.events[id]
	if !ok {
		return
	}
	event.CurrentAttendees += delta
	if event.CurrentAttendees < 0 {
		event.CurrentAttendees = 0
	}
	if event.CurrentAttendees > event.Capacity {
		event.CurrentAttendees = event.Capacity
	}
	f.events[id] = event
}

func (f *fakeEvents) total() int {
	sum := 0
	for _, delta := range f.adjustments {
		sum += delta
	}
	return sum
}

var testNow = time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)

func upcomingEvent(id string, capacity, attendees int) catalog.Event {
	return catalog.Event{
		ID:               id,
		Title:            "Career Fair",
		Date:             "2026-09-15",
		Time:             "10:00",
		EndDate:          "2026-09-15",
		EndTime:          "16:00",
		Capacity:         capacity,
		CurrentAttendees: attendees,
		Status:           catalog.StatusApproved,
	}
}

func studentSessions(t *testing.T) *session.Store {
	t.Helper()
	sessions, err := session.NewStore(nil)
	if err != nil {
		t.Fatalf("new session store: %v", err)
	}
	if err := sessions.Set(session.Session{
		User:         session.User{ID: "user-1", Role: session.RoleStudent},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	return sessions
}

func newTestLedger(t *testing.T, pipeline *fakePipeline, events *fakeEvents) *Ledger {
	t.Helper()
	ledger := NewLedger(pipeline, studentSessions(t), events)
	ledger.now = func() time.Time { return testNow }
	return ledger
}

func TestAddHappyPath(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", UserID: "user-1", Status: StatusAttending}
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 1)}}
	ledger := newTestLedger(t, pipeline, events)

	ok, err := ledger.Add(context.Background(), "E1", Options{})
	if err != nil || !ok {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}

	if len(pipeline.calls) != 1 || pipeline.calls[0] != "POST /rsvp/E1" {
		t.Fatalf("calls = %v", pipeline.calls)
	}
	cached := ledger.Cached()
	if len(cached) != 1 || cached[0].Status != StatusAttending {
		t.Fatalf("cached = %+v", cached)
	}
	if events.events["E1"].CurrentAttendees != 2 {
		t.Fatalf("attendees = %d, want 2", events.events["E1"].CurrentAttendees)
	}
}

func TestAddFullEventFailsLocally(t *testing.T) {
	pipeline := newFakePipeline(t)
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 2)}}
	ledger := newTestLedger(t, pipeline, events)

	ok, err := ledger.Add(context.Background(), "E1", Options{})
	if ok {
		t.Fatal("expected add to fail")
	}
	if !apperrors.IsCode(err, apperrors.CodeEventFull) {
		t.Fatalf("expected EVENT_FULL, got %v", err)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("expected zero network calls, got %v", pipeline.calls)
	}
}

func TestAddCountsGuestsTowardCapacity(t *testing.T) {
	pipeline := newFakePipeline(t)
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 10, 8)}}
	ledger := newTestLedger(t, pipeline, events)

	// 8 attending + 1 + 2 guests = 11 > 10.
	ok, err := ledger.Add(context.Background(), "E1", Options{Guests: 2})
	if ok || !apperrors.IsCode(err, apperrors.CodeEventFull) {
		t.Fatalf("expected EVENT_FULL, got ok=%v err=%v", ok, err)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("expected zero network calls, got %v", pipeline.calls)
	}

	// 8 + 1 + 1 = 10 fits exactly.
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending, NumberOfGuests: 1}
	ok, err = ledger.Add(context.Background(), "E1", Options{Guests: 1})
	if err != nil || !ok {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}
	if events.events["E1"].CurrentAttendees != 10 {
		t.Fatalf("attendees = %d, want 10", events.events["E1"].CurrentAttendees)
	}
}

func TestAddAdminForbidden(t *testing.T) {
	pipeline := newFakePipeline(t)
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 10, 0)}}
	sessions, _ := session.NewStore(nil)
	if err := sessions.Set(session.Session{
		User:         session.User{ID: "admin-1", Role: session.RoleAdmin},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}); err != nil {
		t.Fatalf("set session: %v", err)
	}
	ledger := NewLedger(pipeline, sessions, events)

	ok, err := ledger.Add(context.Background(), "E1", Options{})
	if ok || !apperrors.IsCode(err, apperrors.CodeForbidden) {
		t.Fatalf("expected FORBIDDEN, got ok=%v err=%v", ok, err)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("expected zero network calls, got %v", pipeline.calls)
	}
}

func TestAddDuplicateShortCircuits(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending}
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 10, 0)}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); !ok || err != nil {
		t.Fatalf("first add: ok=%v err=%v", ok, err)
	}
	calls := len(pipeline.calls)

	ok, err := ledger.Add(context.Background(), "E1", Options{})
	if ok || !apperrors.IsCode(err, apperrors.CodeAlreadyRSVPed) {
		t.Fatalf("expected ALREADY_RSVPED, got ok=%v err=%v", ok, err)
	}
	if len(pipeline.calls) != calls {
		t.Fatalf("duplicate add reached the network: %v", pipeline.calls)
	}
}

func TestAddRejectsUnapprovedAndEndedEvents(t *testing.T) {
	pending := upcomingEvent("E1", 10, 0)
	pending.Status = catalog.StatusPending
	ended := upcomingEvent("E2", 10, 0)
	ended.Date, ended.EndDate = "2026-08-01", "2026-08-01"

	pipeline := newFakePipeline(t)
	events := &fakeEvents{events: map[string]catalog.Event{"E1": pending, "E2": ended}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); ok || !apperrors.IsCode(err, apperrors.CodeEventNotApproved) {
		t.Fatalf("expected EVENT_NOT_APPROVED, got ok=%v err=%v", ok, err)
	}
	if ok, err := ledger.Add(context.Background(), "E2", Options{}); ok || !apperrors.IsCode(err, apperrors.CodeEventEnded) {
		t.Fatalf("expected EVENT_ENDED, got ok=%v err=%v", ok, err)
	}
	if len(pipeline.calls) != 0 {
		t.Fatalf("expected zero network calls, got %v", pipeline.calls)
	}
}

func TestAddNetworkFailureLeavesCacheUntouched(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.errs["POST /rsvp/E1"] = apperrors.New(apperrors.CodeNetwork, "service unreachable")
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 10, 0)}}
	ledger := newTestLedger(t, pipeline, events)

	ok, err := ledger.Add(context.Background(), "E1", Options{})
	if ok || !apperrors.IsCode(err, apperrors.CodeNetwork) {
		t.Fatalf("expected NETWORK, got ok=%v err=%v", ok, err)
	}
	if len(ledger.Cached()) != 0 {
		t.Fatalf("cache = %+v, want empty", ledger.Cached())
	}
	if len(events.adjustments) != 0 {
		t.Fatalf("adjustments = %v, want none", events.adjustments)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending}
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 1)}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); !ok || err != nil {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}

	ok, err := ledger.Remove(context.Background(), "E1")
	if !ok || err != nil {
		t.Fatalf("first remove: ok=%v err=%v", ok, err)
	}
	ok, err = ledger.Remove(context.Background(), "E1")
	if !ok || err != nil {
		t.Fatalf("second remove: ok=%v err=%v", ok, err)
	}

	deletes := 0
	for _, call := range pipeline.calls {
		if call == "DELETE /rsvp/E1" {
			deletes++
		}
	}
	if deletes != 1 {
		t.Fatalf("delete calls = %d, want 1 (second remove is a local no-op)", deletes)
	}
	// +1 from add, -1 from the single effective remove.
	if events.total() != 0 {
		t.Fatalf("net adjustment = %d, want 0", events.total())
	}
}

func TestRemoveNetworkFailureKeepsRSVP(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending}
	pipeline.errs["DELETE /rsvp/E1"] = apperrors.New(apperrors.CodeNetwork, "service unreachable")
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 1)}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); !ok || err != nil {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}

	ok, err := ledger.Remove(context.Background(), "E1")
	if ok || !apperrors.IsCode(err, apperrors.CodeNetwork) {
		t.Fatalf("expected NETWORK, got ok=%v err=%v", ok, err)
	}
	if len(ledger.Cached()) != 1 {
		t.Fatal("RSVP should remain cached after a failed cancel")
	}
}

func TestRemoveToleratesServerNotFound(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending}
	pipeline.errs["DELETE /rsvp/E1"] = apperrors.New(apperrors.CodeNotFound, "no rsvp")
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 1)}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); !ok || err != nil {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}

	ok, err := ledger.Remove(context.Background(), "E1")
	if !ok || err != nil {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if len(ledger.Cached()) != 0 {
		t.Fatal("cache should drop the RSVP the server already forgot")
	}
}

func TestUpdateShiftsGuestDelta(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending, NumberOfGuests: 1}
	pipeline.responses["PUT /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending, NumberOfGuests: 3}
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 10, 0)}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{Guests: 1}); !ok || err != nil {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}
	// add contributed +2 (self + 1 guest)
	updated, err := ledger.Update(context.Background(), "E1", Options{Guests: 3})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.NumberOfGuests != 3 {
		t.Fatalf("guests = %d, want 3", updated.NumberOfGuests)
	}
	if events.total() != 4 {
		t.Fatalf("net adjustment = %d, want 4 (2 from add, 2 from update)", events.total())
	}
}

func TestCheckStatusReconcilesExternalCancel(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending}
	pipeline.responses["GET /rsvp/check/E1"] = StatusResult{HasRSVPed: false}
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 1)}}
	ledger := newTestLedger(t, pipeline, events)

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); !ok || err != nil {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}

	result, err := ledger.CheckStatus(context.Background(), "E1")
	if err != nil {
		t.Fatalf("check status: %v", err)
	}
	if result.HasRSVPed {
		t.Fatal("server said no RSVP")
	}
	if len(ledger.Cached()) != 0 {
		t.Fatal("cache should reconcile to the server's answer")
	}
}

func TestSessionClearEmptiesLedger(t *testing.T) {
	pipeline := newFakePipeline(t)
	pipeline.responses["POST /rsvp/E1"] = RSVP{ID: "R1", EventID: "E1", Status: StatusAttending}
	events := &fakeEvents{events: map[string]catalog.Event{"E1": upcomingEvent("E1", 2, 1)}}

	sessions := studentSessions(t)
	ledger := NewLedger(pipeline, sessions, events)
	ledger.now = func() time.Time { return testNow }

	if ok, err := ledger.Add(context.Background(), "E1", Options{}); !ok || err != nil {
		t.Fatalf("add: ok=%v err=%v", ok, err)
	}
	if err := sessions.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if len(ledger.Cached()) != 0 {
		t.Fatal("ledger must be empty immediately after logout")
	}
}

func TestUnmarshalToleratesEventShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"eventId field", `{"id": "R1", "eventId": "E1", "status": "attending"}`, "E1"},
		{"event as string", `{"id": "R1", "event": "E2", "status": "attending"}`, "E2"},
		{"event as object", `{"id": "R1", "event": {"id": "E3", "title": "x"}, "status": "attending"}`, "E3"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var record RSVP
			if err := json.Unmarshal([]byte(tc.body), &record); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if record.EventID != tc.want {
				t.Fatalf("event id = %q, want %q", record.EventID, tc.want)
			}
		})
	}
}
