// Package catalog maintains the client-side projection of platform events.
//
// The server is authoritative; this cache is advisory. Mutations apply
// optimistically and reconcile against the server response, rolling back to
// a pre-mutation snapshot on failure. Entities live in one normalized table
// with derived view key lists, so an event can not drift between the main,
// my-events and pending views.
package catalog

import (
	"time"
)

// Status is the server-side lifecycle state of an event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// Event is one campus event as the platform reports it.
//
// Invariant: 0 <= CurrentAttendees <= Capacity. Temporal state ("past",
// "ongoing") is derived at read time and never stored; an approved event
// becomes past purely by the clock advancing.
type Event struct {
	ID               string   `json:"id"`
	Title            string   `json:"title"`
	Description      string   `json:"description"`
	Date             string   `json:"date"`
	Time             string   `json:"time"`
	EndDate          string   `json:"endDate,omitempty"`
	EndTime          string   `json:"endTime,omitempty"`
	Location         string   `json:"location"`
	Category         string   `json:"category"`
	Tags             []string `json:"tags,omitempty"`
	Capacity         int      `json:"capacity"`
	CurrentAttendees int      `json:"currentAttendees"`
	Status           Status   `json:"status"`
	CreatedBy        string   `json:"createdBy"`
	RejectionReason  string   `json:"rejectionReason,omitempty"`
}

const (
	dateLayout     = "2006-01-02"
	dateTimeLayout = "2006-01-02 15:04"
)

// StartsAt parses the event's start timestamp, reporting false when the
// date field is unparseable.
func (e Event) StartsAt() (time.Time, bool) {
	return parseWhen(e.Date, e.Time)
}

// EndsAt parses the event's end timestamp. Events without an end date or
// time have no end; temporal checks then fall back to the start.
func (e Event) EndsAt() (time.Time, bool) {
	endDate := e.EndDate
	if endDate == "" {
		if e.EndTime == "" {
			return time.Time{}, false
		}
		endDate = e.Date
	}
	return parseWhen(endDate, e.EndTime)
}

// Past reports whether the event is over: terminal status, or an end
// timestamp behind the clock. Events without an end never become past on
// time alone; the server marks them completed.
func (e Event) Past(now time.Time) bool {
	if e.Status == StatusCompleted || e.Status == StatusCancelled {
		return true
	}
	end, ok := e.EndsAt()
	if !ok {
		return false
	}
	return end.Before(now)
}

// Ongoing reports whether the event is approved and currently running: the
// clock is within [start, end], or beyond start when no end is given.
func (e Event) Ongoing(now time.Time) bool {
	if e.Status != StatusApproved || e.Past(now) {
		return false
	}
	start, ok := e.StartsAt()
	if !ok {
		return false
	}
	if now.Before(start) {
		return false
	}
	if end, hasEnd := e.EndsAt(); hasEnd {
		return !now.After(end)
	}
	return true
}

// SpotsLeft returns the remaining capacity including guests already counted.
func (e Event) SpotsLeft() int {
	left := e.Capacity - e.CurrentAttendees
	if left < 0 {
		return 0
	}
	return left
}

func parseWhen(date, clock string) (time.Time, bool) {
	if date == "" {
		return time.Time{}, false
	}
	if clock != "" {
		if parsed, err := time.Parse(dateTimeLayout, date+" "+clock); err == nil {
			return parsed, true
		}
	}
	parsed, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}

// Draft is the user-authored content of a new event. The server assigns the
// id and forces status to pending.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Time        string   `json:"time"`
	EndDate     string   `json:"endDate,omitempty"`
	EndTime     string   `json:"endTime,omitempty"`
	Location    string   `json:"location"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags,omitempty"`
	Capacity    int      `json:"capacity"`
}

// Patch is a partial update; nil fields are left untouched.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Date        *string   `json:"date,omitempty"`
	Time        *string   `json:"time,omitempty"`
	EndDate     *string   `json:"endDate,omitempty"`
	EndTime     *string   `json:"endTime,omitempty"`
	Location    *string   `json:"location,omitempty"`
	Category    *string   `json:"category,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	Capacity    *int      `json:"capacity,omitempty"`
}

// apply merges the patch into a copy of the event.
func (p Patch) apply(event Event) Event {
	if p.Title != nil {
		event.Title = *p.Title
	}
	if p.Description != nil {
		event.Description = *p.Description
	}
	if p.Date != nil {
		event.Date = *p.Date
	}
	if p.Time != nil {
		event.Time = *p.Time
	}
	if p.EndDate != nil {
		event.EndDate = *p.EndDate
	}
	if p.EndTime != nil {
		event.EndTime = *p.EndTime
	}
	if p.Location != nil {
		event.Location = *p.Location
	}
	if p.Category != nil {
		event.Category = *p.Category
	}
	if p.Tags != nil {
		event.Tags = append([]string(nil), (*p.Tags)...)
	}
	if p.Capacity != nil {
		event.Capacity = *p.Capacity
	}
	return event
}

// Stats is the aggregate event report from /events/stats.
type Stats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Approved  int `json:"approved"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
	Upcoming  int `json:"upcoming"`
}
