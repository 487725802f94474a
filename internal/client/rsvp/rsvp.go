// Package rsvp maintains the signed-in user's RSVP set.
//
// The ledger enforces the capacity invariant defensively before any network
// round trip: a full event, a past event, or a duplicate RSVP fails locally
// with zero network calls. Attendee counts on cached events are optimistic
// projections reconciled through the catalog.
package rsvp

import (
	"encoding/json"
)

// Status is the lifecycle state of one RSVP.
type Status string

const (
	StatusAttending  Status = "attending"
	StatusWaitlisted Status = "waitlisted"
	StatusCancelled  Status = "cancelled"
)

// RSVP is one user's reservation against an event.
//
// Invariant: at most one active RSVP per (user, event); NumberOfGuests >= 0
// and guests count toward the event's capacity.
type RSVP struct {
	ID                 string `json:"id"`
	EventID            string `json:"eventId"`
	UserID             string `json:"userId"`
	Status             Status `json:"status"`
	NumberOfGuests     int    `json:"numberOfGuests"`
	DietaryPreferences string `json:"dietaryPreferences,omitempty"`
}

// Active reports whether this RSVP still holds a spot.
func (r RSVP) Active() bool {
	return r.Status == StatusAttending || r.Status == StatusWaitlisted
}

// UnmarshalJSON tolerates the server returning the event reference either
// as an id string under "eventId" or as an embedded object under "event".
func (r *RSVP) UnmarshalJSON(data []byte) error {
	type plain RSVP
	aux := struct {
		*plain
		Event json.RawMessage `json:"event"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if r.EventID == "" && len(aux.Event) > 0 {
		var id string
		if err := json.Unmarshal(aux.Event, &id); err == nil {
			r.EventID = id
			return nil
		}
		var embedded struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(aux.Event, &embedded); err == nil {
			r.EventID = embedded.ID
		}
	}
	return nil
}

// Options carries the user-editable RSVP fields.
type Options struct {
	Guests             int    `json:"numberOfGuests"`
	DietaryPreferences string `json:"dietaryPreferences,omitempty"`
}

// Attendee is one row of an event's attendee listing.
type Attendee struct {
	UserID             string `json:"userId"`
	Name               string `json:"name"`
	NumberOfGuests     int    `json:"numberOfGuests"`
	DietaryPreferences string `json:"dietaryPreferences,omitempty"`
	Status             Status `json:"status"`
}
