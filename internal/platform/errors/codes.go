// Package errors provides structured error handling for the client core.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Transport errors
	CodeNetwork Code = "NETWORK"
	CodeTimeout Code = "TIMEOUT"

	// Auth errors
	CodeAuthExpired        Code = "AUTH_EXPIRED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotSignedIn        Code = "NOT_SIGNED_IN"
	CodeAdminRequired      Code = "ADMIN_REQUIRED"
	CodeRefreshMissing     Code = "REFRESH_TOKEN_MISSING"
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS"

	// Request errors
	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeConflict   Code = "CONFLICT"

	// Event errors
	CodeEventNotCached      Code = "EVENT_NOT_CACHED"
	CodeEventNotApproved    Code = "EVENT_NOT_APPROVED"
	CodeEventEnded          Code = "EVENT_ENDED"
	CodeEventFull           Code = "EVENT_FULL"
	CodeRejectReasonEmpty   Code = "REJECT_REASON_EMPTY"
	CodeRejectReasonTooLong Code = "REJECT_REASON_TOO_LONG"

	// RSVP errors
	CodeAlreadyRSVPed Code = "ALREADY_RSVPED"
	CodeInvalidGuests Code = "INVALID_GUEST_COUNT"
)

// FromStatus maps an HTTP response status to the closest error code.
// 401 is mapped by the request pipeline itself because its meaning depends
// on whether a refresh attempt is still available.
func FromStatus(status int) Code {
	switch {
	case status == http.StatusUnauthorized:
		return CodeAuthExpired
	case status == http.StatusForbidden:
		return CodeForbidden
	case status == http.StatusNotFound:
		return CodeNotFound
	case status == http.StatusConflict:
		return CodeConflict
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return CodeValidation
	case status >= 500:
		return CodeNetwork
	default:
		return CodeUnknown
	}
}
