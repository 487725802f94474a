// Package id generates URL-safe identifiers.
//
// Identifiers are UUIDv4 bytes encoded as base32 (RFC 4648) with no
// padding: 26 characters, lowercase, safe for URLs and file paths.
package id

import (
	"encoding/base32"
	"strings"

	"github.com/google/uuid"
)

// draftPrefix marks identifiers minted locally for optimistic records
// that have not been confirmed by the server yet.
const draftPrefix = "draft-"

// New generates a URL-safe identifier.
func New() string {
	raw := uuid.New()
	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw[:])
	return strings.ToLower(encoded)
}

// NewDraft generates a placeholder identifier for an optimistic record.
// The prefix keeps local placeholders distinguishable from server ids, so
// a reconcile can never confuse the two.
func NewDraft() string {
	return draftPrefix + New()
}

// IsDraft reports whether an identifier is a local placeholder.
func IsDraft(id string) bool {
	return strings.HasPrefix(id, draftPrefix)
}
