// Package ids generates identifiers: unguessable session ids and sortable
// event/token ids.
package ids

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a random (version 4) UUID. Session ids are bearer
// secrets for revocation purposes, so they must come from crypto/rand.
func NewSessionID() string {
	return uuid.NewString()
}

// New returns a ULID, lexically sortable by creation time.
func New() string {
	return ulid.Make().String()
}
