package model

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// NewID generates a new ULID string for use as an entity identifier.
func NewID() string {
	return ulid.Make().String()
}

// NewToken generates an opaque session credential. Tokens are ULIDs in
// lower case so they read differently from entity identifiers in logs.
func NewToken() string {
	id := ulid.Make()
	return strings.ToLower(id.String())
}
