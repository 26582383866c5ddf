package pipeline

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewJobID returns a lexicographically sortable job ID.
func NewJobID() string {
	return ulid.Make().String()
}

// NewRequestID returns a random request ID; report directories are keyed
// by it.
func NewRequestID() string {
	return uuid.NewString()
}
