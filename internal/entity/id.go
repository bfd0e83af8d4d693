package entity

import "github.com/oklog/ulid/v2"

// NewID returns a new lexically sortable identifier for identities and courses.
func NewID() string {
	return ulid.Make().String()
}
