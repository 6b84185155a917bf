package shared

import (
	"github.com/google/uuid"
)

// IDGenerator produces identifiers for entries owned by an aggregate.
type IDGenerator func() string

// NewLocalID returns a time-ordered identifier. Entries created later sort
// after entries created earlier, which keeps insertion order recoverable.
func NewLocalID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
