package uuid

import (
	"github.com/google/uuid"
)

// NewString returns a new random V4 UUID string, used to suffix temporary
// files placed next to their final destination so that concurrent fetches
// of the same file never collide. Panics on error to maintain
// compatibility with google/uuid's NewString() method.
func NewString() string {
	return uuid.Must(uuid.NewRandom()).String()
}
