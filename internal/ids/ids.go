// Package ids generates the identifiers used as storage keys. ULIDs sort
// by creation time, which keeps index pages warm on append-heavy tables.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy = ulid.Monotonic(rand.Reader, 0)
)

// New returns a fresh identifier stamped with the current time.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns an identifier whose time component is t. Used when the
// record carries its own capture timestamp.
func NewAt(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
