// Package idgen generates lexicographically sortable unique identifiers.
package idgen

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

// NewSortableID returns a ULID. IDs generated within one process are
// monotonically increasing, which keeps event rows and queue receipts
// ordered by creation.
func NewSortableID() string {
	mu.Lock()
	defer mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
