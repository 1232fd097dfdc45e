package liveproxy

import (
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// IDGenerator mints identifiers for proxy instances and auto-generated
// push keys. Identifier generation is named in spec §1 as
// an external collaborator; this module's default is backed by ULIDs,
// following the convention used throughout the retrieved blueprints
// (localbase, chat, bi, cms all mint entity IDs with oklog/ulid) so that
// generated keys sort lexicographically by creation time, matching the
// "push" ordering semantics object collections rely on.
type IDGenerator func() string

var defaultEntropy struct {
	mu sync.Mutex
	r  *ulid.MonotonicEntropy
}

func init() {
	defaultEntropy.r = ulid.Monotonic(rand.Reader, 0)
}

// DefaultIDGenerator returns monotonically-sortable ULIDs, lower-cased to
// read comfortably as map keys.
func DefaultIDGenerator() string {
	defaultEntropy.mu.Lock()
	defer defaultEntropy.mu.Unlock()
	id := ulid.MustNew(ulid.Timestamp(time.Now()), defaultEntropy.r)
	return strings.ToLower(id.String())
}
