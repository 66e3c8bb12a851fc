package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier used as the primary key
// of users and organizations.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Suffix returns the last n characters of a fresh identifier in lower case.
// The tail of a ULID carries the random component, so it is usable as a
// disambiguator in URL slugs.
func Suffix(n int) string {
	id := strings.ToLower(New())
	if n <= 0 || n >= len(id) {
		return id
	}
	return id[len(id)-n:]
}
