// Package clock provides the injected time source and monotone ID minting
// used throughout the core (§4.2). No package in this module calls
// time.Now directly outside of this one, so tests can fully control time.
package clock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// ISOLayout is the strict ISO-8601 / RFC3339 layout every timestamp in the
// core is validated and rendered against.
const ISOLayout = time.RFC3339

// Source yields the current instant as an ISO-8601 string. Production code
// wraps time.Now(); tests wrap a fixed or stepped instant.
type Source interface {
	NowISO() string
}

// Func adapts a plain function into a Source.
type Func func() string

// NowISO implements Source.
func (f Func) NowISO() string { return f() }

// System returns a Source backed by the real wall clock.
func System() Source {
	return Func(func() string {
		return time.Now().UTC().Format(ISOLayout)
	})
}

// Fixed returns a Source that always reports the same instant, useful for
// deterministic tests and for the AUTHZ_NOW_ISO configuration fallback.
func Fixed(iso string) Source {
	return Func(func() string { return iso })
}

// ParseStrict parses s as RFC3339 (ISO-8601), rejecting any other layout.
// Every caller-supplied now_iso / recorded_at / expires_at value in the
// core must go through this function; a parse failure is always surfaced
// as CONSTRAINT_VIOLATION by the caller.
func ParseStrict(s string) (time.Time, error) {
	t, err := time.Parse(ISOLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("clock: invalid ISO-8601 timestamp %q: %w", s, err)
	}
	return t, nil
}

// MillisSince returns t as whole milliseconds since the Unix epoch, the unit
// the ledger's stable sort key (recorded_at_ms) is expressed in.
func MillisSince(t time.Time) int64 {
	return t.UnixMilli()
}

// Counters mints monotone per-entity IDs of the form "<prefix>_<zero-padded
// counter>" from in-memory counters, one per entity kind. It is safe for
// concurrent use; callers outside the single-writer path (§5) should not
// rely on ordering across kinds, only within a kind.
type Counters struct {
	mu     sync.Mutex
	values map[string]uint64
	width  int
}

// NewCounters builds a Counters with a fixed zero-padding width of 10
// digits, ample for the lifetime of any single process.
func NewCounters() *Counters {
	return &Counters{values: make(map[string]uint64), width: 10}
}

// Next increments the named counter and renders "<prefix>_<padded n>".
func (c *Counters) Next(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[prefix]++
	return fmt.Sprintf("%s_%0*d", prefix, c.width, c.values[prefix])
}

// Peek returns the current value of the named counter without advancing it.
func (c *Counters) Peek(prefix string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.values[prefix]
}

// DeterministicID renders "<prefix>_<first 16 hex chars of SHA-256(input)>",
// the form used for content-addressed identifiers such as evaluation_id.
func DeterministicID(prefix, input string) string {
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf("%s_%s", prefix, hex.EncodeToString(sum[:])[:16])
}
