// Package ledger implements the append-only event ledger (§3, §4.5); each
// entry carries its own tenant and kind, following
// proposalState.GovernanceAppendAudit(entry) (*AuditRecord, error)'s shape:
// appends return the minted entry (with its assigned id and sequence
// index) rather than a bare error.
package ledger

import (
	"sort"

	"marketcore/internal/clock"
)

// Entry is one append-only ledger record (§3). Payload is an
// already-canonical-JSON-encodable value specific to the ledger Kind;
// this package only cares about ordering and retention, never payload
// shape.
type Entry struct {
	EntryID       string
	SequenceIndex uint64
	Timestamp     string // ISO-8601, validated by the writer before Append
	Kind          string
	Tenant        string
	Payload       any
}

// Stream is one append-only ordered sequence, plus its monotone counter.
// Entries of several tenants and kinds may share one Stream.
type Stream struct {
	entries []Entry
	counter *clock.Counters
	idPrefix string
}

// NewStream builds an empty Stream whose entry ids are minted as
// "<idPrefix>_<counter>".
func NewStream(idPrefix string) *Stream {
	return &Stream{counter: clock.NewCounters(), idPrefix: idPrefix}
}

// Append mints a new entry id and sequence index, appends the entry, and
// returns the minted Entry. timestamp must already be validated
// (clock.ParseStrict) by the caller; Append does not reject malformed
// timestamps itself — that's a writer-side CONSTRAINT_VIOLATION, not a
// ledger invariant.
func (s *Stream) Append(tenant, kind, timestamp string, payload any) Entry {
	seq := s.counter.Peek(s.idPrefix) + 1
	entry := Entry{
		EntryID:       s.counter.Next(s.idPrefix),
		SequenceIndex: seq,
		Timestamp:     timestamp,
		Kind:          kind,
		Tenant:        tenant,
		Payload:       payload,
	}
	s.entries = append(s.entries, entry)
	return entry
}

// All returns every entry in the stream, of every tenant and kind, as
// stored, in append order. Callers that need export ordering should use Sorted.
func (s *Stream) All() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// ForTenant filters All() to a single tenant.
func (s *Stream) ForTenant(tenant string) []Entry {
	var out []Entry
	for _, e := range s.entries {
		if e.Tenant == tenant {
			out = append(out, e)
		}
	}
	return out
}

// Sorted orders entries by (recorded_at_ms, entry_id) ascending, §4.5's
// export ordering rule. Entries whose Timestamp fails strict ISO parsing
// are dropped from the result (they are disqualified from export, §4.5),
// and returned separately so callers can log/ignore them.
func Sorted(entries []Entry) (ordered []Entry, disqualified []Entry) {
	type keyed struct {
		ms    int64
		entry Entry
	}
	keyedEntries := make([]keyed, 0, len(entries))
	for _, e := range entries {
		ts, err := clock.ParseStrict(e.Timestamp)
		if err != nil {
			disqualified = append(disqualified, e)
			continue
		}
		keyedEntries = append(keyedEntries, keyed{ms: clock.MillisSince(ts), entry: e})
	}
	sort.SliceStable(keyedEntries, func(i, j int) bool {
		if keyedEntries[i].ms != keyedEntries[j].ms {
			return keyedEntries[i].ms < keyedEntries[j].ms
		}
		return keyedEntries[i].entry.EntryID < keyedEntries[j].entry.EntryID
	})
	ordered = make([]Entry, 0, len(keyedEntries))
	for _, k := range keyedEntries {
		ordered = append(ordered, k.entry)
	}
	return ordered, disqualified
}
