// Package export implements the uniform export engine contract (§4.7)
// shared by every "*.export" operation: filter -> stable sort -> cursor
// slice -> page -> attest -> checkpoint -> persist checkpoint.
package export

import (
	"fmt"

	"marketcore/internal/apperr"
	"marketcore/internal/attest"
	"marketcore/internal/canon"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// Query is the parsed, validated query for one export call.
type Query struct {
	FromISO          string
	ToISO            string
	Limit            int
	CursorAfter      string
	AttestationAfter string
	CheckpointAfter  string
	NowISO           string
	ExportedAtISO    string
	Extra            map[string]any // contract-specific filter fields, already validated by the caller
}

// Raw renders the query as the canonical map used for the envelope's
// "query" field and for the checkpoint's query_context_fingerprint.
func (q Query) Raw() map[string]any {
	out := map[string]any{}
	for k, v := range q.Extra {
		out[k] = v
	}
	if q.FromISO != "" {
		out["from_iso"] = q.FromISO
	}
	if q.ToISO != "" {
		out["to_iso"] = q.ToISO
	}
	if q.Limit != 0 {
		out["limit"] = q.Limit
	}
	return out
}

const defaultLimit = 50

// ParseQuery validates the recognized query keys against allowedExtraKeys
// (contract-specific, beyond the universal window/cursor/limit keys) and
// extracts the common fields. Unknown keys in raw fail CONSTRAINT_VIOLATION
// per §4.7 step 1.
func ParseQuery(raw map[string]any, allowedExtraKeys map[string]struct{}) (Query, *apperr.Error) {
	universal := map[string]struct{}{
		"from_iso": {}, "to_iso": {}, "limit": {}, "cursor_after": {},
		"attestation_after": {}, "checkpoint_after": {}, "now_iso": {}, "exported_at_iso": {},
	}
	q := Query{Limit: defaultLimit, Extra: map[string]any{}}
	for key, val := range raw {
		if _, ok := universal[key]; ok {
			switch key {
			case "from_iso":
				q.FromISO, _ = val.(string)
			case "to_iso":
				q.ToISO, _ = val.(string)
			case "cursor_after":
				q.CursorAfter, _ = val.(string)
			case "attestation_after":
				q.AttestationAfter, _ = val.(string)
			case "checkpoint_after":
				q.CheckpointAfter, _ = val.(string)
			case "now_iso":
				q.NowISO, _ = val.(string)
			case "exported_at_iso":
				q.ExportedAtISO, _ = val.(string)
			case "limit":
				switch n := val.(type) {
				case int:
					q.Limit = n
				case float64:
					q.Limit = int(n)
				default:
					return Query{}, apperr.ConstraintViolation(apperr.ReasonUnknownQueryKey, "limit must be an integer", nil)
				}
			}
			continue
		}
		if _, ok := allowedExtraKeys[key]; ok {
			q.Extra[key] = val
			continue
		}
		return Query{}, apperr.ConstraintViolation(apperr.ReasonUnknownQueryKey, fmt.Sprintf("unrecognized query key %q", key), map[string]any{"key": key})
	}
	if q.Limit <= 0 {
		q.Limit = defaultLimit
	}
	if q.FromISO != "" && q.ToISO != "" {
		from, err1 := clock.ParseStrict(q.FromISO)
		to, err2 := clock.ParseStrict(q.ToISO)
		if err1 != nil || err2 != nil {
			return Query{}, apperr.ConstraintViolation(apperr.ReasonInvalidTimestamp, "from_iso/to_iso must be valid ISO-8601 timestamps", nil)
		}
		if !to.After(from) {
			return Query{}, apperr.ConstraintViolation(apperr.ReasonWindowInverted, "to_iso must be strictly after from_iso", nil)
		}
	}
	return q, nil
}

// CursorFunc renders the stable, entry-kind-specific cursor token for an
// entry (§4.7: commonly "recorded_at|entry_id", sometimes just "entry_id").
type CursorFunc func(ledger.Entry) string

// RecordedAtAndID is the common CursorFunc form.
func RecordedAtAndID(e ledger.Entry) string {
	return e.Timestamp + "|" + e.EntryID
}

// IDOnly is the simpler CursorFunc form used by streams whose id already
// encodes temporal order.
func IDOnly(e ledger.Entry) string {
	return e.EntryID
}

// CheckpointStore holds the per-tenant, per-export-contract checkpoint map
// (§3), keyed by the next_cursor value each checkpoint anchors.
type CheckpointStore struct {
	byContractTenant map[string]map[string]attest.Checkpoint // contract -> next_cursor -> checkpoint
}

// NewCheckpointStore builds an empty CheckpointStore.
func NewCheckpointStore() *CheckpointStore {
	return &CheckpointStore{byContractTenant: map[string]map[string]attest.Checkpoint{}}
}

func contractKey(contract, tenant string) string { return contract + "|" + tenant }

func (c *CheckpointStore) put(contract, tenant string, cp attest.Checkpoint) {
	key := contractKey(contract, tenant)
	if c.byContractTenant[key] == nil {
		c.byContractTenant[key] = map[string]attest.Checkpoint{}
	}
	c.byContractTenant[key][cp.NextCursor] = cp
}

func (c *CheckpointStore) get(contract, tenant, nextCursor string) (attest.Checkpoint, bool) {
	bucket, ok := c.byContractTenant[contractKey(contract, tenant)]
	if !ok {
		return attest.Checkpoint{}, false
	}
	cp, ok := bucket[nextCursor]
	return cp, ok
}

// Prune drops checkpoints whose exported_at is older than
// nowISO - retentionDays, matching §3's "checkpoints prune when now -
// exported_at > retention_window", applied lazily on each export (§5).
func (c *CheckpointStore) Prune(contract, tenant, nowISO string, retentionDays int) {
	now, err := clock.ParseStrict(nowISO)
	if err != nil {
		return
	}
	bucket, ok := c.byContractTenant[contractKey(contract, tenant)]
	if !ok {
		return
	}
	cutoff := now.AddDate(0, 0, -retentionDays)
	for cursor, cp := range bucket {
		exportedAt, err := clock.ParseStrict(cp.ExportedAt)
		if err != nil || exportedAt.Before(cutoff) {
			delete(bucket, cursor)
		}
	}
}

// Request bundles everything Run needs beyond the entry stream itself.
type Request struct {
	Contract        string // export-contract name, e.g. "inclusionProof.export"
	Tenant          string
	Query           Query
	RetentionDays   int
	CheckpointRetentionDays int
	EnforceCheckpoint bool
	CursorOf        CursorFunc
	Signer          *attest.Signer
	Checkpoints     *CheckpointStore
}

// Page is the result of one Run call, ready to be embedded in a response
// envelope under the export-contract's chosen field name (entries/bundles/
// linkages/publications/...).
type Page struct {
	ExportedAt    string
	Query         map[string]any
	Entries       []ledger.Entry
	TotalFiltered int
	NextCursor    string
	HasNext       bool
	Attestation   attest.Attestation
	Checkpoint    attest.Checkpoint
}

// Run executes the full export-engine contract (§4.7) over the given
// candidate entries (already tenant-scoped by the caller).
func Run(req Request, candidates []ledger.Entry, matches func(ledger.Entry) bool) (Page, *apperr.Error) {
	nowISO := req.Query.NowISO
	if nowISO == "" {
		nowISO = req.Query.ExportedAtISO
	}
	exportedAt := req.Query.ExportedAtISO
	if exportedAt == "" {
		exportedAt = nowISO
	}

	filtered := make([]ledger.Entry, 0, len(candidates))
	for _, e := range candidates {
		if req.Query.FromISO != "" || req.Query.ToISO != "" {
			ts, err := clock.ParseStrict(e.Timestamp)
			if err != nil {
				continue
			}
			if req.Query.FromISO != "" {
				from, _ := clock.ParseStrict(req.Query.FromISO)
				if ts.Before(from) {
					continue
				}
			}
			if req.Query.ToISO != "" {
				to, _ := clock.ParseStrict(req.Query.ToISO)
				if ts.After(to) {
					continue
				}
			}
		}
		if matches != nil && !matches(e) {
			continue
		}
		filtered = append(filtered, e)
	}

	if req.RetentionDays > 0 && exportedAt != "" {
		if cutoffTime, err := clock.ParseStrict(exportedAt); err == nil {
			cutoff := cutoffTime.AddDate(0, 0, -req.RetentionDays)
			kept := filtered[:0:0]
			for _, e := range filtered {
				ts, err := clock.ParseStrict(e.Timestamp)
				if err == nil && ts.Before(cutoff) {
					continue
				}
				kept = append(kept, e)
			}
			filtered = kept
		}
	}

	ordered, _ := ledger.Sorted(filtered)
	totalFiltered := len(ordered)

	cursorOf := req.CursorOf
	if cursorOf == nil {
		cursorOf = RecordedAtAndID
	}

	startIdx := 0
	if req.Query.CursorAfter != "" {
		found := -1
		for i, e := range ordered {
			if cursorOf(e) == req.Query.CursorAfter {
				found = i
				break
			}
		}
		if found == -1 {
			return Page{}, apperr.ConstraintViolation(apperr.ReasonCursorNotFound, "cursor_after does not match any entry in the filtered, sorted set", map[string]any{"cursor_after": req.Query.CursorAfter})
		}
		startIdx = found + 1

		if req.EnforceCheckpoint || req.Query.AttestationAfter != "" || req.Query.CheckpointAfter != "" {
			if req.Query.AttestationAfter == "" || req.Query.CheckpointAfter == "" {
				return Page{}, apperr.ConstraintViolation(apperr.ReasonCheckpointMissing, "cursor_after requires attestation_after and checkpoint_after", nil)
			}
			stored, ok := req.Checkpoints.get(req.Contract, req.Tenant, req.Query.CursorAfter)
			if !ok {
				return Page{}, apperr.ConstraintViolation(apperr.ReasonCheckpointAfterNotFound, "no checkpoint found for the supplied cursor_after", map[string]any{"cursor_after": req.Query.CursorAfter})
			}
			if stored.AttestationChainHash != req.Query.AttestationAfter {
				return Page{}, apperr.ConstraintViolation(apperr.ReasonCheckpointAttestationMismatch, "attestation_after does not match the stored checkpoint", map[string]any{
					"expected_attestation_chain_hash": stored.AttestationChainHash,
				})
			}
			if stored.CheckpointHash != req.Query.CheckpointAfter {
				return Page{}, apperr.ConstraintViolation(apperr.ReasonCheckpointNextCursorMismatch, "checkpoint_after does not match the stored checkpoint", map[string]any{
					"expected_checkpoint_hash": stored.CheckpointHash,
				})
			}
			fingerprint, fpErr := attest.QueryFingerprint(req.Query.Raw())
			if fpErr == nil && stored.QueryContextFingerprint != fingerprint {
				return Page{}, apperr.ConstraintViolation(apperr.ReasonCheckpointFingerprintMismatch, "query context changed between pages", map[string]any{
					"expected_query_context_fingerprint": stored.QueryContextFingerprint,
				})
			}
		}
	}

	end := startIdx + req.Query.Limit
	if end > len(ordered) {
		end = len(ordered)
	}
	if end < startIdx {
		end = startIdx
	}
	page := ordered[startIdx:end]
	hasNext := end < len(ordered)

	nextCursor := ""
	if hasNext && len(page) > 0 {
		nextCursor = cursorOf(page[len(page)-1])
	}

	payloads := make([]any, len(page))
	for i, e := range page {
		payloads[i] = canonicalEntry(e)
	}

	previousChain := ""
	if req.Query.CursorAfter != "" {
		if stored, ok := req.Checkpoints.get(req.Contract, req.Tenant, req.Query.CursorAfter); ok {
			previousChain = stored.AttestationChainHash
		}
	}

	signature, sigErr := req.Signer.Sign(previousChain, payloads)
	if sigErr != nil {
		return Page{}, apperr.ConstraintViolation("attestation_signing_failed", sigErr.Error(), nil)
	}

	checkpoint, cpErr := attest.BuildCheckpoint(signature, nextCursor, req.Query.Raw(), exportedAt)
	if cpErr != nil {
		return Page{}, apperr.ConstraintViolation("checkpoint_build_failed", cpErr.Error(), nil)
	}
	if hasNext {
		req.Checkpoints.put(req.Contract, req.Tenant, checkpoint)
	}
	if req.CheckpointRetentionDays > 0 && nowISO != "" {
		req.Checkpoints.Prune(req.Contract, req.Tenant, nowISO, req.CheckpointRetentionDays)
	}

	return Page{
		ExportedAt:    exportedAt,
		Query:         req.Query.Raw(),
		Entries:       page,
		TotalFiltered: totalFiltered,
		NextCursor:    nextCursor,
		HasNext:       hasNext,
		Attestation:   signature,
		Checkpoint:    checkpoint,
	}, nil
}

func canonicalEntry(e ledger.Entry) any {
	return map[string]any{
		"entry_id":       e.EntryID,
		"sequence_index": e.SequenceIndex,
		"timestamp":      e.Timestamp,
		"kind":           e.Kind,
		"payload":        e.Payload,
	}
}

// EnsureSortedIdentity exists to document/guard §8 invariant 10
// (canonical(x) == canonical(y) => x == y at the JSON-value level): any
// two entries that canonicalize identically are treated as the same
// export item. Nothing in the module calls it; production entries always
// carry distinct EntryID/SequenceIndex fields by construction.
func EnsureSortedIdentity(a, b ledger.Entry) (bool, error) {
	encA, err := canon.Marshal(canonicalEntry(a))
	if err != nil {
		return false, err
	}
	encB, err := canon.Marshal(canonicalEntry(b))
	if err != nil {
		return false, err
	}
	return string(encA) == string(encB), nil
}
