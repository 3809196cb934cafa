// Package idempotency implements the per-(actor, operation, scope, key)
// idempotency registry (§4.4), following
// services/escrow-gateway storage.LookupIdempotency/SaveIdempotency's pair
// and services/otc-gateway/middleware's replay-or-store shape, adapted
// from a SQL-backed cache to an in-memory, single-writer Store.
package idempotency

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/canon"
)

// Record is the frozen result stored under a scope key (§3). Result is
// kept as canonical JSON bytes rather than a live Go value so that replay
// always deep-copies through re-decoding, never aliasing the stored value
// with whatever the caller does afterward.
type Record struct {
	ScopeKey    string
	PayloadHash string
	Result      []byte // canonical JSON encoding of the frozen response body
}

// Registry stores idempotency records keyed by ScopeKey. It is not
// goroutine-safe on its own; callers run it behind the single-writer
// mutation path (§5).
type Registry struct {
	records map[string]Record
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{records: make(map[string]Record)}
}

// ScopeKey composes the idempotency scope key from actor identity,
// operation, an optional subscope (e.g. a provider id, for operations two
// different providers can invoke under the same name), and the caller's
// idempotency key.
func ScopeKey(actor authz.Actor, operationID, subscope, idempotencyKey string) string {
	parts := []any{string(actor.Type), actor.ID, operationID}
	if subscope != "" {
		parts = append(parts, subscope)
	}
	parts = append(parts, idempotencyKey)
	key, err := canon.HashHex(parts)
	if err != nil {
		// parts is a closed, JSON-encodable shape; Marshal cannot fail here.
		panic(err)
	}
	return key
}

// Outcome is the uniform result of running a handler under the registry.
type Outcome struct {
	Replayed bool
	Result   []byte
}

// Handler produces a canonical-JSON-encodable response body, or an
// *apperr.Error. On error the mutation is assumed NOT to have happened
// (§7): the registry never stores a record for a failed call.
type Handler func() (any, *apperr.Error)

// Run executes handler under the idempotency contract described in §4.4:
//   - no prior record: run handler; on success, freeze and store the
//     result; on failure, nothing is stored and the error is returned.
//   - prior record, same payload hash: return the frozen result, replayed=true.
//   - prior record, different payload hash: IDEMPOTENCY_KEY_REUSE_PAYLOAD_MISMATCH,
//     handler is never invoked.
func (r *Registry) Run(scopeKey, payloadHash string, handler Handler) (Outcome, *apperr.Error) {
	if existing, ok := r.records[scopeKey]; ok {
		if existing.PayloadHash != payloadHash {
			return Outcome{}, apperr.IdempotencyMismatch(
				"idempotency key reused with a different request payload",
				map[string]any{"scope_key": scopeKey},
			)
		}
		return Outcome{Replayed: true, Result: cloneBytes(existing.Result)}, nil
	}

	body, appErr := handler()
	if appErr != nil {
		return Outcome{}, appErr
	}

	encoded, err := canon.Marshal(body)
	if err != nil {
		return Outcome{}, apperr.ConstraintViolation("result_not_encodable", err.Error(), nil)
	}
	r.records[scopeKey] = Record{ScopeKey: scopeKey, PayloadHash: payloadHash, Result: encoded}
	return Outcome{Replayed: false, Result: encoded}, nil
}

// Peek returns the stored record for a scope key, if any, without running
// anything. Used by read paths that want to surface a prior mismatch
// without re-executing a mutation (e.g. diagnostics).
func (r *Registry) Peek(scopeKey string) (Record, bool) {
	rec, ok := r.records[scopeKey]
	return rec, ok
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
