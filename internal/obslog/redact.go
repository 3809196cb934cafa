package obslog

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields.
const RedactedValue = "[REDACTED]"

// allowlist enumerates the log keys the core may emit unmasked: structural
// and identifying metadata that is safe to see in an operator's log stream,
// as distinct from request/response payload bodies, idempotency keys, or
// counterparty identifiers, which are always masked.
var allowlist = map[string]struct{}{
	"component":      {},
	"severity":       {},
	"timestamp":      {},
	"message":        {},
	"error":          {},
	"reason":         {},
	"reason_code":    {},
	"operation_id":   {},
	"actor_type":     {},
	"tenant":         {},
	"correlation_id": {},
	"entry_id":       {},
	"sequence_index": {},
	"checkpoint_hash": {},
	"chain_hash":     {},
	"verdict":        {},
	"ledger_kind":    {},
}

// IsAllowlisted reports whether key may be logged unmasked.
func IsAllowlisted(key string) bool {
	_, ok := allowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// Allowlist returns a sorted copy of the allowlisted keys, used by tests to
// pin down exactly what is safe to emit.
func Allowlist() []string {
	keys := make([]string, 0, len(allowlist))
	for k := range allowlist {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// MaskField returns a slog.Attr that redacts value unless key is
// allowlisted; empty values pass through unmasked since there is nothing
// to leak.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}
