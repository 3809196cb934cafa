// Package ids builds the CorrelationId carried in every response envelope
// (§3). Most operations have a natural deterministic key ("corr_delegation_
// del_1"); the handful that don't fall back to a random uuid, the same way
// otc-gateway's idempotency middleware mints a uuid RequestID when the
// caller supplies none.
package ids

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Correlation renders "corr_<op>_<key>" for operations with a natural key.
func Correlation(op, key string) string {
	op = strings.ReplaceAll(op, ".", "_")
	return fmt.Sprintf("corr_%s_%s", op, key)
}

// RandomCorrelation mints a non-deterministic correlation id for operations
// with no natural deterministic key (ad-hoc governance notes, preference
// reads with no stable subject key, etc).
func RandomCorrelation(op string) string {
	op = strings.ReplaceAll(op, ".", "_")
	return fmt.Sprintf("corr_%s_%s", op, uuid.NewString())
}
