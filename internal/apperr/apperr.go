// Package apperr defines the closed error taxonomy every operation in the
// core surfaces (§7, §8). Errors are values returned up through the
// dispatch pipeline; nothing in this module panics or throws across an
// operation boundary.
package apperr

import "fmt"

// Code is one of the five stable error codes an envelope can carry.
type Code string

const (
	CodeConstraintViolation         Code = "CONSTRAINT_VIOLATION"
	CodeForbidden                   Code = "FORBIDDEN"
	CodeNotFound                    Code = "NOT_FOUND"
	CodeConflict                    Code = "CONFLICT"
	CodeIdempotencyKeyReuseMismatch Code = "IDEMPOTENCY_KEY_REUSE_PAYLOAD_MISMATCH"
)

// Valid reports whether c is one of the five taxonomy codes, the way the
// teacher's ArbitrationScheme.Valid guards enum inputs before they are
// persisted or exported.
func (c Code) Valid() bool {
	switch c {
	case CodeConstraintViolation, CodeForbidden, CodeNotFound, CodeConflict, CodeIdempotencyKeyReuseMismatch:
		return true
	default:
		return false
	}
}

// Reason is a stable, lowercase-underscored domain reason code, e.g.
// "liquidity_policy_precedence_violation" or "checkpoint_after_not_found".
type Reason string

// Error is the value every failing operation returns. It carries the
// taxonomy code, a human message, and a details map whose "reason_code"
// key (when present) is the stable Reason driving the failure.
type Error struct {
	Code    Code
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Reason returns the details["reason_code"] value, or "" if unset.
func (e *Error) Reason() Reason {
	if e == nil || e.Details == nil {
		return ""
	}
	if r, ok := e.Details["reason_code"].(Reason); ok {
		return r
	}
	if s, ok := e.Details["reason_code"].(string); ok {
		return Reason(s)
	}
	return ""
}

func newErr(code Code, reason Reason, message string, extra map[string]any) *Error {
	details := map[string]any{}
	for k, v := range extra {
		details[k] = v
	}
	if reason != "" {
		details["reason_code"] = reason
	}
	return &Error{Code: code, Message: message, Details: details}
}

// ConstraintViolation builds a CONSTRAINT_VIOLATION error.
func ConstraintViolation(reason Reason, message string, extra map[string]any) *Error {
	return newErr(CodeConstraintViolation, reason, message, extra)
}

// Forbidden builds a FORBIDDEN error.
func Forbidden(reason Reason, message string, extra map[string]any) *Error {
	return newErr(CodeForbidden, reason, message, extra)
}

// NotFound builds a NOT_FOUND error.
func NotFound(reason Reason, message string, extra map[string]any) *Error {
	return newErr(CodeNotFound, reason, message, extra)
}

// Conflict builds a CONFLICT error.
func Conflict(reason Reason, message string, extra map[string]any) *Error {
	return newErr(CodeConflict, reason, message, extra)
}

// IdempotencyMismatch builds the reserved idempotency-reuse error.
func IdempotencyMismatch(message string, extra map[string]any) *Error {
	return newErr(CodeIdempotencyKeyReuseMismatch, "", message, extra)
}

// Stable reason codes referenced by name across multiple packages. Each
// domain package additionally defines the reason codes specific to it.
const (
	ReasonUnknownQueryKey             Reason = "unknown_query_key"
	ReasonInvalidTimestamp            Reason = "invalid_timestamp"
	ReasonWindowInverted              Reason = "window_inverted"
	ReasonCursorNotFound              Reason = "cursor_not_found"
	ReasonCheckpointMissing           Reason = "checkpoint_continuation_required"
	ReasonCheckpointNextCursorMismatch Reason = "checkpoint_next_cursor_mismatch"
	ReasonCheckpointAttestationMismatch Reason = "checkpoint_attestation_mismatch"
	ReasonCheckpointFingerprintMismatch Reason = "checkpoint_context_fingerprint_mismatch"
	ReasonCheckpointAfterNotFound      Reason = "checkpoint_after_not_found"
	ReasonActorShapeMismatch          Reason = "actor_shape_mismatch"
	ReasonTenantMismatch              Reason = "tenant_mismatch"
	ReasonLiquidityProviderActorMismatch Reason = "liquidity_provider_actor_mismatch"
)
