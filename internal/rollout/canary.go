package rollout

import (
	"crypto/sha256"
	"encoding/binary"
)

const bucketModulus = 10000

// Bucket derives the canary bucket value in [0, 10000) from
// SHA256(salt || actor.type || actor.id || idempotency_key ||
// requested_at)[:8] mod 10000 (§4.10 step 5).
func Bucket(salt, actorType, actorID, idempotencyKey, requestedAtISO string) int {
	h := sha256.New()
	h.Write([]byte(salt))
	h.Write([]byte(actorType))
	h.Write([]byte(actorID))
	h.Write([]byte(idempotencyKey))
	h.Write([]byte(requestedAtISO))
	sum := h.Sum(nil)
	first8 := binary.BigEndian.Uint64(sum[:8])
	return int(first8 % uint64(bucketModulus))
}

// Sample is one canary-run observation feeding the rollback window (§4.10).
type Sample struct {
	Error           bool
	Timeout         bool
	Limited         bool
	NonNegativeDelta bool
}

// TriggerThresholds configures the rollback trigger conditions (§4.10,
// §9 "the exact set of canary trigger thresholds is encoded in a helper
// not reproduced here; the controller must accept them as configuration
// inputs rather than hard-coding"). Rates are expressed as a fraction in
// [0,1] of the sampling window.
type TriggerThresholds struct {
	ErrorRate         float64
	TimeoutRate       float64
	LimitedRate       float64
	NegativeDeltaRate float64
}

// DefaultTriggerThresholds are conservative defaults; production
// deployments should override these via the same Config-injection path as every other
// rollout tunable.
var DefaultTriggerThresholds = TriggerThresholds{
	ErrorRate:         0.10,
	TimeoutRate:       0.20,
	LimitedRate:       0.30,
	NegativeDeltaRate: 0.40,
}

// Window is the bounded ring of canary samples used to decide whether to
// activate the rollback latch (§4.10).
type Window struct {
	capacity int
	samples  []Sample
}

// NewWindow builds a Window holding at most capacity samples.
func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Append records a new sample, evicting the oldest once the window is full.
func (w *Window) Append(s Sample) {
	w.samples = append(w.samples, s)
	if len(w.samples) > w.capacity {
		w.samples = w.samples[len(w.samples)-w.capacity:]
	}
}

// Clear empties the window (called when the rollback latch clears, §4.10).
func (w *Window) Clear() {
	w.samples = nil
}

// Summary is the per-window rollup evaluated against TriggerThresholds.
type Summary struct {
	Count             int
	ErrorRate         float64
	TimeoutRate       float64
	LimitedRate       float64
	NegativeDeltaRate float64
}

// Summarize rolls the window's samples up into rates.
func (w *Window) Summarize() Summary {
	n := len(w.samples)
	if n == 0 {
		return Summary{}
	}
	var errs, timeouts, limited, negDelta int
	for _, s := range w.samples {
		if s.Error {
			errs++
		}
		if s.Timeout {
			timeouts++
		}
		if s.Limited {
			limited++
		}
		if !s.NonNegativeDelta {
			negDelta++
		}
	}
	return Summary{
		Count:             n,
		ErrorRate:         float64(errs) / float64(n),
		TimeoutRate:       float64(timeouts) / float64(n),
		LimitedRate:       float64(limited) / float64(n),
		NegativeDeltaRate: float64(negDelta) / float64(n),
	}
}

// TriggerReason enumerates the rollback trigger's stable reason codes.
type TriggerReason string

const (
	TriggerErrorRate         TriggerReason = "canary_rollback_error_rate"
	TriggerTimeoutRate       TriggerReason = "canary_rollback_timeout_rate"
	TriggerLimitedRate       TriggerReason = "canary_rollback_limited_rate"
	TriggerNegativeDeltaRate TriggerReason = "canary_rollback_negative_delta_rate"
)

// Evaluate checks the summary against thresholds and returns the first
// triggered reason (checked in the fixed order: error, timeout, limited,
// negative-delta), or "" if none trigger.
func (s Summary) Evaluate(t TriggerThresholds) (TriggerReason, bool) {
	if s.Count == 0 {
		return "", false
	}
	switch {
	case s.ErrorRate >= t.ErrorRate:
		return TriggerErrorRate, true
	case s.TimeoutRate >= t.TimeoutRate:
		return TriggerTimeoutRate, true
	case s.LimitedRate >= t.LimitedRate:
		return TriggerLimitedRate, true
	case s.NegativeDeltaRate >= t.NegativeDeltaRate:
		return TriggerNegativeDeltaRate, true
	default:
		return "", false
	}
}

// Latch is the sticky rollback state (§4.10, GLOSSARY): once active, the
// controller prefers v1 until primary_enabled && rollback_reset is
// observed on a subsequent run.
type Latch struct {
	Active            bool
	TriggerReasonCode TriggerReason
	RollbackRunID     string
	RollbackActivatedAt string
}

// Activate sets the latch if not already active.
func (l *Latch) Activate(reason TriggerReason, runID, activatedAtISO string) {
	if l.Active {
		return
	}
	l.Active = true
	l.TriggerReasonCode = reason
	l.RollbackRunID = runID
	l.RollbackActivatedAt = activatedAtISO
}

// Reset clears the latch.
func (l *Latch) Reset() {
	*l = Latch{}
}
