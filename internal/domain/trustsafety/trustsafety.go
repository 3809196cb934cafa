// Package trustsafety implements trust-and-safety signals and decisions
// (§4.11): signals categorized by a fixed fraud_*/ato_* set, decisions
// that cite one or more signals whose subjects must match the decision's
// own subject, and visibility/redaction rules for reading decisions back.
// Follows native/reputation's scoring records, generalized from a single
// reputation score per actor to a signal/decision pair with an explicit
// citation relationship.
package trustsafety

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypeSignalRecorded   = "trustSafetySignal.recorded"
	EventTypeDecisionRecorded = "trustSafetyDecision.recorded"
)

// Category is the fixed, closed set of signal categories (§4.11).
type Category string

const (
	CategoryFraudVelocity         Category = "fraud_velocity"
	CategoryFraudDeviceAnomaly    Category = "fraud_device_anomaly"
	CategoryFraudChargebackPattern Category = "fraud_chargeback_pattern"
	CategoryATOCredentialStuffing Category = "ato_credential_stuffing"
	CategoryATOSessionAnomaly     Category = "ato_session_anomaly"
	CategoryATOImpossibleTravel   Category = "ato_impossible_travel"
)

// Valid reports whether c is one of the fixed recognized categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryFraudVelocity, CategoryFraudDeviceAnomaly, CategoryFraudChargebackPattern,
		CategoryATOCredentialStuffing, CategoryATOSessionAnomaly, CategoryATOImpossibleTravel:
		return true
	default:
		return false
	}
}

// Subject identifies who a signal or decision is about.
type Subject struct {
	Type string
	ID   string
}

// Signal is one recorded trust-and-safety signal.
type Signal struct {
	SignalID      string
	Subject       Subject
	Category      Category
	Details       map[string]any
	RecordedBy    authz.Actor
	RecordedAtISO string
}

func (s *Signal) clone() *Signal {
	if s == nil {
		return nil
	}
	c := *s
	if s.Details != nil {
		c.Details = make(map[string]any, len(s.Details))
		for k, v := range s.Details {
			c.Details[k] = v
		}
	}
	return &c
}

// Decision is a recorded disposition citing one or more signals.
type Decision struct {
	DecisionID    string
	Subject       Subject
	SignalIDs     []string
	Action        string
	RecordedBy    authz.Actor
	RecordedAtISO string
}

func (d *Decision) clone() *Decision {
	if d == nil {
		return nil
	}
	c := *d
	c.SignalIDs = append([]string(nil), d.SignalIDs...)
	return &c
}

// Service composes signal and decision recording over a shared ledger
// stream; each entry's tenant is the subject id.
type Service struct {
	Clock  clock.Source
	Ledger *ledger.Stream

	signalsByID    map[string]*Signal
	decisionsByID  map[string]*Decision
	bySequence     []*Decision
}

// NewService builds a Service over the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{
		Clock:         clockSource,
		Ledger:        stream,
		signalsByID:   map[string]*Signal{},
		decisionsByID: map[string]*Decision{},
	}
}

// RecordSignalRequest bundles RecordSignal's inputs.
type RecordSignalRequest struct {
	SignalID       string
	Subject        Subject
	Category       Category
	Details        map[string]any
	Actor          authz.Actor
	IdempotencyKey string
	NowISO         string
}

// RecordSignal appends a new signal after validating its category against
// the fixed set (§4.11).
func (s *Service) RecordSignal(req RecordSignalRequest) (*Signal, *apperr.Error) {
	if !req.Category.Valid() {
		return nil, apperr.ConstraintViolation(ReasonCategoryInvalid, "category is not a recognized trust-and-safety signal category", map[string]any{
			"category": string(req.Category),
		})
	}
	if req.SignalID == "" {
		return nil, apperr.ConstraintViolation(ReasonSignalIDRequired, "signal_id is required", nil)
	}
	if _, exists := s.signalsByID[req.SignalID]; exists {
		return nil, apperr.Conflict(ReasonSignalIDReused, "signal_id already recorded", map[string]any{"signal_id": req.SignalID})
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	sig := &Signal{
		SignalID:      req.SignalID,
		Subject:       req.Subject,
		Category:      req.Category,
		Details:       req.Details,
		RecordedBy:    req.Actor,
		RecordedAtISO: effectiveNow,
	}
	s.signalsByID[sig.SignalID] = sig

	s.Ledger.Append(req.Subject.ID, EventTypeSignalRecorded, effectiveNow, map[string]any{
		"signal_id": sig.SignalID,
		"category":  string(sig.Category),
	})

	return sig.clone(), nil
}

// RecordDecisionRequest bundles RecordDecision's inputs.
type RecordDecisionRequest struct {
	DecisionID     string
	Subject        Subject
	SignalIDs      []string
	Action         string
	Actor          authz.Actor
	IdempotencyKey string
	NowISO         string
}

// RecordDecision verifies every cited signal exists and shares the
// decision's subject (§4.11: "decisions cite signals whose subjects must
// match"), then appends the decision.
func (s *Service) RecordDecision(req RecordDecisionRequest) (*Decision, *apperr.Error) {
	if req.DecisionID == "" {
		return nil, apperr.ConstraintViolation(ReasonDecisionIDRequired, "decision_id is required", nil)
	}
	if _, exists := s.decisionsByID[req.DecisionID]; exists {
		return nil, apperr.Conflict(ReasonDecisionIDReused, "decision_id already recorded", map[string]any{"decision_id": req.DecisionID})
	}
	if len(req.SignalIDs) == 0 {
		return nil, apperr.ConstraintViolation(ReasonDecisionRequiresSignal, "a decision must cite at least one signal", nil)
	}
	for _, signalID := range req.SignalIDs {
		sig, ok := s.signalsByID[signalID]
		if !ok {
			return nil, apperr.NotFound(ReasonSignalNotFound, "cited signal not found", map[string]any{"signal_id": signalID})
		}
		if sig.Subject != req.Subject {
			return nil, apperr.ConstraintViolation(ReasonSignalSubjectMismatch, "cited signal's subject does not match the decision's subject", map[string]any{
				"signal_id": signalID,
			})
		}
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	d := &Decision{
		DecisionID:    req.DecisionID,
		Subject:       req.Subject,
		SignalIDs:     append([]string(nil), req.SignalIDs...),
		Action:        req.Action,
		RecordedBy:    req.Actor,
		RecordedAtISO: effectiveNow,
	}
	s.decisionsByID[d.DecisionID] = d
	s.bySequence = append(s.bySequence, d)

	s.Ledger.Append(req.Subject.ID, EventTypeDecisionRecorded, effectiveNow, map[string]any{
		"decision_id": d.DecisionID,
		"action":      d.Action,
	})

	return d.clone(), nil
}

// Visible reports whether actor may see decision (§4.11: "a user sees only
// decisions whose subject is that user; a partner sees those it recorded
// or whose subject is that partner").
func Visible(actor authz.Actor, d *Decision) bool {
	if actor.Type == authz.ActorUser {
		return d.Subject.Type == string(authz.ActorUser) && d.Subject.ID == actor.ID
	}
	if actor.Type == authz.ActorPartner {
		if d.Subject.Type == string(authz.ActorPartner) && d.Subject.ID == actor.ID {
			return true
		}
		return d.RecordedBy.Type == authz.ActorPartner && d.RecordedBy.ID == actor.ID
	}
	return false
}

// ListVisible returns, in recorded order, every decision visible to actor.
func (s *Service) ListVisible(actor authz.Actor) []*Decision {
	var out []*Decision
	for _, d := range s.bySequence {
		if Visible(actor, d) {
			out = append(out, d.clone())
		}
	}
	return out
}

// Redacted renders d with its subject id masked, for exports that request
// subject redaction (§4.11: "exports support subject redaction").
func Redacted(d *Decision, redact bool) map[string]any {
	subjectID := d.Subject.ID
	if redact {
		subjectID = "REDACTED"
	}
	return map[string]any{
		"decision_id": d.DecisionID,
		"subject":     map[string]any{"type": d.Subject.Type, "id": subjectID},
		"signal_ids":  d.SignalIDs,
		"action":      d.Action,
		"recorded_at": d.RecordedAtISO,
	}
}

// Reason codes specific to this package.
const (
	ReasonCategoryInvalid        apperr.Reason = "trust_safety_category_invalid"
	ReasonSignalIDRequired       apperr.Reason = "trust_safety_signal_id_required"
	ReasonSignalIDReused         apperr.Reason = "trust_safety_signal_id_reused"
	ReasonDecisionIDRequired     apperr.Reason = "trust_safety_decision_id_required"
	ReasonDecisionIDReused       apperr.Reason = "trust_safety_decision_id_reused"
	ReasonDecisionRequiresSignal apperr.Reason = "trust_safety_decision_requires_signal"
	ReasonSignalNotFound         apperr.Reason = "trust_safety_signal_not_found"
	ReasonSignalSubjectMismatch  apperr.Reason = "trust_safety_signal_subject_mismatch"
)
