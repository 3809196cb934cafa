// Package compensation implements cross-adapter compensation cases
// (§4.11): a case may only be created against a signed cross-adapter
// receipt carrying compensation_required=true, and its state machine
// (open -> {approved|rejected} -> resolved) rejects any transition
// outside that DAG with CONSTRAINT_VIOLATION. Follows native/escrow's
// dispute/arbitration state machine (open -> resolved via a bounded set
// of arbitration outcomes).
package compensation

import (
	"marketcore/internal/apperr"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypeCaseOpened   = "crossAdapterCompensationCase.opened"
	EventTypeCaseApproved = "crossAdapterCompensationCase.approved"
	EventTypeCaseRejected = "crossAdapterCompensationCase.rejected"
	EventTypeCaseResolved = "crossAdapterCompensationCase.resolved"
)

// Status enumerates the case's closed state machine.
type Status string

const (
	StatusOpen     Status = "open"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusResolved Status = "resolved"
)

// Receipt is the cross-adapter receipt a case must be opened against.
// Signature verification is an external collaborator (§1); this package
// only inspects the fields the state machine cares about.
type Receipt struct {
	ReceiptID             string
	SignatureValid        bool
	CompensationRequired  bool
}

// Case is one recorded compensation case.
type Case struct {
	CaseID        string
	ReceiptID     string
	Status        Status
	Resolution    string
	OpenedAtISO   string
	DecidedAtISO  string
	ResolvedAtISO string
}

func (c *Case) clone() *Case {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}

// Service tracks compensation cases keyed by case id.
type Service struct {
	Clock  clock.Source
	Ledger *ledger.Stream
	byID   map[string]*Case
}

// NewService builds a Service over the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{Clock: clockSource, Ledger: stream, byID: map[string]*Case{}}
}

// OpenRequest bundles Open's inputs.
type OpenRequest struct {
	CaseID         string
	Receipt        Receipt
	IdempotencyKey string
	NowISO         string
}

// Open creates a new case, requiring a signed receipt with
// compensation_required=true (§4.11).
func (s *Service) Open(req OpenRequest) (*Case, *apperr.Error) {
	if req.CaseID == "" {
		return nil, apperr.ConstraintViolation(ReasonCaseIDRequired, "case_id is required", nil)
	}
	if _, exists := s.byID[req.CaseID]; exists {
		return nil, apperr.Conflict(ReasonCaseIDReused, "case_id already opened", map[string]any{"case_id": req.CaseID})
	}
	if !req.Receipt.SignatureValid {
		return nil, apperr.ConstraintViolation(ReasonReceiptSignatureInvalid, "cross-adapter receipt signature failed verification", map[string]any{
			"receipt_id": req.Receipt.ReceiptID,
		})
	}
	if !req.Receipt.CompensationRequired {
		return nil, apperr.ConstraintViolation(ReasonCompensationNotRequired, "receipt does not mark compensation_required", map[string]any{
			"receipt_id": req.Receipt.ReceiptID,
		})
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	c := &Case{
		CaseID:      req.CaseID,
		ReceiptID:   req.Receipt.ReceiptID,
		Status:      StatusOpen,
		OpenedAtISO: effectiveNow,
	}
	s.byID[c.CaseID] = c

	s.Ledger.Append(c.CaseID, EventTypeCaseOpened, effectiveNow, map[string]any{
		"case_id":    c.CaseID,
		"receipt_id": c.ReceiptID,
	})

	return c.clone(), nil
}

// transition moves a case from fromStatus to toStatus, rejecting any move
// that does not follow open -> {approved|rejected} -> resolved.
func (s *Service) transition(caseID string, fromStatus, toStatus Status, eventType string, nowISO string, resolution string) (*Case, *apperr.Error) {
	c, ok := s.byID[caseID]
	if !ok {
		return nil, apperr.NotFound(ReasonCaseNotFound, "case not found", map[string]any{"case_id": caseID})
	}
	if c.Status != fromStatus {
		return nil, apperr.ConstraintViolation(ReasonInvalidTransition, "transition is not valid from the case's current status", map[string]any{
			"case_id":         caseID,
			"current_status":  string(c.Status),
			"requested_status": string(toStatus),
		})
	}

	effectiveNow := nowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}
	c.Status = toStatus
	if toStatus == StatusResolved {
		c.ResolvedAtISO = effectiveNow
		c.Resolution = resolution
	} else {
		c.DecidedAtISO = effectiveNow
	}

	s.Ledger.Append(caseID, eventType, effectiveNow, map[string]any{
		"case_id": caseID,
		"status":  string(toStatus),
	})

	return c.clone(), nil
}

// TransitionRequest bundles Approve/Reject/Resolve's inputs.
type TransitionRequest struct {
	CaseID         string
	Resolution     string // only meaningful for Resolve
	IdempotencyKey string
	NowISO         string
}

// Approve transitions an open case to approved.
func (s *Service) Approve(req TransitionRequest) (*Case, *apperr.Error) {
	return s.transition(req.CaseID, StatusOpen, StatusApproved, EventTypeCaseApproved, req.NowISO, "")
}

// Reject transitions an open case to rejected.
func (s *Service) Reject(req TransitionRequest) (*Case, *apperr.Error) {
	return s.transition(req.CaseID, StatusOpen, StatusRejected, EventTypeCaseRejected, req.NowISO, "")
}

// Resolve transitions an approved or rejected case to resolved.
// §4.11 describes the DAG as open -> {approved|rejected} -> resolved, so
// either terminal decision may be resolved next.
func (s *Service) Resolve(req TransitionRequest) (*Case, *apperr.Error) {
	c, ok := s.byID[req.CaseID]
	if !ok {
		return nil, apperr.NotFound(ReasonCaseNotFound, "case not found", map[string]any{"case_id": req.CaseID})
	}
	if c.Status != StatusApproved && c.Status != StatusRejected {
		return nil, apperr.ConstraintViolation(ReasonInvalidTransition, "resolve requires an approved or rejected case", map[string]any{
			"case_id":        req.CaseID,
			"current_status": string(c.Status),
		})
	}
	return s.transition(req.CaseID, c.Status, StatusResolved, EventTypeCaseResolved, req.NowISO, req.Resolution)
}

// Get returns the case, or NOT_FOUND.
func (s *Service) Get(caseID string) (*Case, *apperr.Error) {
	c, ok := s.byID[caseID]
	if !ok {
		return nil, apperr.NotFound(ReasonCaseNotFound, "case not found", map[string]any{"case_id": caseID})
	}
	return c.clone(), nil
}

// Reason codes specific to this package.
const (
	ReasonCaseIDRequired          apperr.Reason = "compensation_case_id_required"
	ReasonCaseIDReused            apperr.Reason = "compensation_case_id_reused"
	ReasonReceiptSignatureInvalid apperr.Reason = "compensation_receipt_signature_invalid"
	ReasonCompensationNotRequired apperr.Reason = "compensation_not_required"
	ReasonCaseNotFound            apperr.Reason = "compensation_case_not_found"
	ReasonInvalidTransition       apperr.Reason = "compensation_invalid_transition"
)
