package liquidity

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
	"marketcore/internal/config"
	"marketcore/internal/ledger"
	"marketcore/internal/policy"
)

// ExecutionStatus is the closed state-machine status of a liquidity
// execution request (§3): pending -> {approved|rejected}, terminal.
type ExecutionStatus string

const (
	ExecutionPending  ExecutionStatus = "pending"
	ExecutionApproved ExecutionStatus = "approved"
	ExecutionRejected ExecutionStatus = "rejected"
)

// ExecutionMode is the persisted per-provider execution mode (§3):
// "mode = constrained_auto AND restricted_adapter_context" additionally
// requires an approved, non-expired override policy and the platform
// integration gate (INTEGRATION_ENABLED) to be open before an execution
// request against that provider can be recorded.
type ExecutionMode struct {
	Mode                     string
	RestrictedAdapterContext bool
	OverridePolicy           *policy.Policy
	OverrideExpiresAtISO     string
	UpdatedAtISO             string
	UpdatedBy                authz.Actor
}

func (m ExecutionMode) clone() ExecutionMode {
	m.OverridePolicy = m.OverridePolicy.Clone()
	return m
}

const modeConstrainedAuto = "constrained_auto"

// overrideActive reports whether m carries an override policy that is
// present and not expired as of nowISO.
func (m ExecutionMode) overrideActive(nowISO string) bool {
	if m.OverridePolicy == nil {
		return false
	}
	if m.OverrideExpiresAtISO == "" {
		return true
	}
	expires, err := clock.ParseStrict(m.OverrideExpiresAtISO)
	if err != nil {
		return false
	}
	now, err := clock.ParseStrict(nowISO)
	if err != nil {
		return false
	}
	return now.Before(expires)
}

// ExecutionRequest is the persisted LiquidityExecutionRequest record (§3).
type ExecutionRequest struct {
	RequestID             string
	ProviderID            string
	Status                ExecutionStatus
	ActionType            policy.ActionType
	RiskClass             string
	ReasonCodes           []apperr.Reason
	ModeSnapshot          ExecutionMode
	DecisionCorrelationID string
	OperatorActor         authz.Actor
	DecidedAtISO          string
	CreatedAtISO          string
}

func (e *ExecutionRequest) clone() *ExecutionRequest {
	if e == nil {
		return nil
	}
	out := *e
	out.ReasonCodes = append([]apperr.Reason(nil), e.ReasonCodes...)
	out.ModeSnapshot = e.ModeSnapshot.clone()
	return &out
}

// ExecutionService evaluates and records liquidity execution requests,
// composing PolicyService's evaluator with a per-provider execution mode
// and the platform integration gate, the way native/governance composes a
// proposalState's vote tally with a per-voter accounting map.
type ExecutionService struct {
	Clock   clock.Source
	Ledger  *ledger.Stream
	Policy  *PolicyService
	Config  config.Config

	modes        map[string]ExecutionMode
	byID         map[string]*ExecutionRequest
	accumulators map[string]*policy.Accumulators // providerID -> accumulator
}

// NewExecutionService builds an ExecutionService bound to the given
// PolicyService and ledger stream.
func NewExecutionService(clockSource clock.Source, stream *ledger.Stream, policySvc *PolicyService, cfg config.Config) *ExecutionService {
	return &ExecutionService{
		Clock:        clockSource,
		Ledger:       stream,
		Policy:       policySvc,
		Config:       cfg,
		modes:        map[string]ExecutionMode{},
		byID:         map[string]*ExecutionRequest{},
		accumulators: map[string]*policy.Accumulators{},
	}
}

// SetModeRequest bundles SetMode's inputs.
type SetModeRequest struct {
	Actor                    authz.Actor
	ProviderID               string
	Mode                     string
	RestrictedAdapterContext bool
	OverridePolicy           *policy.Policy
	OverrideExpiresAtISO     string
	NowISO                   string
}

// SetMode stores providerID's execution mode record, requiring
// actor == provider.owner_actor (§4.3), mirroring PolicyService.Upsert's
// ownership guard.
func (s *ExecutionService) SetMode(req SetModeRequest) (*ExecutionMode, *apperr.Error) {
	provider, ok := s.Policy.providers[req.ProviderID]
	if !ok {
		return nil, apperr.NotFound(ReasonProviderNotFound, "provider not found", map[string]any{"provider_id": req.ProviderID})
	}
	if err := authz.RequireOwner(req.Actor, provider.OwnerActor.Type, provider.OwnerActor.ID); err != nil {
		return nil, err
	}
	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}
	mode := ExecutionMode{
		Mode:                     req.Mode,
		RestrictedAdapterContext: req.RestrictedAdapterContext,
		OverridePolicy:           req.OverridePolicy.Clone(),
		OverrideExpiresAtISO:     req.OverrideExpiresAtISO,
		UpdatedAtISO:             effectiveNow,
		UpdatedBy:                req.Actor,
	}
	s.modes[req.ProviderID] = mode
	clone := mode.clone()
	return &clone, nil
}

// GetMode returns providerID's current execution mode, or the zero-value
// mode (unrestricted, no override) if none was ever set.
func (s *ExecutionService) GetMode(providerID string) ExecutionMode {
	return s.modes[providerID].clone()
}

// RecordRequest bundles one execution-request recording call's inputs.
type RecordRequest struct {
	RequestID             string
	ProviderID            string
	Evaluation            policy.Evaluation
	ActionType            policy.ActionType
	RiskClass             string
	AutoExecute           bool
	PlatformPolicyBlocked bool
	DayBucket             string
	NowISO                string
}

// Record evaluates the provider's current policy (or its active mode
// override) and appends a new pending LiquidityExecutionRequest. Recording
// with auto_execute=true or platform_policy_blocked=true is rejected
// outright (§3, §7's liquidity_execution_platform_policy_blocked), as is
// any recording against a provider whose mode is constrained_auto with
// restricted_adapter_context unless an approved non-expired override and
// the platform integration gate are both present. Duplicate request_id
// reuse is a CONFLICT (§7: "duplicate execution request id").
func (s *ExecutionService) Record(req RecordRequest) (*ExecutionRequest, *apperr.Error) {
	if _, exists := s.byID[req.RequestID]; exists {
		return nil, apperr.Conflict(ReasonExecutionIDReused, "execution request_id already used", map[string]any{"request_id": req.RequestID})
	}
	if req.AutoExecute || req.PlatformPolicyBlocked {
		return nil, apperr.Conflict(ReasonPlatformPolicyBlocked, "auto_execute and platform_policy_blocked recordings are rejected", map[string]any{
			"request_id":              req.RequestID,
			"auto_execute":            req.AutoExecute,
			"platform_policy_blocked": req.PlatformPolicyBlocked,
		})
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	mode := s.modes[req.ProviderID]
	evalPolicy, err := s.policyForMode(req.ProviderID, mode, effectiveNow)
	if err != nil {
		return nil, err
	}

	result, evalErr := policy.Evaluate(evalPolicy, req.Evaluation)
	if evalErr != nil {
		return nil, evalErr
	}

	e := &ExecutionRequest{
		RequestID:    req.RequestID,
		ProviderID:   req.ProviderID,
		Status:       ExecutionPending,
		ActionType:   req.ActionType,
		RiskClass:    req.RiskClass,
		ReasonCodes:  append([]apperr.Reason(nil), result.ReasonCodes...),
		ModeSnapshot: mode.clone(),
		CreatedAtISO: effectiveNow,
	}
	s.byID[e.RequestID] = e

	if result.Verdict == policy.VerdictAllow {
		acc, ok := s.accumulators[req.ProviderID]
		if !ok {
			acc = policy.NewAccumulators()
			s.accumulators[req.ProviderID] = acc
		}
		acc.Apply(req.DayBucket, req.Evaluation.CounterpartyActorID, result)
	}

	s.Ledger.Append(req.ProviderID, EventTypeExecutionRecorded, effectiveNow, map[string]any{
		"request_id": e.RequestID,
		"status":     string(e.Status),
		"verdict":    string(result.Verdict),
	})

	return e.clone(), nil
}

// policyForMode resolves the policy to evaluate a request against: the
// mode's active override when present, otherwise the provider's stored
// policy, after enforcing the constrained_auto/restricted_adapter_context
// integration gate (§3).
func (s *ExecutionService) policyForMode(providerID string, mode ExecutionMode, nowISO string) (*policy.Policy, *apperr.Error) {
	if mode.Mode == modeConstrainedAuto && mode.RestrictedAdapterContext {
		if !mode.overrideActive(nowISO) {
			return nil, apperr.Conflict(ReasonPlatformPolicyBlocked, "constrained_auto in a restricted adapter context requires an approved, non-expired override", map[string]any{
				"provider_id": providerID,
			})
		}
		if !s.Config.IntegrationEnabled {
			return nil, apperr.Conflict(ReasonPlatformPolicyBlocked, "constrained_auto in a restricted adapter context requires the platform integration gate to be enabled", map[string]any{
				"provider_id": providerID,
			})
		}
		return mode.OverridePolicy, nil
	}
	if mode.overrideActive(nowISO) {
		return mode.OverridePolicy, nil
	}
	return s.Policy.Get(providerID)
}

// DecisionRequest bundles Approve/Reject's inputs.
type DecisionRequest struct {
	RequestID             string
	OperatorActor         authz.Actor
	DecisionCorrelationID string
	NowISO                string
}

// Approve transitions a pending execution request to approved.
func (s *ExecutionService) Approve(req DecisionRequest) (*ExecutionRequest, *apperr.Error) {
	return s.decide(req, ExecutionApproved, EventTypeExecutionApproved)
}

// Reject transitions a pending execution request to rejected.
func (s *ExecutionService) Reject(req DecisionRequest) (*ExecutionRequest, *apperr.Error) {
	return s.decide(req, ExecutionRejected, EventTypeExecutionRejected)
}

// decide applies Approve/Reject's shared transition rule (§3): pending ->
// approved|rejected is a normal transition; a terminal request re-decided
// with the identical decision payload (operator_actor, decision_correlation_id,
// target status) is idempotent and returns the existing record unchanged;
// a terminal request re-decided with a different payload is a CONFLICT.
func (s *ExecutionService) decide(req DecisionRequest, target ExecutionStatus, eventType string) (*ExecutionRequest, *apperr.Error) {
	e, ok := s.byID[req.RequestID]
	if !ok {
		return nil, apperr.NotFound(ReasonExecutionNotFound, "execution request not found", map[string]any{"request_id": req.RequestID})
	}
	if e.Status == ExecutionPending {
		effectiveNow := req.NowISO
		if effectiveNow == "" {
			effectiveNow = s.Clock.NowISO()
		}
		e.Status = target
		e.OperatorActor = req.OperatorActor
		e.DecisionCorrelationID = req.DecisionCorrelationID
		e.DecidedAtISO = effectiveNow
		s.Ledger.Append(e.ProviderID, eventType, effectiveNow, map[string]any{
			"request_id": e.RequestID,
			"status":     string(e.Status),
		})
		return e.clone(), nil
	}
	if e.Status == target && e.OperatorActor == req.OperatorActor && e.DecisionCorrelationID == req.DecisionCorrelationID {
		return e.clone(), nil
	}
	return nil, apperr.Conflict(ReasonExecutionTransitionConflict, "execution request is already decided with a different decision payload", map[string]any{
		"request_id":      req.RequestID,
		"current_status":  string(e.Status),
		"requested_status": string(target),
	})
}

// Get returns a previously recorded execution request.
func (s *ExecutionService) Get(requestID string) (*ExecutionRequest, *apperr.Error) {
	e, ok := s.byID[requestID]
	if !ok {
		return nil, apperr.NotFound(ReasonExecutionNotFound, "execution request not found", map[string]any{"request_id": requestID})
	}
	return e.clone(), nil
}

// All returns every recorded execution request. The order of the returned
// slice is not defined.
func (s *ExecutionService) All() []*ExecutionRequest {
	out := make([]*ExecutionRequest, 0, len(s.byID))
	for _, e := range s.byID {
		out = append(out, e.clone())
	}
	return out
}

// EventType constants for this file's ledger appends, extending the block
// in provider.go.
const (
	EventTypeExecutionApproved = "liquidityExecution.approved"
	EventTypeExecutionRejected = "liquidityExecution.rejected"
)

// Reason codes specific to this file.
const (
	ReasonExecutionIDReused           apperr.Reason = "liquidity_execution_id_reused"
	ReasonExecutionNotFound           apperr.Reason = "liquidity_execution_not_found"
	ReasonPlatformPolicyBlocked       apperr.Reason = "liquidity_execution_platform_policy_blocked"
	ReasonExecutionTransitionConflict apperr.Reason = "liquidity_execution_transition_conflict"
)
