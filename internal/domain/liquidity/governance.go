package liquidity

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
	"marketcore/internal/policy"
)

// EventType constants name this file's ledger appends.
const (
	EventTypeRolloutStarted  = "partnerLiquidityProviderRollout.started"
	EventTypeRolloutApproved = "partnerLiquidityProviderRollout.approved"
)

// RolloutStatus mirrors native/governance's closed proposal-status enums,
// adapted to a partner-liquidity-provider rollout's two-step approval
// instead of a vote tally.
type RolloutStatus string

const (
	RolloutPending  RolloutStatus = "pending"
	RolloutApproved RolloutStatus = "approved"
	RolloutRejected RolloutStatus = "rejected"
)

// Rollout is a pending change to a provider's policy, gated behind an
// approval step before PolicyService.Upsert commits it (§4.11 groups this
// under "partner liquidity provider rollout export" in §6's retention
// config names).
type Rollout struct {
	RolloutID   string
	ProviderID  string
	Proposed    *policy.Policy
	Status      RolloutStatus
	CreatedAtISO string
	DecidedAtISO string
}

// GovernanceService tracks pending policy rollouts per provider.
type GovernanceService struct {
	Clock  clock.Source
	Ledger *ledger.Stream
	Policy *PolicyService
	byID   map[string]*Rollout
}

// NewGovernanceService builds a GovernanceService bound to policySvc.
func NewGovernanceService(clockSource clock.Source, stream *ledger.Stream, policySvc *PolicyService) *GovernanceService {
	return &GovernanceService{Clock: clockSource, Ledger: stream, Policy: policySvc, byID: map[string]*Rollout{}}
}

// ProposeRequest bundles Propose's inputs.
type ProposeRequest struct {
	RolloutID      string
	ProviderID     string
	Proposed       *policy.Policy
	IdempotencyKey string
	NowISO         string
}

// Propose records a pending rollout for providerID.
func (s *GovernanceService) Propose(req ProposeRequest) (*Rollout, *apperr.Error) {
	if _, exists := s.byID[req.RolloutID]; exists {
		return nil, apperr.Conflict(ReasonRolloutIDReused, "rollout_id already used", map[string]any{"rollout_id": req.RolloutID})
	}
	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}
	r := &Rollout{
		RolloutID:    req.RolloutID,
		ProviderID:   req.ProviderID,
		Proposed:     req.Proposed.Clone(),
		Status:       RolloutPending,
		CreatedAtISO: effectiveNow,
	}
	s.byID[req.RolloutID] = r
	s.Ledger.Append(req.ProviderID, EventTypeRolloutStarted, effectiveNow, map[string]any{"rollout_id": req.RolloutID})
	return r, nil
}

// ApproveRequest bundles Approve's inputs.
type ApproveRequest struct {
	Actor          authz.Actor
	RolloutID      string
	IdempotencyKey string
	NowISO         string
}

// Approve transitions a pending rollout to approved and commits the
// proposed policy via PolicyService.Upsert. Approving a rollout not in
// pending state is a CONFLICT (§7: "state-machine violations").
func (s *GovernanceService) Approve(req ApproveRequest) (*Rollout, *apperr.Error) {
	actor, rolloutID, nowISO := req.Actor, req.RolloutID, req.NowISO
	r, ok := s.byID[rolloutID]
	if !ok {
		return nil, apperr.NotFound(ReasonRolloutNotFound, "rollout not found", map[string]any{"rollout_id": rolloutID})
	}
	if r.Status != RolloutPending {
		return nil, apperr.Conflict(ReasonRolloutNotPending, "rollout is not pending", map[string]any{"rollout_id": rolloutID, "status": string(r.Status)})
	}
	if _, err := s.Policy.Upsert(UpsertRequest{Actor: actor, ProviderID: r.ProviderID, Policy: r.Proposed, NowISO: nowISO}); err != nil {
		return nil, err
	}
	effectiveNow := nowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}
	r.Status = RolloutApproved
	r.DecidedAtISO = effectiveNow
	s.Ledger.Append(r.ProviderID, EventTypeRolloutApproved, effectiveNow, map[string]any{"rollout_id": rolloutID})
	return r, nil
}

// Reason codes specific to this file.
const (
	ReasonRolloutIDReused   apperr.Reason = "liquidity_rollout_id_reused"
	ReasonRolloutNotFound   apperr.Reason = "liquidity_rollout_not_found"
	ReasonRolloutNotPending apperr.Reason = "liquidity_rollout_not_pending"
)

// SegmentTier enumerates the ordered partner segment tiers (§3).
type SegmentTier int

const (
	SegmentS0 SegmentTier = iota
	SegmentS1
	SegmentS2
	SegmentS3
)

// ProviderStatus enumerates §3's governance status values.
type ProviderStatus string

const (
	ProviderPendingReview ProviderStatus = "pending_review"
	ProviderActive        ProviderStatus = "active"
	ProviderRestricted    ProviderStatus = "restricted"
	ProviderOffboarded    ProviderStatus = "offboarded"
)

// EligibilityVerdict is the outcome of the prior eligibility check a
// rollout activation is gated behind (§3: "a prior eligibility verdict =
// allow exists with zero unresolved critical violations").
type EligibilityVerdict struct {
	Verdict                    string // "allow" or "deny"
	UnresolvedCriticalViolations int
}

// ProviderGovernance is the per-partner-liquidity-provider governance
// record (§3): segment_tier, status, rollout_policy version, and the
// last recorded eligibility check.
type ProviderGovernance struct {
	ProviderID         string
	SegmentTier        SegmentTier
	Status             ProviderStatus
	RolloutPolicyVersion uint64
	LastEligibility    EligibilityVerdict
}

func (g *ProviderGovernance) clone() *ProviderGovernance {
	if g == nil {
		return nil
	}
	out := *g
	return &out
}

// ProviderGovernanceStore tracks one ProviderGovernance record per
// provider, gating rollout activation per §3's eligibility and tier-delta
// rules.
type ProviderGovernanceStore struct {
	byProvider map[string]*ProviderGovernance
}

// NewProviderGovernanceStore builds an empty ProviderGovernanceStore.
func NewProviderGovernanceStore() *ProviderGovernanceStore {
	return &ProviderGovernanceStore{byProvider: map[string]*ProviderGovernance{}}
}

// Register seeds a provider's governance record, defaulting to
// pending_review at segment S0 if not already present.
func (s *ProviderGovernanceStore) Register(providerID string) *ProviderGovernance {
	if existing, ok := s.byProvider[providerID]; ok {
		return existing.clone()
	}
	g := &ProviderGovernance{ProviderID: providerID, SegmentTier: SegmentS0, Status: ProviderPendingReview}
	s.byProvider[providerID] = g
	return g.clone()
}

// RecordEligibility stores the result of an eligibility check, consulted
// by a subsequent ActivateRollout call.
func (s *ProviderGovernanceStore) RecordEligibility(providerID string, verdict EligibilityVerdict) *apperr.Error {
	g, ok := s.byProvider[providerID]
	if !ok {
		return apperr.NotFound(ReasonProviderGovernanceNotFound, "provider governance record not found", map[string]any{"provider_id": providerID})
	}
	g.LastEligibility = verdict
	return nil
}

// ActivateRollout promotes providerID to effectiveSegmentTier and active
// status. Blocked unless a prior eligibility verdict=allow exists with
// zero unresolved critical violations, and effectiveSegmentTier is at
// most current+1 (§3).
func (s *ProviderGovernanceStore) ActivateRollout(providerID string, effectiveSegmentTier SegmentTier) (*ProviderGovernance, *apperr.Error) {
	g, ok := s.byProvider[providerID]
	if !ok {
		return nil, apperr.NotFound(ReasonProviderGovernanceNotFound, "provider governance record not found", map[string]any{"provider_id": providerID})
	}
	if g.LastEligibility.Verdict != "allow" {
		return nil, apperr.Conflict(ReasonRolloutEligibilityMissing, "no passing eligibility verdict on record", map[string]any{"provider_id": providerID})
	}
	if g.LastEligibility.UnresolvedCriticalViolations > 0 {
		return nil, apperr.Conflict(ReasonRolloutCriticalViolationsUnresolved, "eligibility has unresolved critical violations", map[string]any{
			"provider_id":                    providerID,
			"unresolved_critical_violations": g.LastEligibility.UnresolvedCriticalViolations,
		})
	}
	if effectiveSegmentTier > g.SegmentTier+1 {
		return nil, apperr.Conflict(ReasonRolloutTierJumpTooLarge, "effective_segment_tier may advance at most one tier per activation", map[string]any{
			"provider_id":           providerID,
			"current_segment_tier":  int(g.SegmentTier),
			"requested_segment_tier": int(effectiveSegmentTier),
		})
	}
	g.SegmentTier = effectiveSegmentTier
	g.Status = ProviderActive
	return g.clone(), nil
}

// Get returns providerID's governance record.
func (s *ProviderGovernanceStore) Get(providerID string) (*ProviderGovernance, *apperr.Error) {
	g, ok := s.byProvider[providerID]
	if !ok {
		return nil, apperr.NotFound(ReasonProviderGovernanceNotFound, "provider governance record not found", map[string]any{"provider_id": providerID})
	}
	return g.clone(), nil
}

// Reason codes for ProviderGovernanceStore.
const (
	ReasonProviderGovernanceNotFound          apperr.Reason = "liquidity_provider_governance_not_found"
	ReasonRolloutEligibilityMissing           apperr.Reason = "liquidity_rollout_eligibility_missing"
	ReasonRolloutCriticalViolationsUnresolved apperr.Reason = "liquidity_rollout_critical_violations_unresolved"
	ReasonRolloutTierJumpTooLarge             apperr.Reason = "liquidity_rollout_tier_jump_too_large"
)
