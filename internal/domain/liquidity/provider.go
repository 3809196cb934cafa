// Package liquidity implements the liquidity domain services named in
// §4.11: policy (a provider-scoped wrapper around internal/policy),
// inventory (holdings and reservations), execution, and governance
// (provider rollout proposals and approvals). Follows native/governance's proposalState,
// which is likewise a provider/owner-scoped store of versioned records
// with an injected Store-interface seam.
package liquidity

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
	"marketcore/internal/policy"
)

// EventType constants for this package's ledger appends.
const (
	EventTypePolicyUpserted   = "liquidityPolicy.upserted"
	EventTypeExecutionRecorded = "liquidityExecution.recorded"
	EventTypeReservationMade  = "liquidityInventory.reserved"
	EventTypeReservationFailed = "liquidityInventory.reservation_failed"
)

// Provider is the owning record every provider-scoped operation checks
// actor identity against (§4.3's "provider-scoped operations additionally
// require actor = provider.owner_actor").
type Provider struct {
	ProviderID  string
	OwnerActor  authz.Actor
}

// PolicyService is the provider-scoped wrapper around internal/policy:
// it owns the versioned Policy record per provider and appends an audit
// entry on every upsert, mirroring native/governance's
// GovernanceAppendAudit helper returning the minted record.
type PolicyService struct {
	Clock    clock.Source
	Ledger   *ledger.Stream
	policies map[string]*policy.Policy // providerID -> current policy
	providers map[string]Provider
}

// NewPolicyService builds a PolicyService over the given ledger stream.
func NewPolicyService(clockSource clock.Source, stream *ledger.Stream) *PolicyService {
	return &PolicyService{
		Clock:     clockSource,
		Ledger:    stream,
		policies:  map[string]*policy.Policy{},
		providers: map[string]Provider{},
	}
}

// RegisterProvider records the provider's owner actor so future
// provider-scoped calls can be authorized against it. Tests and
// ops.Core.RegisterLiquidityProvider call this directly; a full deployment would derive
// it from a provider-registration operation not otherwise named by this
// spec.
func (s *PolicyService) RegisterProvider(p Provider) {
	s.providers[p.ProviderID] = p
}

// UpsertRequest bundles Upsert's inputs. Subscope for the idempotency layer
// above this method is "provider:<provider_id>" (see ops.Core's wiring), per
// §4.4's two-providers-share-an-operation-name example.
type UpsertRequest struct {
	Actor          authz.Actor
	ProviderID     string
	Policy         *policy.Policy
	IdempotencyKey string
	NowISO         string
}

// Upsert stores a new policy version for providerID, requiring
// actor == provider.owner_actor (§4.3).
func (s *PolicyService) Upsert(req UpsertRequest) (*policy.Policy, *apperr.Error) {
	provider, ok := s.providers[req.ProviderID]
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

	clone := req.Policy.Clone()
	if existing, ok := s.policies[req.ProviderID]; ok {
		clone.Version = existing.Version + 1
	} else {
		clone.Version = 1
	}
	s.policies[req.ProviderID] = clone

	s.Ledger.Append(req.ProviderID, EventTypePolicyUpserted, effectiveNow, map[string]any{
		"provider_id": req.ProviderID,
		"version":     clone.Version,
	})

	return clone.Clone(), nil
}

// Get returns the provider's current policy.
func (s *PolicyService) Get(providerID string) (*policy.Policy, *apperr.Error) {
	p, ok := s.policies[providerID]
	if !ok {
		return nil, apperr.NotFound(ReasonPolicyNotFound, "no policy stored for provider", map[string]any{"provider_id": providerID})
	}
	return p.Clone(), nil
}

// Evaluate loads the provider's current policy and runs internal/policy's
// Evaluate over it.
func (s *PolicyService) Evaluate(providerID string, eval policy.Evaluation) (policy.Result, *apperr.Error) {
	p, err := s.Get(providerID)
	if err != nil {
		return policy.Result{}, err
	}
	return policy.Evaluate(p, eval)
}

// Reason codes specific to this package.
const (
	ReasonProviderNotFound apperr.Reason = "liquidity_provider_not_found"
	ReasonPolicyNotFound   apperr.Reason = "liquidity_policy_not_found"
)
