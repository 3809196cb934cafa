// Package delegation implements the delegation domain service (§4.11):
// user-issued grants to an agent/principal, bounded by scopes and expiry.
// Follows native/governance's proposal lifecycle (create, idempotent-
// replay via the dispatch layer, revoke-is-terminal state transition)
// adapted from a voting proposal to a delegation grant.
package delegation

import (
	"reflect"

	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType* constants name the ledger entries this service appends,
// mirroring native/escrow/events.go's constant block.
const (
	EventTypeDelegationCreated EventType = "delegation.created"
	EventTypeDelegationRevoked EventType = "delegation.revoked"
)

// EventType is a closed string enum over this package's ledger event kinds.
type EventType string

// Principal identifies the agent or principal a delegation is granted to.
type Principal struct {
	Type string
	ID   string
}

// Delegation is the persisted delegation record (§3, §4.11).
type Delegation struct {
	DelegationID    string
	OwnerActorID    string
	PrincipalAgent  Principal
	Scopes          []string
	Policy          map[string]any
	ExpiresAtISO    string
	RevokedAtISO    string
	CreatedAtISO    string
}

// Clone deep-copies d.
func (d *Delegation) Clone() *Delegation {
	if d == nil {
		return nil
	}
	clone := *d
	if len(d.Scopes) > 0 {
		clone.Scopes = append([]string(nil), d.Scopes...)
	}
	if d.Policy != nil {
		clone.Policy = make(map[string]any, len(d.Policy))
		for k, v := range d.Policy {
			clone.Policy[k] = v
		}
	}
	return &clone
}

// Service composes the delegation domain's state and ledger.
type Service struct {
	Clock   clock.Source
	Ledger  *ledger.Stream
	byID    map[string]*Delegation
}

// NewService builds a Service writing to the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{Clock: clockSource, Ledger: stream, byID: map[string]*Delegation{}}
}

// CreateRequest is the create operation's request shape.
type CreateRequest struct {
	Actor          authz.Actor
	IdempotencyKey string
	DelegationID   string
	PrincipalAgent Principal
	Scopes         []string
	Policy         map[string]any
	ExpiresAtISO   string
	NowISO         string
}

// Create mints a new delegation (§4.11: "create requires actor=user;
// idempotent; conflict on different delegation parameters for same id").
// Idempotent replay is handled by the caller's dispatch layer (§4.4); this
// method itself enforces the conflict rule for a create call that reuses
// an id already bound to different parameters, independent of idempotency
// scoping (e.g. two different idempotency keys targeting the same
// delegation_id).
func (s *Service) Create(req CreateRequest) (*Delegation, *apperr.Error) {
	if err := authz.RequireActorType(req.Actor, authz.ActorUser); err != nil {
		return nil, err
	}
	if req.DelegationID == "" {
		return nil, apperr.ConstraintViolation(ReasonDelegationIDRequired, "delegation_id is required", nil)
	}
	if _, err := clock.ParseStrict(req.ExpiresAtISO); err != nil {
		return nil, apperr.ConstraintViolation(apperr.ReasonInvalidTimestamp, "expires_at must be a valid ISO-8601 timestamp", nil)
	}

	if existing, ok := s.byID[req.DelegationID]; ok {
		if !sameParameters(existing, req) {
			return nil, apperr.Conflict(ReasonDelegationParameterConflict, "delegation_id already exists with different parameters", map[string]any{
				"delegation_id": req.DelegationID,
			})
		}
		return existing.Clone(), nil
	}

	nowISO := req.NowISO
	if nowISO == "" {
		nowISO = s.Clock.NowISO()
	}

	d := &Delegation{
		DelegationID:   req.DelegationID,
		OwnerActorID:   req.Actor.ID,
		PrincipalAgent: req.PrincipalAgent,
		Scopes:         append([]string(nil), req.Scopes...),
		Policy:         req.Policy,
		ExpiresAtISO:   req.ExpiresAtISO,
		CreatedAtISO:   nowISO,
	}
	s.byID[d.DelegationID] = d

	s.Ledger.Append(req.Actor.ID, string(EventTypeDelegationCreated), nowISO, map[string]any{
		"delegation_id": d.DelegationID,
		"owner_actor_id": d.OwnerActorID,
	})

	return d.Clone(), nil
}

func sameParameters(existing *Delegation, req CreateRequest) bool {
	if existing.PrincipalAgent != req.PrincipalAgent {
		return false
	}
	if existing.ExpiresAtISO != req.ExpiresAtISO {
		return false
	}
	if !reflect.DeepEqual(existing.Scopes, req.Scopes) {
		return false
	}
	return reflect.DeepEqual(existing.Policy, req.Policy)
}

// Get returns the delegation if the caller is its owning user (§4.11:
// "get requires same user").
func (s *Service) Get(actor authz.Actor, delegationID string) (*Delegation, *apperr.Error) {
	if err := authz.RequireActorType(actor, authz.ActorUser); err != nil {
		return nil, err
	}
	d, ok := s.byID[delegationID]
	if !ok {
		return nil, apperr.NotFound(ReasonDelegationNotFound, "delegation not found", map[string]any{"delegation_id": delegationID})
	}
	if d.OwnerActorID != actor.ID {
		return nil, apperr.Forbidden(apperr.ReasonActorShapeMismatch, "actor does not own this delegation", nil)
	}
	return d.Clone(), nil
}

// Revoke sets revoked_at, idempotently: a second revoke call is a no-op
// success that never alters an already-set revoked_at (§4.11).
func (s *Service) Revoke(actor authz.Actor, delegationID, nowISO string) (*Delegation, *apperr.Error) {
	if err := authz.RequireActorType(actor, authz.ActorUser); err != nil {
		return nil, err
	}
	d, ok := s.byID[delegationID]
	if !ok {
		return nil, apperr.NotFound(ReasonDelegationNotFound, "delegation not found", map[string]any{"delegation_id": delegationID})
	}
	if d.OwnerActorID != actor.ID {
		return nil, apperr.Forbidden(apperr.ReasonActorShapeMismatch, "actor does not own this delegation", nil)
	}
	if d.RevokedAtISO == "" {
		effectiveNow := nowISO
		if effectiveNow == "" {
			effectiveNow = s.Clock.NowISO()
		}
		d.RevokedAtISO = effectiveNow
		s.Ledger.Append(actor.ID, string(EventTypeDelegationRevoked), effectiveNow, map[string]any{
			"delegation_id": delegationID,
		})
	}
	return d.Clone(), nil
}

// Reason codes specific to this package.
const (
	ReasonDelegationIDRequired        apperr.Reason = "delegation_id_required"
	ReasonDelegationParameterConflict apperr.Reason = "delegation_parameter_conflict"
	ReasonDelegationNotFound          apperr.Reason = "delegation_not_found"
)
