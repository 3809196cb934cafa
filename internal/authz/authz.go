// Package authz implements the authorization gate (§4.3): a map from
// (operation_id, actor, auth) to allow/deny, plus the actor-shape guards
// individual services layer on top (actor type checks, provider-ownership
// checks).
package authz

import (
	"strings"

	"marketcore/internal/apperr"
)

// ActorType enumerates the three recognized actor kinds (§3).
type ActorType string

const (
	ActorUser    ActorType = "user"
	ActorPartner ActorType = "partner"
	ActorAgent   ActorType = "agent"
)

// Valid reports whether t is one of the three recognized actor types.
func (t ActorType) Valid() bool {
	switch t {
	case ActorUser, ActorPartner, ActorAgent:
		return true
	default:
		return false
	}
}

// Actor identifies the principal making a call.
type Actor struct {
	Type ActorType
	ID   string
}

// Valid reports whether the actor has a recognized type and non-empty id.
func (a Actor) Valid() bool {
	return a.Type.Valid() && strings.TrimSpace(a.ID) != ""
}

// Auth carries call-scoped authorization context, such as a caller-supplied
// wall-clock override (AUTHZ_NOW_ISO's per-call counterpart).
type Auth struct {
	NowISO string
}

// PolicyFunc decides whether the given actor may invoke operationID. The
// core's default policy is permissive (every recognized actor/operation
// pair is allowed; tenancy and actor-shape narrowing happens in the
// per-service guards described below) since HTTP-level authentication and
// token parsing are explicitly out of scope (§1) — this gate only encodes
// the decision structure, not a credential backend.
type PolicyFunc func(operationID string, actor Actor, auth Auth) *apperr.Error

// Gate evaluates a configured PolicyFunc, defaulting to AllowRecognizedActors.
type Gate struct {
	Policy PolicyFunc
}

// NewGate builds a Gate with the default permissive policy.
func NewGate() *Gate {
	return &Gate{Policy: AllowRecognizedActors}
}

// Authorize runs the configured policy.
func (g *Gate) Authorize(operationID string, actor Actor, auth Auth) *apperr.Error {
	if g == nil || g.Policy == nil {
		return AllowRecognizedActors(operationID, actor, auth)
	}
	return g.Policy(operationID, actor, auth)
}

// AllowRecognizedActors is the default policy: any structurally valid actor
// may attempt any operation; per-operation actor-shape and tenancy guards
// (below) perform the real narrowing.
func AllowRecognizedActors(operationID string, actor Actor, _ Auth) *apperr.Error {
	if strings.TrimSpace(operationID) == "" {
		return apperr.ConstraintViolation("operation_id_required", "operation_id is required", nil)
	}
	if !actor.Valid() {
		return apperr.Forbidden(apperr.ReasonActorShapeMismatch, "actor is not recognized", map[string]any{
			"actor_type": string(actor.Type),
		})
	}
	return nil
}

// RequireActorType enforces that the actor has exactly the given type,
// e.g. delegation operations requiring actor.type = user (§4.3).
func RequireActorType(actor Actor, want ActorType) *apperr.Error {
	if actor.Type != want {
		return apperr.Forbidden(apperr.ReasonActorShapeMismatch, "operation requires actor type "+string(want), map[string]any{
			"expected_actor_type": string(want),
			"actual_actor_type":   string(actor.Type),
		})
	}
	return nil
}

// RequireOwner enforces actor == provider owner (§4.3's provider-scoped
// guard): mismatch yields FORBIDDEN with reason
// liquidity_provider_actor_mismatch.
func RequireOwner(actor Actor, ownerType ActorType, ownerID string) *apperr.Error {
	if actor.Type != ownerType || actor.ID != ownerID {
		return apperr.Forbidden(apperr.ReasonLiquidityProviderActorMismatch, "actor does not own this resource", map[string]any{
			"owner_actor_id": ownerID,
		})
	}
	return nil
}
