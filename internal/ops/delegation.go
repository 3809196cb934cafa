package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/delegation"
)

// DelegationCreate wires delegation.Service.Create behind the dispatch
// pipeline, minting the response correlation id from the delegation_id
// the way S1 expects ("corr_delegation_<delegation_id>").
func (c *Core) DelegationCreate(env dispatch.Envelope, req delegation.CreateRequest) dispatch.Response {
	req.Actor = env.Actor
	if req.NowISO == "" {
		req.NowISO = c.Store.NowISO(env.Auth.NowISO)
	}
	return c.mutate(&env, "delegation.create", guardActorType(authz.ActorUser), "", req, "delegation", req.DelegationID,
		func() (any, *apperr.Error) {
			return c.Delegation.Create(req)
		})
}

// DelegationGet wires delegation.Service.Get as a read-only operation.
func (c *Core) DelegationGet(env dispatch.Envelope, delegationID string) dispatch.Response {
	return c.read(env, "delegation.get", guardActorType(authz.ActorUser), "delegation", delegationID,
		func() (any, *apperr.Error) {
			return c.Delegation.Get(env.Actor, delegationID)
		})
}

// DelegationRevokeRequest is the request body for the delegation.revoke
// operation.
type DelegationRevokeRequest struct {
	DelegationID string
	NowISO       string
}

// DelegationRevoke wires delegation.Service.Revoke.
func (c *Core) DelegationRevoke(env dispatch.Envelope, req DelegationRevokeRequest) dispatch.Response {
	nowISO := req.NowISO
	if nowISO == "" {
		nowISO = c.Store.NowISO(env.Auth.NowISO)
	}
	return c.mutate(&env, "delegation.revoke", guardActorType(authz.ActorUser), "", req, "delegation", req.DelegationID,
		func() (any, *apperr.Error) {
			return c.Delegation.Revoke(env.Actor, req.DelegationID, nowISO)
		})
}
