package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/liquidity"
	"marketcore/internal/policy"
)

// LiquidityPolicyUpsert wires PolicyService.Upsert. The subscope carries
// the provider id so two providers sharing the same idempotency key never
// collide (§4.4).
func (c *Core) LiquidityPolicyUpsert(env dispatch.Envelope, req liquidity.UpsertRequest) dispatch.Response {
	req.Actor = env.Actor
	return c.mutate(&env, "liquidityPolicy.upsert", nil, "provider:"+req.ProviderID, req, "liquidityPolicy", req.ProviderID,
		func() (any, *apperr.Error) {
			return c.LiquidityPolicy.Upsert(req)
		})
}

// LiquidityPolicyGet wires PolicyService.Get as a read.
func (c *Core) LiquidityPolicyGet(env dispatch.Envelope, providerID string) dispatch.Response {
	return c.read(env, "liquidityPolicy.get", nil, "liquidityPolicy", providerID,
		func() (any, *apperr.Error) {
			return c.LiquidityPolicy.Get(providerID)
		})
}

// LiquidityPolicyEvaluateRequest is the request body for the
// liquidityPolicy.evaluate read operation.
type LiquidityPolicyEvaluateRequest struct {
	ProviderID string
	Evaluation policy.Evaluation
}

// LiquidityPolicyEvaluate wires PolicyService.Evaluate as a read.
func (c *Core) LiquidityPolicyEvaluate(env dispatch.Envelope, req LiquidityPolicyEvaluateRequest) dispatch.Response {
	return c.read(env, "liquidityPolicy.evaluate", nil, "liquidityPolicy", req.ProviderID,
		func() (any, *apperr.Error) {
			return c.LiquidityPolicy.Evaluate(req.ProviderID, req.Evaluation)
		})
}

// LiquidityInventoryReserve wires InventoryService.Reserve. Reserve's own
// ok:false conflict outcome (§8 S4) still passes through dispatch.Run as a
// normal successful response body, per that scenario's "engine succeeds"
// framing.
func (c *Core) LiquidityInventoryReserve(env dispatch.Envelope, req liquidity.ReserveRequest) dispatch.Response {
	return c.mutate(&env, "liquidityInventory.reserve", nil, "holding:"+req.HoldingID, req, "liquidityInventory", req.ReservationID,
		func() (any, *apperr.Error) {
			return c.LiquidityInventory.Reserve(req)
		})
}

// LiquidityInventoryRelease wires InventoryService.Release.
func (c *Core) LiquidityInventoryRelease(env dispatch.Envelope, req liquidity.ReleaseRequest) dispatch.Response {
	return c.mutate(&env, "liquidityInventory.release", nil, "holding:"+req.HoldingID, req, "liquidityInventory", req.ReservationID,
		func() (any, *apperr.Error) {
			return nil, c.LiquidityInventory.Release(req)
		})
}

// LiquidityExecutionSetMode wires ExecutionService.SetMode.
func (c *Core) LiquidityExecutionSetMode(env dispatch.Envelope, req liquidity.SetModeRequest) dispatch.Response {
	req.Actor = env.Actor
	return c.mutate(&env, "liquidityExecution.setMode", nil, "provider:"+req.ProviderID, req, "liquidityExecution", req.ProviderID,
		func() (any, *apperr.Error) {
			return c.LiquidityExecution.SetMode(req)
		})
}

// LiquidityExecutionGetMode wires ExecutionService.GetMode as a read.
func (c *Core) LiquidityExecutionGetMode(env dispatch.Envelope, providerID string) dispatch.Response {
	return c.read(env, "liquidityExecution.getMode", nil, "liquidityExecution", providerID,
		func() (any, *apperr.Error) {
			return c.LiquidityExecution.GetMode(providerID), nil
		})
}

// LiquidityExecutionRecord wires ExecutionService.Record.
func (c *Core) LiquidityExecutionRecord(env dispatch.Envelope, req liquidity.RecordRequest) dispatch.Response {
	return c.mutate(&env, "liquidityExecution.record", nil, "provider:"+req.ProviderID, req, "liquidityExecution", req.RequestID,
		func() (any, *apperr.Error) {
			return c.LiquidityExecution.Record(req)
		})
}

// LiquidityExecutionApprove wires ExecutionService.Approve.
func (c *Core) LiquidityExecutionApprove(env dispatch.Envelope, req liquidity.DecisionRequest) dispatch.Response {
	req.OperatorActor = env.Actor
	return c.mutate(&env, "liquidityExecution.approve", nil, "", req, "liquidityExecution", req.RequestID,
		func() (any, *apperr.Error) {
			return c.LiquidityExecution.Approve(req)
		})
}

// LiquidityExecutionReject wires ExecutionService.Reject.
func (c *Core) LiquidityExecutionReject(env dispatch.Envelope, req liquidity.DecisionRequest) dispatch.Response {
	req.OperatorActor = env.Actor
	return c.mutate(&env, "liquidityExecution.reject", nil, "", req, "liquidityExecution", req.RequestID,
		func() (any, *apperr.Error) {
			return c.LiquidityExecution.Reject(req)
		})
}

// LiquidityExecutionGet wires ExecutionService.Get as a read.
func (c *Core) LiquidityExecutionGet(env dispatch.Envelope, requestID string) dispatch.Response {
	return c.read(env, "liquidityExecution.get", nil, "liquidityExecution", requestID,
		func() (any, *apperr.Error) {
			return c.LiquidityExecution.Get(requestID)
		})
}

// LiquidityGovernancePropose wires GovernanceService.Propose.
func (c *Core) LiquidityGovernancePropose(env dispatch.Envelope, req liquidity.ProposeRequest) dispatch.Response {
	return c.mutate(&env, "partnerLiquidityProviderRollout.propose", nil, "provider:"+req.ProviderID, req, "partnerLiquidityProviderRollout", req.RolloutID,
		func() (any, *apperr.Error) {
			return c.LiquidityGovernance.Propose(req)
		})
}

// LiquidityGovernanceApprove wires GovernanceService.Approve.
func (c *Core) LiquidityGovernanceApprove(env dispatch.Envelope, req liquidity.ApproveRequest) dispatch.Response {
	req.Actor = env.Actor
	return c.mutate(&env, "partnerLiquidityProviderRollout.approve", nil, "", req, "partnerLiquidityProviderRollout", req.RolloutID,
		func() (any, *apperr.Error) {
			return c.LiquidityGovernance.Approve(req)
		})
}

// ProviderGovernanceRecordEligibilityRequest is the request body for the
// partnerLiquidityProviderGovernance.recordEligibility operation.
type ProviderGovernanceRecordEligibilityRequest struct {
	ProviderID string
	Verdict    liquidity.EligibilityVerdict
}

// ProviderGovernanceRecordEligibility wires
// ProviderGovernanceStore.RecordEligibility.
func (c *Core) ProviderGovernanceRecordEligibility(env dispatch.Envelope, req ProviderGovernanceRecordEligibilityRequest) dispatch.Response {
	return c.mutate(&env, "partnerLiquidityProviderGovernance.recordEligibility", nil, "provider:"+req.ProviderID, req, "partnerLiquidityProviderGovernance", req.ProviderID,
		func() (any, *apperr.Error) {
			return nil, c.ProviderGovernance.RecordEligibility(req.ProviderID, req.Verdict)
		})
}

// ProviderGovernanceActivateRolloutRequest is the request body for the
// partnerLiquidityProviderGovernance.activateRollout operation.
type ProviderGovernanceActivateRolloutRequest struct {
	ProviderID           string
	EffectiveSegmentTier liquidity.SegmentTier
}

// ProviderGovernanceActivateRollout wires
// ProviderGovernanceStore.ActivateRollout.
func (c *Core) ProviderGovernanceActivateRollout(env dispatch.Envelope, req ProviderGovernanceActivateRolloutRequest) dispatch.Response {
	return c.mutate(&env, "partnerLiquidityProviderGovernance.activateRollout", nil, "provider:"+req.ProviderID, req, "partnerLiquidityProviderGovernance", req.ProviderID,
		func() (any, *apperr.Error) {
			return c.ProviderGovernance.ActivateRollout(req.ProviderID, req.EffectiveSegmentTier)
		})
}

// ProviderGovernanceGet wires ProviderGovernanceStore.Get as a read.
func (c *Core) ProviderGovernanceGet(env dispatch.Envelope, providerID string) dispatch.Response {
	return c.read(env, "partnerLiquidityProviderGovernance.get", nil, "partnerLiquidityProviderGovernance", providerID,
		func() (any, *apperr.Error) {
			return c.ProviderGovernance.Get(providerID)
		})
}
