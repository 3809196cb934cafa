package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/trustsafety"
)

// TrustSafetyRecordSignal wires trustsafety.Service.RecordSignal.
func (c *Core) TrustSafetyRecordSignal(env dispatch.Envelope, req trustsafety.RecordSignalRequest) dispatch.Response {
	req.Actor = env.Actor
	return c.mutate(&env, "trustSafety.recordSignal", nil, "", req, "trustSafety", req.SignalID,
		func() (any, *apperr.Error) {
			return c.TrustSafety.RecordSignal(req)
		})
}

// TrustSafetyRecordDecision wires trustsafety.Service.RecordDecision.
func (c *Core) TrustSafetyRecordDecision(env dispatch.Envelope, req trustsafety.RecordDecisionRequest) dispatch.Response {
	req.Actor = env.Actor
	return c.mutate(&env, "trustSafety.recordDecision", nil, "", req, "trustSafety", req.DecisionID,
		func() (any, *apperr.Error) {
			return c.TrustSafety.RecordDecision(req)
		})
}

// TrustSafetyListVisible wires trustsafety.Service.ListVisible as a read.
func (c *Core) TrustSafetyListVisible(env dispatch.Envelope) dispatch.Response {
	return c.read(env, "trustSafety.listVisible", nil, "trustSafety", env.Actor.ID,
		func() (any, *apperr.Error) {
			return c.TrustSafety.ListVisible(env.Actor), nil
		})
}
