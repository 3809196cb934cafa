package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/compensation"
)

// CompensationOpen wires compensation.Service.Open.
func (c *Core) CompensationOpen(env dispatch.Envelope, req compensation.OpenRequest) dispatch.Response {
	return c.mutate(&env, "crossAdapterCompensationCase.open", nil, "", req, "compensation", req.CaseID,
		func() (any, *apperr.Error) {
			return c.Compensation.Open(req)
		})
}

// CompensationApprove wires compensation.Service.Approve.
func (c *Core) CompensationApprove(env dispatch.Envelope, req compensation.TransitionRequest) dispatch.Response {
	return c.mutate(&env, "crossAdapterCompensationCase.approve", nil, "", req, "compensation", req.CaseID,
		func() (any, *apperr.Error) {
			return c.Compensation.Approve(req)
		})
}

// CompensationReject wires compensation.Service.Reject.
func (c *Core) CompensationReject(env dispatch.Envelope, req compensation.TransitionRequest) dispatch.Response {
	return c.mutate(&env, "crossAdapterCompensationCase.reject", nil, "", req, "compensation", req.CaseID,
		func() (any, *apperr.Error) {
			return c.Compensation.Reject(req)
		})
}

// CompensationResolve wires compensation.Service.Resolve.
func (c *Core) CompensationResolve(env dispatch.Envelope, req compensation.TransitionRequest) dispatch.Response {
	return c.mutate(&env, "crossAdapterCompensationCase.resolve", nil, "", req, "compensation", req.CaseID,
		func() (any, *apperr.Error) {
			return c.Compensation.Resolve(req)
		})
}

// CompensationGet wires compensation.Service.Get as a read.
func (c *Core) CompensationGet(env dispatch.Envelope, caseID string) dispatch.Response {
	return c.read(env, "crossAdapterCompensationCase.get", nil, "compensation", caseID,
		func() (any, *apperr.Error) {
			return c.Compensation.Get(caseID)
		})
}
