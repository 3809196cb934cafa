package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/reliability"
)

// ReliabilitySuggest wires reliability.Service.Suggest. The correlation id
// keys off tenant since Suggest's own plan id is derived from the full
// signal summary, not a caller-supplied request id.
func (c *Core) ReliabilitySuggest(env dispatch.Envelope, req reliability.SuggestRequest) dispatch.Response {
	return c.mutate(&env, "reliabilityRemediationPlan.suggest", nil, "tenant:"+req.Tenant, req, "reliability", req.Tenant,
		func() (any, *apperr.Error) {
			return c.Reliability.Suggest(req)
		})
}
