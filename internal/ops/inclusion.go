package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/inclusion"
)

// InclusionRecord wires inclusion.Service.Record, the central linkage-chain
// append behind the inclusionProof.record operation.
func (c *Core) InclusionRecord(env dispatch.Envelope, req inclusion.RecordRequest) dispatch.Response {
	return c.mutate(&env, "inclusionProof.record", nil, "", req, "inclusionProof", req.LinkageID,
		func() (any, *apperr.Error) {
			return c.Inclusion.Record(req)
		})
}

// InclusionVerifyChain wires inclusion.Service.VerifyChain as a read.
func (c *Core) InclusionVerifyChain(env dispatch.Envelope) dispatch.Response {
	return c.read(env, "inclusionProof.verifyChain", nil, "inclusionProof", "chain",
		func() (any, *apperr.Error) {
			return c.Inclusion.VerifyChain(), nil
		})
}
