package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/transparency"
)

// TransparencyRecord wires transparency.Service.Record.
func (c *Core) TransparencyRecord(env dispatch.Envelope, req transparency.RecordRequest) dispatch.Response {
	return c.mutate(&env, "transparencyLog.record", nil, "partner:"+req.Partner, req, "transparencyLog", req.PublicationID,
		func() (any, *apperr.Error) {
			return c.Transparency.Record(req)
		})
}

// TransparencyChain wires transparency.Service.Chain as a read.
func (c *Core) TransparencyChain(env dispatch.Envelope, partner string) dispatch.Response {
	return c.read(env, "transparencyLog.chain", nil, "transparencyLog", partner,
		func() (any, *apperr.Error) {
			return c.Transparency.Chain(partner), nil
		})
}
