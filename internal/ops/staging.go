package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/domain/staging"
)

// StagingRecord wires staging.Service.Record.
func (c *Core) StagingRecord(env dispatch.Envelope, req staging.RecordRequest) dispatch.Response {
	return c.mutate(&env, "stagingEvidenceBundle.record", nil, "partner:"+req.Partner, req, "staging", req.BundleID,
		func() (any, *apperr.Error) {
			return c.Staging.Record(req)
		})
}

// StagingListRequest is the request body for the stagingEvidenceBundle.list
// read operation: plain continuation-anchor pagination, not an attested
// export (§7's own framing of this call).
type StagingListRequest struct {
	AfterBundleID string
	PageSize      int
}

// StagingList wires staging.Service.List as a read.
func (c *Core) StagingList(env dispatch.Envelope, req StagingListRequest) dispatch.Response {
	return c.read(env, "stagingEvidenceBundle.list", nil, "staging", req.AfterBundleID,
		func() (any, *apperr.Error) {
			return c.Staging.List(req.AfterBundleID, req.PageSize)
		})
}
