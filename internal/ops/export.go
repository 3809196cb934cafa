// This file wires the six genuine "*.export" contracts named in §6's
// retention/checkpoint config keys through internal/export.Run (§4.7),
// replacing any domain-local reimplementation of pagination for those
// contracts. stagingEvidenceBundle.list is deliberately NOT one of these:
// §7 frames it as plain continuation-anchor pagination, not an attested
// export, and it carries no retention/checkpoint config of its own.
// METRICS_EXPORT_CHECKPOINT_RETENTION_DAYS (§6) has no backing domain
// package in this core and is left unwired (see DESIGN.md).
package ops

import (
	"marketcore/internal/apperr"
	"marketcore/internal/dispatch"
	"marketcore/internal/export"
)

func (c *Core) runExport(env dispatch.Envelope, opID, kind, contract, tenant string, rawQuery map[string]any, allowedExtraKeys map[string]struct{}, cursorOf export.CursorFunc, retentionDays, checkpointRetentionDays int, enforceCheckpoint bool, matchesKind func(string) bool) dispatch.Response {
	return c.read(env, opID, nil, contract, tenant, func() (any, *apperr.Error) {
		return c.exportPage(kind, contract, tenant, rawQuery, allowedExtraKeys, cursorOf, retentionDays, checkpointRetentionDays, enforceCheckpoint, matchesKind)
	})
}

// InclusionProofExport wires the inclusionProof.export contract.
func (c *Core) InclusionProofExport(env dispatch.Envelope, tenant string, rawQuery map[string]any) dispatch.Response {
	return c.runExport(env, "inclusionProof.export", "inclusionProof", "inclusionProof.export", tenant, rawQuery, nil,
		export.RecordedAtAndID,
		0, c.Store.Config.InclusionProofExportCheckpointRetentionDays,
		c.Store.Config.InclusionProofExportCheckpointEnforce, nil)
}

// TransparencyLogExport wires the transparencyLog.export contract.
func (c *Core) TransparencyLogExport(env dispatch.Envelope, tenant string, rawQuery map[string]any) dispatch.Response {
	return c.runExport(env, "transparencyLog.export", "transparency", "transparencyLog.export", tenant, rawQuery, nil,
		export.RecordedAtAndID,
		0, c.Store.Config.TransparencyLogExportCheckpointRetentionDays,
		c.Store.Config.TransparencyLogExportCheckpointEnforce, nil)
}

// LiquidityPolicyAuditExport wires the liquidityPolicyAudit.export contract
// over the PolicyService's own ledger stream.
func (c *Core) LiquidityPolicyAuditExport(env dispatch.Envelope, tenant string, rawQuery map[string]any) dispatch.Response {
	return c.runExport(env, "liquidityPolicyAudit.export", "liquidityPolicy", "liquidityPolicyAudit.export", tenant, rawQuery, nil,
		export.RecordedAtAndID,
		c.Store.Config.LiquidityPolicyAuditExportRetentionDays, c.Store.Config.LiquidityPolicyAuditExportCheckpointRetentionDays,
		false, nil)
}

// LiquidityExecutionExport wires the liquidityExecution.export contract,
// covering record/approve/reject events from a single multi-kind stream.
func (c *Core) LiquidityExecutionExport(env dispatch.Envelope, tenant string, rawQuery map[string]any) dispatch.Response {
	return c.runExport(env, "liquidityExecution.export", "liquidityExecution", "liquidityExecution.export", tenant, rawQuery, nil,
		export.RecordedAtAndID,
		c.Store.Config.LiquidityExecutionExportRetentionDays, c.Store.Config.LiquidityExecutionExportCheckpointRetentionDays,
		false, nil)
}

// PartnerLiquidityProviderRolloutExport wires the
// partnerLiquidityProviderRollout.export contract over the governance
// service's ledger stream (started/approved events).
func (c *Core) PartnerLiquidityProviderRolloutExport(env dispatch.Envelope, tenant string, rawQuery map[string]any) dispatch.Response {
	return c.runExport(env, "partnerLiquidityProviderRollout.export", "liquidityGovernance", "partnerLiquidityProviderRollout.export", tenant, rawQuery, nil,
		export.RecordedAtAndID,
		c.Store.Config.PartnerLiquidityProviderRolloutExportRetentionDays, c.Store.Config.PartnerLiquidityProviderRolloutExportCheckpointRetentionDays,
		false, nil)
}

// trustSafetyExportAllowedExtraKeys accepts the "redact_subject" filter key
// so that queries carrying it are not rejected; the export itself applies
// no redaction, and the page's entries are returned unredacted.
var trustSafetyExportAllowedExtraKeys = map[string]struct{}{"redact_subject": {}}

// TrustSafetyExport wires the trustSafety.export contract over the
// combined signal/decision ledger stream.
func (c *Core) TrustSafetyExport(env dispatch.Envelope, tenant string, rawQuery map[string]any) dispatch.Response {
	return c.runExport(env, "trustSafety.export", "trustSafety", "trustSafety.export", tenant, rawQuery, trustSafetyExportAllowedExtraKeys,
		export.RecordedAtAndID,
		c.Store.Config.TrustSafetyExportRetentionDays, c.Store.Config.TrustSafetyExportCheckpointRetentionDays,
		false, nil)
}
