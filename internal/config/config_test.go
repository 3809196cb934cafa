package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) Getenv {
	return func(key string) string { return m[key] }
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(envMap(nil))
	require.NoError(t, err)
	require.False(t, cfg.IntegrationEnabled)
	require.Equal(t, 30, cfg.InclusionProofExportCheckpointRetentionDays)
	require.Equal(t, 180, cfg.MetricsExportCheckpointRetentionDays)
	require.Equal(t, 7, cfg.LiquidityPolicyAuditExportRetentionDays)
	require.Equal(t, 2, cfg.Matching.MinCycleLength)
	require.Equal(t, 3, cfg.Matching.MaxCycleLength)
}

func TestLoadClampsRetentionDays(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"INCLUSION_PROOF_EXPORT_CHECKPOINT_RETENTION_DAYS": "999999",
		"METRICS_EXPORT_CHECKPOINT_RETENTION_DAYS":         "0",
	}))
	require.NoError(t, err)
	require.Equal(t, 3650, cfg.InclusionProofExportCheckpointRetentionDays)
	require.Equal(t, 1, cfg.MetricsExportCheckpointRetentionDays)
}

func TestLoadBoolFlags(t *testing.T) {
	cfg, err := Load(envMap(map[string]string{
		"INTEGRATION_ENABLED": "1",
		"MATCHING_V2_SHADOW":  "1",
	}))
	require.NoError(t, err)
	require.True(t, cfg.IntegrationEnabled)
	require.True(t, cfg.Matching.ShadowEnabled)
}

func TestLoadRejectsUnparseableRetention(t *testing.T) {
	_, err := Load(envMap(map[string]string{
		"TRUST_SAFETY_EXPORT_RETENTION_DAYS": "not-a-number",
	}))
	require.Error(t, err)
}
