// Package config loads the typed runtime Config from environment
// variables, the way services/escrow-gateway/config.go does it: a flat
// list of getenv lookups with inline validation, no file format, no
// third-party config library (§6).
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Getenv matches os.Getenv's signature; Load takes it as a parameter so
// tests can supply a fake environment instead of mutating process state.
type Getenv func(key string) string

const (
	minRetentionDays = 1
	maxRetentionDays = 3650
)

// Config is the process-wide set of recognized options from §6.
type Config struct {
	IntegrationEnabled bool
	AuthzNowISO        string

	InclusionProofExportCheckpointRetentionDays int
	TransparencyLogExportCheckpointRetentionDays int
	MetricsExportCheckpointRetentionDays         int

	LiquidityPolicyAuditExportCheckpointRetentionDays int
	LiquidityPolicyAuditExportRetentionDays           int

	LiquidityExecutionExportRetentionDays           int
	LiquidityExecutionExportCheckpointRetentionDays int

	PartnerLiquidityProviderRolloutExportRetentionDays           int
	PartnerLiquidityProviderRolloutExportCheckpointRetentionDays int

	TrustSafetyExportRetentionDays           int
	TrustSafetyExportCheckpointRetentionDays int

	InclusionProofExportCheckpointEnforce   bool
	TransparencyLogExportCheckpointEnforce  bool

	Matching MatchingConfig
}

// MatchingConfig groups the rollout-controller tunables named in §6.
type MatchingConfig struct {
	ShadowEnabled      bool
	MinCycleLength     int
	MaxCycleLength     int
	MaxEnumeratedCycles int
	TimeoutMS          int

	RolloutBps        int
	RollbackWindowRuns int

	ForceBucketV2     bool
	ForceCanaryError  bool
	RollbackReset     bool
	PrimaryEnabled    bool
	CanaryEnabled     bool
	TSShadowEnabled   bool

	FallbackOnTimeout bool
	FallbackOnLimited bool

	MaxShadowDiffs   int
	MaxTSShadowDiffs int
	MaxProposals     int
}

// Load builds a Config from the given environment accessor, applying the
// defaults and clamps from §6 (integer days clamp to [1, 3650]).
func Load(getenv Getenv) (Config, error) {
	cfg := Config{
		IntegrationEnabled: boolFlag(getenv, "INTEGRATION_ENABLED"),
		AuthzNowISO:        strings.TrimSpace(getenv("AUTHZ_NOW_ISO")),

		InclusionProofExportCheckpointEnforce:  boolFlag(getenv, "INCLUSION_PROOF_EXPORT_CHECKPOINT_ENFORCE"),
		TransparencyLogExportCheckpointEnforce: boolFlag(getenv, "TRANSPARENCY_LOG_EXPORT_CHECKPOINT_ENFORCE"),
	}

	var err error
	if cfg.InclusionProofExportCheckpointRetentionDays, err = days(getenv, "INCLUSION_PROOF_EXPORT_CHECKPOINT_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.TransparencyLogExportCheckpointRetentionDays, err = days(getenv, "TRANSPARENCY_LOG_EXPORT_CHECKPOINT_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.MetricsExportCheckpointRetentionDays, err = days(getenv, "METRICS_EXPORT_CHECKPOINT_RETENTION_DAYS", 180); err != nil {
		return Config{}, err
	}
	if cfg.LiquidityPolicyAuditExportCheckpointRetentionDays, err = days(getenv, "LIQUIDITY_POLICY_AUDIT_EXPORT_CHECKPOINT_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.LiquidityPolicyAuditExportRetentionDays, err = days(getenv, "LIQUIDITY_POLICY_AUDIT_EXPORT_RETENTION_DAYS", 7); err != nil {
		return Config{}, err
	}
	if cfg.LiquidityExecutionExportRetentionDays, err = days(getenv, "LIQUIDITY_EXECUTION_EXPORT_RETENTION_DAYS", 7); err != nil {
		return Config{}, err
	}
	if cfg.LiquidityExecutionExportCheckpointRetentionDays, err = days(getenv, "LIQUIDITY_EXECUTION_EXPORT_CHECKPOINT_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.PartnerLiquidityProviderRolloutExportRetentionDays, err = days(getenv, "PARTNER_LIQUIDITY_PROVIDER_ROLLOUT_EXPORT_RETENTION_DAYS", 7); err != nil {
		return Config{}, err
	}
	if cfg.PartnerLiquidityProviderRolloutExportCheckpointRetentionDays, err = days(getenv, "PARTNER_LIQUIDITY_PROVIDER_ROLLOUT_EXPORT_CHECKPOINT_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}
	if cfg.TrustSafetyExportRetentionDays, err = days(getenv, "TRUST_SAFETY_EXPORT_RETENTION_DAYS", 7); err != nil {
		return Config{}, err
	}
	if cfg.TrustSafetyExportCheckpointRetentionDays, err = days(getenv, "TRUST_SAFETY_EXPORT_CHECKPOINT_RETENTION_DAYS", 30); err != nil {
		return Config{}, err
	}

	cfg.Matching = MatchingConfig{
		ShadowEnabled:       boolFlag(getenv, "MATCHING_V2_SHADOW"),
		MinCycleLength:      intDefault(getenv, "MATCHING_V2_MIN_CYCLE_LENGTH", 2),
		MaxCycleLength:      intDefault(getenv, "MATCHING_V2_MAX_CYCLE_LENGTH", 3),
		MaxEnumeratedCycles: intDefault(getenv, "MATCHING_V2_MAX_CYCLES_EXPLORED", 5000),
		TimeoutMS:           intDefault(getenv, "MATCHING_V2_TIMEOUT_MS", 250),
		RolloutBps:          intDefault(getenv, "MATCHING_V2_ROLLOUT_BPS", 0),
		RollbackWindowRuns:  intDefault(getenv, "MATCHING_V2_ROLLBACK_WINDOW_RUNS", 20),
		ForceBucketV2:       boolFlag(getenv, "MATCHING_V2_FORCE_BUCKET"),
		ForceCanaryError:    boolFlag(getenv, "MATCHING_V2_FORCE_CANARY_ERROR"),
		RollbackReset:       boolFlag(getenv, "MATCHING_V2_ROLLBACK_RESET"),
		PrimaryEnabled:      boolFlag(getenv, "MATCHING_V2_PRIMARY_ENABLED"),
		CanaryEnabled:       boolFlag(getenv, "MATCHING_V2_CANARY_ENABLED"),
		TSShadowEnabled:     boolFlag(getenv, "MATCHING_TS_SHADOW"),
		FallbackOnTimeout:   boolFlag(getenv, "MATCHING_V2_FALLBACK_ON_TIMEOUT"),
		FallbackOnLimited:   boolFlag(getenv, "MATCHING_V2_FALLBACK_ON_LIMITED"),
		MaxShadowDiffs:      intDefault(getenv, "MATCHING_MAX_SHADOW_DIFFS", 50),
		MaxTSShadowDiffs:    intDefault(getenv, "MATCHING_MAX_TS_SHADOW_DIFFS", 50),
		MaxProposals:        intDefault(getenv, "MATCHING_MAX_PROPOSALS", 500),
	}

	return cfg, nil
}

func boolFlag(getenv Getenv, key string) bool {
	return strings.TrimSpace(getenv(key)) == "1"
}

func days(getenv Getenv, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: parse %s: %w", key, err)
	}
	if n < minRetentionDays {
		n = minRetentionDays
	}
	if n > maxRetentionDays {
		n = maxRetentionDays
	}
	return n, nil
}

func intDefault(getenv Getenv, key string, def int) int {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
