package rollout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func fixedEnumerator(out EngineOutput) CycleEnumerator {
	return EnumeratorFunc(func(ctx context.Context, in EngineInput) (EngineOutput, error) {
		return out, nil
	})
}

func baseRequest(runID string) RunRequest {
	return RunRequest{
		Ctx:                context.Background(),
		RunID:              runID,
		Tenant:             "t1",
		ActorType:          "user",
		ActorID:            "u1",
		IdempotencyKey:     "k1",
		RequestedAtISO:     "2025-01-01T00:00:00Z",
		NowISO:             "2025-01-01T00:00:00Z",
		StoredAssetValuesUSD: map[string]float64{"asset_a": 10},
		ActiveIntents: []Intent{
			{IntentID: "i1", AssetID: "asset_a", ValueUSD: 10},
			{IntentID: "i2", AssetID: "asset_a", ValueUSD: 10},
		},
		V1: fixedEnumerator(EngineOutput{
			Proposals: []CycleProposal{{ProposalID: "p1", IntentIDs: []string{"i1", "i2"}, ConfidenceScore: 0.9}},
			Stats:     EngineStats{CandidateCycles: 1},
		}),
		V2: fixedEnumerator(EngineOutput{
			Proposals: []CycleProposal{{ProposalID: "p1v2", IntentIDs: []string{"i1", "i2"}, ConfidenceScore: 0.95}},
			Stats:     EngineStats{CandidateCycles: 1},
		}),
	}
}

func TestAssetValuesMissingRejectsCall(t *testing.T) {
	c := NewController(10)
	req := baseRequest("run1")
	req.StoredAssetValuesUSD = nil
	req.ActiveIntents = nil
	_, err := c.Execute(Config{}, req)
	require.NotNil(t, err)
	require.EqualValues(t, ReasonAssetValuesMissing, err.Reason())
}

func TestV2DisabledUsesV1Only(t *testing.T) {
	c := NewController(10)
	result, err := c.Execute(Config{}, baseRequest("run1"))
	require.Nil(t, err)
	require.Equal(t, "v1", result.PrimaryEngine)
	require.Len(t, result.Proposals, 1)
}

func TestPrimaryEnabledSelectsV2Unconditionally(t *testing.T) {
	c := NewController(10)
	cfg := Config{PrimaryEnabled: true}
	result, err := c.Execute(cfg, baseRequest("run1"))
	require.Nil(t, err)
	require.Equal(t, "v2", result.PrimaryEngine)
	require.Equal(t, "p1v2_i1>i2", result.Proposals[0].ProposalID)
}

func TestCanaryBucketGatesV2Selection(t *testing.T) {
	c := NewController(10)
	cfg := Config{CanaryEnabled: true, RolloutBps: 0}
	result, err := c.Execute(cfg, baseRequest("run1"))
	require.Nil(t, err)
	require.Equal(t, SkippedRolloutExcluded, result.SkippedReason)
	require.Equal(t, "v1", result.PrimaryEngine)
}

func TestForceBucketV2SelectsV2Regardless(t *testing.T) {
	c := NewController(10)
	cfg := Config{CanaryEnabled: true, RolloutBps: 0, ForceBucketV2: true}
	result, err := c.Execute(cfg, baseRequest("run1"))
	require.Nil(t, err)
	require.Equal(t, "v2", result.PrimaryEngine)
}

// S6: with canary.rollout_bps=10000 and force_canary_error=true, two
// consecutive runs record two error samples that summarize to a rollback
// trigger; the third run reports skipped_reason=rollback_active and
// primary_engine=v1.
func TestS6RollbackLatchActivatesAfterErrorRuns(t *testing.T) {
	c := NewController(2)
	cfg := Config{
		CanaryEnabled:    true,
		RolloutBps:       10000,
		ForceCanaryError: true,
		Thresholds:       TriggerThresholds{ErrorRate: 0.5, TimeoutRate: 1, LimitedRate: 1, NegativeDeltaRate: 1},
	}

	r1, err := c.Execute(cfg, baseRequest("run1"))
	require.Nil(t, err)
	require.Equal(t, "v1", r1.PrimaryEngine)
	require.Equal(t, FallbackCanaryError, r1.FallbackReasonCode)
	require.False(t, r1.LatchActive)

	r2, err := c.Execute(cfg, baseRequest("run2"))
	require.Nil(t, err)
	require.True(t, r2.LatchActive)
	require.Equal(t, TriggerErrorRate, r2.LatchTriggerReason)

	r3, err := c.Execute(cfg, baseRequest("run3"))
	require.Nil(t, err)
	require.Equal(t, SkippedRollbackActive, r3.SkippedReason)
	require.Equal(t, "v1", r3.PrimaryEngine)
}

func TestRollbackLatchClearsOnPrimaryEnabledReset(t *testing.T) {
	c := NewController(2)
	cfg := Config{
		CanaryEnabled:    true,
		RolloutBps:       10000,
		ForceCanaryError: true,
		Thresholds:       TriggerThresholds{ErrorRate: 0.5, TimeoutRate: 1, LimitedRate: 1, NegativeDeltaRate: 1},
	}
	c.Execute(cfg, baseRequest("run1"))
	c.Execute(cfg, baseRequest("run2"))
	require.True(t, c.Latch.Active)

	resetCfg := cfg
	resetCfg.PrimaryEnabled = true
	resetCfg.ForceCanaryError = false
	resetCfg.RollbackReset = true
	result, err := c.Execute(resetCfg, baseRequest("run4"))
	require.Nil(t, err)
	require.False(t, result.LatchActive)
}

func TestV2TimeoutFallsBackToV1InPrimaryMode(t *testing.T) {
	c := NewController(10)
	req := baseRequest("run1")
	req.V2 = fixedEnumerator(EngineOutput{
		Proposals: []CycleProposal{{ProposalID: "p1v2", IntentIDs: []string{"i1", "i2"}, ConfidenceScore: 0.5}},
		Stats:     EngineStats{CycleEnumerationTimedOut: true},
	})
	cfg := Config{PrimaryEnabled: true, FallbackOnTimeout: true}
	result, err := c.Execute(cfg, req)
	require.Nil(t, err)
	require.Equal(t, "v1", result.PrimaryEngine)
	require.Equal(t, FallbackV2TimeoutSafety, result.FallbackReasonCode)
}

func TestShadowDiffRecordedWhenV2NotPrimary(t *testing.T) {
	c := NewController(10)
	req := baseRequest("run1")
	cfg := Config{ShadowEnabled: true, MaxShadowDiffs: 5}
	result, err := c.Execute(cfg, req)
	require.Nil(t, err)
	require.NotNil(t, result.ShadowDiff)
	require.Contains(t, result.ShadowDiff.OverlapCycleKeys, "i1>i2")
	require.Len(t, c.Diffs, 1)
}

func TestShadowSuppressedWhenPrimaryAndLatchAlreadyActive(t *testing.T) {
	c := NewController(2)
	errCfg := Config{
		CanaryEnabled:    true,
		RolloutBps:       10000,
		ForceCanaryError: true,
		Thresholds:       TriggerThresholds{ErrorRate: 0.5, TimeoutRate: 1, LimitedRate: 1, NegativeDeltaRate: 1},
	}
	c.Execute(errCfg, baseRequest("run1"))
	c.Execute(errCfg, baseRequest("run2"))
	require.True(t, c.Latch.Active)

	cfg := Config{PrimaryEnabled: true, ShadowEnabled: true}
	result, err := c.Execute(cfg, baseRequest("run3"))
	require.Nil(t, err)
	require.Equal(t, SkippedRollbackActive, result.SkippedReason)
	require.Nil(t, result.ShadowDiff)
}

func TestExpiredProposalsDropUnlessInUse(t *testing.T) {
	c := NewController(10)
	req := baseRequest("run1")
	req.ExistingProposals = []*Proposal{
		{ProposalID: "old1", ExpiresAtISO: "2024-01-01T00:00:00Z"},
		{ProposalID: "old2", ExpiresAtISO: "2024-01-01T00:00:00Z"},
	}
	req.IsInUse = func(id string) bool { return id == "old2" }
	result, err := c.Execute(Config{}, req)
	require.Nil(t, err)
	var ids []string
	for _, p := range result.RemainingProposals {
		ids = append(ids, p.ProposalID)
	}
	require.NotContains(t, ids, "old1")
	require.Contains(t, ids, "old2")
}

func TestMaxProposalsSlicesPrimaryOutput(t *testing.T) {
	c := NewController(10)
	req := baseRequest("run1")
	req.V1 = fixedEnumerator(EngineOutput{
		Proposals: []CycleProposal{
			{ProposalID: "p1", IntentIDs: []string{"i1", "i2"}, ConfidenceScore: 0.9},
			{ProposalID: "p2", IntentIDs: []string{"i3", "i4"}, ConfidenceScore: 0.8},
		},
	})
	cfg := Config{MaxProposals: 1}
	result, err := c.Execute(cfg, req)
	require.Nil(t, err)
	require.Len(t, result.Proposals, 1)
}

func TestCycleKeyRotationInvariance(t *testing.T) {
	require.Equal(t, CycleKey([]string{"b", "c", "a"}), CycleKey([]string{"a", "b", "c"}))
	require.Equal(t, CycleKey([]string{"c", "a", "b"}), CycleKey([]string{"a", "b", "c"}))
	require.NotEqual(t, CycleKey([]string{"a", "c", "b"}), CycleKey([]string{"a", "b", "c"}))
}

func TestDeltaScoreScaledSumsRounded(t *testing.T) {
	proposals := []CycleProposal{{ConfidenceScore: 0.9}, {ConfidenceScore: 0.12345}}
	require.EqualValues(t, 9000+1235, DeltaScoreScaled(proposals))
}
