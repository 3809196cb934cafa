package rollout

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"marketcore/internal/apperr"
)

// Reason codes specific to this package.
const (
	ReasonAssetValuesMissing apperr.Reason = "asset_values_missing"
	ReasonV1EngineError      apperr.Reason = "v1_engine_error"
)

// ProposalStatus mirrors native/escrow's closed-status enums.
type ProposalStatus string

const (
	ProposalOpen    ProposalStatus = "open"
	ProposalExpired ProposalStatus = "expired"
)

// Proposal is a persisted marketplace matching proposal (§4.10 step 9).
// Cross-references to timelines/receipts/reservations are by id only,
// following the "each record stores ids only" convention (§9) — this
// package never imports the domain packages that hold those maps.
type Proposal struct {
	ProposalID      string
	RunID           string
	Tenant          string
	IntentIDs       []string
	ConfidenceScore float64
	Status          ProposalStatus
	ExpiresAtISO    string
	Engine          string // "v1" or "v2", whichever engine's run produced it
}

// Clone deep-copies p.
func (p *Proposal) Clone() *Proposal {
	if p == nil {
		return nil
	}
	clone := *p
	if len(p.IntentIDs) > 0 {
		clone.IntentIDs = append([]string(nil), p.IntentIDs...)
	}
	return &clone
}

// InUseChecker reports whether a proposal is held by any downstream
// commit/timeline/receipt/reservation (§4.10 step 2's "held references
// gate deletion"). The concrete views live in the domain packages that own
// them; this package only consults the predicate.
type InUseChecker func(proposalID string) bool

// FallbackReason enumerates §4.10 step 6's v2-to-v1 fallback codes.
type FallbackReason string

const (
	FallbackV2TimeoutSafety FallbackReason = "v2_timeout_safety"
	FallbackV2LimitedSafety FallbackReason = "v2_limited_safety"
	FallbackV2Error         FallbackReason = "v2_error"
	FallbackCanaryError     FallbackReason = "canary_error"
)

// SkippedReason enumerates §4.10 step 5's v2-skip codes.
type SkippedReason string

const (
	SkippedRollbackActive SkippedReason = "rollback_active"
	SkippedRolloutExcluded SkippedReason = "rollout_excluded"
)

// DiffRecord is a shadow or TS-shadow comparison between the primary
// engine's result and a non-primary engine run over the same input
// (§4.10's final paragraph).
type DiffRecord struct {
	RunID                string
	PrimaryCycleCount    int
	ShadowCycleCount     int
	PrimaryProposalCount int
	ShadowProposalCount  int
	OverlapCycleKeys     []string
	DeltaScoreSumScaled  int64
}

// Config bundles the per-run tunables the controller must accept rather
// than hard-code (§9 open question on trigger thresholds).
type Config struct {
	Salt                string
	RolloutBps          int
	PrimaryEnabled      bool
	CanaryEnabled       bool
	ForceBucketV2       bool
	ForceCanaryError    bool
	RollbackReset       bool
	ShadowEnabled       bool
	TSShadowEnabled     bool
	FallbackOnTimeout   bool
	FallbackOnLimited   bool
	RollbackWindowRuns  int
	MaxProposals        int
	MaxShadowDiffs      int
	MaxTSShadowDiffs    int
	Thresholds          TriggerThresholds
}

// RunRequest is one matching-rollout invocation (§4.10 steps 1-3 inputs).
type RunRequest struct {
	Ctx              context.Context
	RunID            string
	Tenant           string
	ActorType        string
	ActorID          string
	IdempotencyKey   string
	RequestedAtISO   string
	NowISO           string
	StoredAssetValuesUSD map[string]float64
	RequestAssetValuesUSD map[string]float64
	ActiveIntents    []Intent
	ActiveEdgeIntents []Intent
	ReplaceExisting  bool
	MaxProposalsOverride int

	V1 CycleEnumerator
	V2 CycleEnumerator
	V2Prime CycleEnumerator // TS-shadow engine (v2')

	ExistingProposals []*Proposal
	IsInUse           InUseChecker
}

// RunResult is the outcome of one Execute call.
type RunResult struct {
	PrimaryEngine      string
	SkippedReason      SkippedReason
	FallbackReasonCode FallbackReason
	Proposals          []*Proposal
	RemainingProposals []*Proposal // the full surviving set after expiry/replace, for persistence
	ShadowDiff         *DiffRecord
	TSShadowDiff       *DiffRecord
	LatchActive        bool
	LatchTriggerReason TriggerReason
	Bucket             int
}

// Controller holds the rollout controller's sticky state: the rollback
// latch and its sampling window. One Controller instance exists per
// matching scope (§5: mutations against it must be serialized by the
// caller's single writer, typically store.Store.Write).
type Controller struct {
	Latch  Latch
	Window *Window
	Diffs  []DiffRecord
	TSDiffs []DiffRecord
}

// NewController builds a Controller with an empty latch and a sampling
// window of the given size.
func NewController(windowSize int) *Controller {
	return &Controller{Window: NewWindow(windowSize)}
}

func mergeAssetValues(stored, derived, request map[string]float64) map[string]float64 {
	out := map[string]float64{}
	for k, v := range stored {
		out[k] = v
	}
	for k, v := range derived {
		out[k] = v
	}
	for k, v := range request {
		out[k] = v
	}
	return out
}

func deriveAssetValuesFromIntents(intents []Intent) map[string]float64 {
	out := map[string]float64{}
	for _, in := range intents {
		if in.AssetID != "" {
			out[in.AssetID] = in.ValueUSD
		}
	}
	return out
}

// Execute runs the full §4.10 state machine for one matching cycle.
func (c *Controller) Execute(cfg Config, req RunRequest) (RunResult, *apperr.Error) {
	merged := mergeAssetValues(req.StoredAssetValuesUSD, deriveAssetValuesFromIntents(req.ActiveIntents), req.RequestAssetValuesUSD)
	if len(merged) == 0 {
		return RunResult{}, apperr.ConstraintViolation(ReasonAssetValuesMissing, "no asset values available from store, intents, or request", nil)
	}

	surviving := expireAndFilter(req.ExistingProposals, req.NowISO, req.IsInUse, req.ReplaceExisting)

	result := RunResult{RemainingProposals: surviving}

	v1Input := EngineInput{
		ActiveIntents:      req.ActiveIntents,
		AssetValuesUSD:     merged,
		ActiveEdgeIntents:  req.ActiveEdgeIntents,
		NowISO:             req.NowISO,
		MinCycleLength:     2,
		MaxCycleLength:     3,
	}
	v1Out, v1Err := req.V1.Enumerate(req.Ctx, v1Input)
	if v1Err != nil {
		return RunResult{}, apperr.ConstraintViolation(ReasonV1EngineError, v1Err.Error(), nil)
	}

	primaryEngine := "v1"
	primaryProposals := v1Out.Proposals

	bucket := Bucket(cfg.Salt, req.ActorType, req.ActorID, req.IdempotencyKey, req.RequestedAtISO)
	result.Bucket = bucket

	v2Selected := false
	switch {
	case cfg.PrimaryEnabled || cfg.CanaryEnabled:
		switch {
		case c.Latch.Active:
			result.SkippedReason = SkippedRollbackActive
		case cfg.PrimaryEnabled:
			v2Selected = true
		case bucket < cfg.RolloutBps || cfg.ForceBucketV2:
			v2Selected = true
		default:
			result.SkippedReason = SkippedRolloutExcluded
		}
	}

	latchWasActiveBeforeRun := c.Latch.Active
	var v2Out EngineOutput
	v2Ran := false
	var v2RunErr error
	var tsOut EngineOutput
	tsRan := false

	// The canary v2 run and the TS-shadow (v2') run are independent engine
	// invocations over the same input; fan them out concurrently rather
	// than paying their latency serially.
	g, gctx := errgroup.WithContext(req.Ctx)
	if v2Selected {
		g.Go(func() error {
			out, err := runV2(gctx, req.V2, v1Input, cfg.ForceCanaryError)
			v2Out, v2RunErr = out, err
			return nil
		})
	}
	if cfg.TSShadowEnabled && req.V2Prime != nil {
		g.Go(func() error {
			out, err := req.V2Prime.Enumerate(gctx, v1Input)
			if err == nil {
				tsOut, tsRan = out, true
			}
			return nil
		})
	}
	_ = g.Wait()

	if v2Selected {
		if v2RunErr != nil {
			primaryEngine = "v1"
			if cfg.PrimaryEnabled {
				result.FallbackReasonCode = FallbackV2Error
			} else {
				result.FallbackReasonCode = FallbackCanaryError
			}
		} else {
			v2Ran = true
			out := v2Out
			if out.Stats.CycleEnumerationTimedOut && cfg.PrimaryEnabled && cfg.FallbackOnTimeout {
				primaryEngine = "v1"
				result.FallbackReasonCode = FallbackV2TimeoutSafety
			} else if out.Stats.CycleEnumerationLimited && cfg.PrimaryEnabled && cfg.FallbackOnLimited {
				primaryEngine = "v1"
				result.FallbackReasonCode = FallbackV2LimitedSafety
			} else {
				primaryEngine = "v2"
				primaryProposals = out.Proposals
			}
		}
	}

	if cfg.ShadowEnabled && !v2Ran && !(cfg.PrimaryEnabled && latchWasActiveBeforeRun) {
		shadowOut, err := req.V2.Enumerate(req.Ctx, v1Input)
		if err == nil {
			diff := buildDiff(req.RunID, v1Out, shadowOut)
			result.ShadowDiff = &diff
			c.Diffs = append(c.Diffs, diff)
			if cfg.MaxShadowDiffs > 0 && len(c.Diffs) > cfg.MaxShadowDiffs {
				c.Diffs = c.Diffs[len(c.Diffs)-cfg.MaxShadowDiffs:]
			}
		}
	}

	if tsRan {
		var primaryForDiff EngineOutput
		if primaryEngine == "v2" {
			primaryForDiff = v2Out
		} else {
			primaryForDiff = v1Out
		}
		diff := buildDiff(req.RunID, primaryForDiff, tsOut)
		result.TSShadowDiff = &diff
		c.TSDiffs = append(c.TSDiffs, diff)
		if cfg.MaxTSShadowDiffs > 0 && len(c.TSDiffs) > cfg.MaxTSShadowDiffs {
			c.TSDiffs = c.TSDiffs[len(c.TSDiffs)-cfg.MaxTSShadowDiffs:]
		}
	}

	maxProposals := cfg.MaxProposals
	if req.MaxProposalsOverride > 0 {
		maxProposals = req.MaxProposalsOverride
	}
	if maxProposals > 0 && len(primaryProposals) > maxProposals {
		primaryProposals = primaryProposals[:maxProposals]
	}

	minted := make([]*Proposal, 0, len(primaryProposals))
	for _, cp := range primaryProposals {
		minted = append(minted, &Proposal{
			ProposalID:      req.RunID + "_" + CycleKey(cp.IntentIDs),
			RunID:           req.RunID,
			Tenant:          req.Tenant,
			IntentIDs:       append([]string(nil), cp.IntentIDs...),
			ConfidenceScore: cp.ConfidenceScore,
			Status:          ProposalOpen,
			Engine:          primaryEngine,
		})
	}
	result.Proposals = minted
	result.RemainingProposals = append(surviving, minted...)
	result.PrimaryEngine = primaryEngine

	if v2Selected {
		sample := Sample{
			Error:            result.FallbackReasonCode == FallbackV2Error || result.FallbackReasonCode == FallbackCanaryError,
			Timeout:          result.FallbackReasonCode == FallbackV2TimeoutSafety,
			Limited:          result.FallbackReasonCode == FallbackV2LimitedSafety,
			NonNegativeDelta: true,
		}
		if result.ShadowDiff != nil && result.ShadowDiff.DeltaScoreSumScaled < 0 {
			sample.NonNegativeDelta = false
		}
		c.Window.Append(sample)

		if cfg.PrimaryEnabled && cfg.RollbackReset {
			c.Latch.Reset()
			c.Window.Clear()
		} else if !c.Latch.Active {
			// Triggers are evaluated only once the window holds a full
			// capacity of samples.
			summary := c.Window.Summarize()
			if summary.Count >= c.Window.capacity {
				if reason, triggered := summary.Evaluate(cfg.Thresholds); triggered {
					c.Latch.Activate(reason, req.RunID, req.NowISO)
				}
			}
		}
	} else if cfg.PrimaryEnabled && cfg.RollbackReset {
		c.Latch.Reset()
		c.Window.Clear()
	}

	result.LatchActive = c.Latch.Active
	result.LatchTriggerReason = c.Latch.TriggerReasonCode
	return result, nil
}

// runV2 wraps the v2 enumerator call, synthesizing an error outcome
// when force_canary_error is set so tests can exercise the fallback paths
// deterministically (§8 scenario S6).
func runV2(ctx context.Context, v2 CycleEnumerator, in EngineInput, forceError bool) (EngineOutput, error) {
	if forceError {
		return EngineOutput{}, errForcedCanaryError
	}
	return v2.Enumerate(ctx, in)
}

var errForcedCanaryError = errors.New("forced canary error")

func expireAndFilter(existing []*Proposal, nowISO string, isInUse InUseChecker, replaceExisting bool) []*Proposal {
	kept := make([]*Proposal, 0, len(existing))
	for _, p := range existing {
		inUse := isInUse != nil && isInUse(p.ProposalID)
		expired := p.ExpiresAtISO != "" && nowISO != "" && p.ExpiresAtISO < nowISO
		if expired && !inUse {
			continue
		}
		if replaceExisting && !inUse {
			continue
		}
		kept = append(kept, p)
	}
	return kept
}

func buildDiff(runID string, primary, other EngineOutput) DiffRecord {
	primaryKeys := map[string]struct{}{}
	for _, p := range primary.Proposals {
		primaryKeys[CycleKey(p.IntentIDs)] = struct{}{}
	}
	var overlap []string
	for _, p := range other.Proposals {
		key := CycleKey(p.IntentIDs)
		if _, ok := primaryKeys[key]; ok {
			overlap = append(overlap, key)
		}
	}
	return DiffRecord{
		RunID:                runID,
		PrimaryCycleCount:    primary.Stats.CandidateCycles,
		ShadowCycleCount:     other.Stats.CandidateCycles,
		PrimaryProposalCount: len(primary.Proposals),
		ShadowProposalCount:  len(other.Proposals),
		OverlapCycleKeys:     overlap,
		DeltaScoreSumScaled:  DeltaScoreScaled(other.Proposals) - DeltaScoreScaled(primary.Proposals),
	}
}
