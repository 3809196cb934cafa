// Package policy implements the liquidity-autonomy policy evaluator
// (§4.9): a deterministic, side-effect-free verdict over a persisted
// policy version and an evaluation payload. Follows consensus/potso's
// reward/penalty calculators, which are likewise pure functions from
// (stored parameters, observed inputs) to a deterministic verdict plus a
// stable set of contributing reason codes.
package policy

import (
	"math"

	"marketcore/internal/apperr"
)

// CanonicalPrecedence is the only accepted precedence_assertion string
// (§3): every policy/evaluation payload must echo it verbatim.
const CanonicalPrecedence = "safety>trust>lp_autonomy_policy>commercial>preference"

// HighVolatilityMode enumerates §3's high_volatility_mode values.
type HighVolatilityMode string

const (
	ModeTighten   HighVolatilityMode = "tighten"
	ModePause     HighVolatilityMode = "pause"
	ModeQuoteOnly HighVolatilityMode = "quote_only"
)

// ActionType enumerates §4.9's action_type values.
type ActionType string

const (
	ActionQuote   ActionType = "quote"
	ActionAccept  ActionType = "accept"
	ActionExecute ActionType = "execute"
)

// AssetLiquidityTier enumerates §3's blocked_asset_liquidity_tiers universe.
type AssetLiquidityTier string

const (
	TierLow      AssetLiquidityTier = "low"
	TierMedium   AssetLiquidityTier = "medium"
	TierHigh     AssetLiquidityTier = "high"
	TierCritical AssetLiquidityTier = "critical"
)

// Policy is the versioned, persisted per-provider policy record (§3).
type Policy struct {
	Version                  uint64
	MaxSpreadBps             int
	MaxDailyValueUSD         float64
	MaxCounterpartyExposureUSD float64
	MinPriceConfidenceBps    int
	BlockedAssetLiquidityTiers []AssetLiquidityTier
	HighVolatilityMode       HighVolatilityMode
}

// Clone deep-copies p so a stored policy is never aliased with a caller's
// mutable copy.
func (p *Policy) Clone() *Policy {
	if p == nil {
		return nil
	}
	clone := *p
	if len(p.BlockedAssetLiquidityTiers) > 0 {
		clone.BlockedAssetLiquidityTiers = make([]AssetLiquidityTier, len(p.BlockedAssetLiquidityTiers))
		copy(clone.BlockedAssetLiquidityTiers, p.BlockedAssetLiquidityTiers)
	}
	return &clone
}

func (p *Policy) isBlocked(tier AssetLiquidityTier) bool {
	for _, t := range p.BlockedAssetLiquidityTiers {
		if t == tier {
			return true
		}
	}
	return false
}

// Evaluation is the input payload for one evaluation call (§4.9).
type Evaluation struct {
	PrecedenceAssertion      string
	SafetyGatePassed         bool
	TrustGatePassed          bool
	CommercialGatePassed     bool
	ActionType               ActionType
	SpreadBps                int
	QuoteValueUSD            float64
	DailyValueUSD            float64
	CounterpartyActorID      string
	CounterpartyExposureUSD  float64
	PriceConfidenceBps       int
	AssetLiquidityTier       AssetLiquidityTier
	HighVolatility           bool
}

// Verdict is either "allow" or "deny".
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictDeny  Verdict = "deny"
)

// Reason codes from §4.9's fixed set.
const (
	ReasonPrecedenceViolation  apperr.Reason = "liquidity_policy_precedence_violation"
	ReasonHighVolatilityPause  apperr.Reason = "liquidity_policy_high_volatility_pause"
	ReasonSpreadExceeded       apperr.Reason = "liquidity_policy_spread_exceeded"
	ReasonPriceConfidenceLow   apperr.Reason = "liquidity_policy_price_confidence_low"
	ReasonExposureExceeded     apperr.Reason = "liquidity_policy_exposure_exceeded"
)

// Result is the deterministic output of Evaluate (§8 invariant 6).
type Result struct {
	Verdict               Verdict
	ReasonCodes           []apperr.Reason
	EffectiveMaxSpreadBps int
	ProjectedDailyUSD     float64
	ProjectedCounterpartyUSD float64
}

// Evaluate runs the full §4.9 algorithm. A precedence mismatch or failed
// gate is reported as a CONSTRAINT_VIOLATION *apperr.Error (the "whole
// call is rejected" case in steps 1-2); every other failed predicate
// contributes a reason code to a deny verdict instead of aborting the
// call, so every applicable check still runs (§8 invariant 6: an allow
// verdict implies every predicate passed).
func Evaluate(p *Policy, e Evaluation) (Result, *apperr.Error) {
	if e.PrecedenceAssertion != CanonicalPrecedence {
		return Result{}, apperr.ConstraintViolation(ReasonPrecedenceViolation, "precedence_assertion must equal the canonical precedence string", map[string]any{
			"expected_precedence_assertion": CanonicalPrecedence,
		})
	}
	if !e.SafetyGatePassed || !e.TrustGatePassed || !e.CommercialGatePassed {
		return Result{}, apperr.ConstraintViolation(ReasonPrecedenceViolation, "safety, trust, and commercial gates must all have passed upstream of this evaluation", nil)
	}

	var reasons []apperr.Reason
	add := func(r apperr.Reason) {
		for _, existing := range reasons {
			if existing == r {
				return
			}
		}
		reasons = append(reasons, r)
	}

	if e.HighVolatility && p.HighVolatilityMode == ModePause {
		add(ReasonHighVolatilityPause)
	}

	effectiveMaxSpread := p.MaxSpreadBps
	if e.HighVolatility && p.HighVolatilityMode == ModeTighten {
		effectiveMaxSpread = maxInt(0, p.MaxSpreadBps/2)
	}
	if e.SpreadBps > effectiveMaxSpread {
		add(ReasonSpreadExceeded)
	}

	if e.PriceConfidenceBps < p.MinPriceConfidenceBps {
		add(ReasonPriceConfidenceLow)
	}

	if p.isBlocked(e.AssetLiquidityTier) {
		add(ReasonExposureExceeded)
	}

	projectedDaily := round2(e.DailyValueUSD + e.QuoteValueUSD)
	projectedCounterparty := round2(e.CounterpartyExposureUSD + e.QuoteValueUSD)
	if projectedDaily > p.MaxDailyValueUSD || projectedCounterparty > p.MaxCounterpartyExposureUSD {
		add(ReasonExposureExceeded)
	}

	if e.HighVolatility && p.HighVolatilityMode == ModeQuoteOnly && e.ActionType != ActionQuote {
		add(ReasonPrecedenceViolation)
	}

	verdict := VerdictAllow
	if len(reasons) > 0 {
		verdict = VerdictDeny
	}

	return Result{
		Verdict:                  verdict,
		ReasonCodes:              preserveInsertionOrder(reasons),
		EffectiveMaxSpreadBps:    effectiveMaxSpread,
		ProjectedDailyUSD:        projectedDaily,
		ProjectedCounterpartyUSD: projectedCounterparty,
	}, nil
}

// preserveInsertionOrder returns a defensive copy; §4.9 step 9 specifies
// reason-code ordering preserves insertion order from the evaluator (not
// lexicographic), with duplicates already suppressed by add() above.
func preserveInsertionOrder(reasons []apperr.Reason) []apperr.Reason {
	out := make([]apperr.Reason, len(reasons))
	copy(out, reasons)
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Accumulators track the per-provider {day -> projected_daily} and
// {counterparty -> projected_counterparty} running totals updated on an
// allow verdict (§4.9 step 9).
type Accumulators struct {
	Daily         map[string]float64
	Counterparty  map[string]float64
}

// NewAccumulators builds an empty Accumulators.
func NewAccumulators() *Accumulators {
	return &Accumulators{Daily: map[string]float64{}, Counterparty: map[string]float64{}}
}

// Apply records an allow verdict's projected totals for the given day
// bucket and counterparty. Deny verdicts must not call Apply.
func (a *Accumulators) Apply(dayBucket, counterpartyActorID string, result Result) {
	a.Daily[dayBucket] = result.ProjectedDailyUSD
	a.Counterparty[counterpartyActorID] = result.ProjectedCounterpartyUSD
}
