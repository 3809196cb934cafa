package policy

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func basePolicy() *Policy {
	return &Policy{
		Version:                    1,
		MaxSpreadBps:               500,
		MaxDailyValueUSD:           100000,
		MaxCounterpartyExposureUSD: 50000,
		MinPriceConfidenceBps:      9000,
		HighVolatilityMode:         ModeTighten,
	}
}

func baseEval() Evaluation {
	return Evaluation{
		PrecedenceAssertion:     CanonicalPrecedence,
		SafetyGatePassed:        true,
		TrustGatePassed:         true,
		CommercialGatePassed:    true,
		ActionType:              ActionQuote,
		SpreadBps:               100,
		QuoteValueUSD:           100,
		DailyValueUSD:           0,
		CounterpartyActorID:     "cp1",
		CounterpartyExposureUSD: 0,
		PriceConfidenceBps:      9500,
		AssetLiquidityTier:      TierLow,
	}
}

// S2: precedence mismatch rejects the whole call.
func TestS2PrecedenceMismatch(t *testing.T) {
	e := baseEval()
	e.PrecedenceAssertion = "trust>safety"
	_, err := Evaluate(basePolicy(), e)
	require.NotNil(t, err)
	require.Equal(t, "CONSTRAINT_VIOLATION", string(err.Code))
	require.EqualValues(t, ReasonPrecedenceViolation, err.Reason())
}

// S3: high-volatility tighten halves the effective spread cap.
func TestS3HighVolatilityTighten(t *testing.T) {
	p := basePolicy()
	p.MaxSpreadBps = 500
	p.HighVolatilityMode = ModeTighten
	e := baseEval()
	e.SpreadBps = 300
	e.HighVolatility = true

	result, err := Evaluate(p, e)
	require.Nil(t, err)
	require.Equal(t, 250, result.EffectiveMaxSpreadBps)
	require.Contains(t, result.ReasonCodes, ReasonSpreadExceeded)
	require.Equal(t, VerdictDeny, result.Verdict)
}

func TestAllowVerdictWhenAllPredicatesPass(t *testing.T) {
	result, err := Evaluate(basePolicy(), baseEval())
	require.Nil(t, err)
	require.Equal(t, VerdictAllow, result.Verdict)
	require.Empty(t, result.ReasonCodes)
}

func TestHighVolatilityPause(t *testing.T) {
	p := basePolicy()
	p.HighVolatilityMode = ModePause
	e := baseEval()
	e.HighVolatility = true
	result, err := Evaluate(p, e)
	require.Nil(t, err)
	require.Contains(t, result.ReasonCodes, ReasonHighVolatilityPause)
	require.Equal(t, VerdictDeny, result.Verdict)
}

func TestBlockedAssetTier(t *testing.T) {
	p := basePolicy()
	p.BlockedAssetLiquidityTiers = []AssetLiquidityTier{TierHigh, TierCritical}
	e := baseEval()
	e.AssetLiquidityTier = TierHigh
	result, err := Evaluate(p, e)
	require.Nil(t, err)
	require.Contains(t, result.ReasonCodes, ReasonExposureExceeded)
}

func TestDailyExposureCapExceeded(t *testing.T) {
	p := basePolicy()
	p.MaxDailyValueUSD = 100
	e := baseEval()
	e.DailyValueUSD = 50
	e.QuoteValueUSD = 60
	result, err := Evaluate(p, e)
	require.Nil(t, err)
	require.Equal(t, 110.0, result.ProjectedDailyUSD)
	require.Contains(t, result.ReasonCodes, ReasonExposureExceeded)
}

func TestQuoteOnlyRestrictsNonQuoteActions(t *testing.T) {
	p := basePolicy()
	p.HighVolatilityMode = ModeQuoteOnly
	e := baseEval()
	e.HighVolatility = true
	e.ActionType = ActionExecute
	result, err := Evaluate(p, e)
	require.Nil(t, err)
	require.Contains(t, result.ReasonCodes, ReasonPrecedenceViolation)
	require.Equal(t, VerdictDeny, result.Verdict)
}

func TestFailedGateRejectsCall(t *testing.T) {
	e := baseEval()
	e.SafetyGatePassed = false
	_, err := Evaluate(basePolicy(), e)
	require.NotNil(t, err)
}

func TestDeterministicAcrossRepeatedCalls(t *testing.T) {
	p := basePolicy()
	e := baseEval()
	e.SpreadBps = 9999
	r1, _ := Evaluate(p, e)
	r2, _ := Evaluate(p, e)
	require.ElementsMatch(t, r1.ReasonCodes, r2.ReasonCodes)
	require.Equal(t, r1.Verdict, r2.Verdict)
}

func TestAccumulatorsOnlyAppliedOnAllow(t *testing.T) {
	acc := NewAccumulators()
	p := basePolicy()
	e := baseEval()
	result, err := Evaluate(p, e)
	require.Nil(t, err)
	require.Equal(t, VerdictAllow, result.Verdict)
	acc.Apply("2025-01-01", e.CounterpartyActorID, result)
	require.Equal(t, 100.0, acc.Daily["2025-01-01"])
	require.Equal(t, 100.0, acc.Counterparty["cp1"])
}
