// Package rollout implements the marketplace matching shadow/canary/primary
// rollout controller (§4.10) — the hardest single piece of state in the
// core. It orchestrates three implementations of an external
// cycle-enumeration matcher (primary v1, candidate v2, and a read-only
// shadow v2') behind deterministic canary bucketing and a sticky rollback
// latch.
package rollout

import "context"

// Intent is the minimal shape the matcher contract needs from a user or
// edge intent: enough to compute a cycle key and a confidence score. The
// core treats intent fields beyond these as opaque pass-through payload.
type Intent struct {
	IntentID   string
	AssetID    string
	ValueUSD   float64
}

// CycleProposal is one candidate cycle produced by an engine run, ordered
// by the engine's own internal ranking.
type CycleProposal struct {
	ProposalID       string
	IntentIDs        []string // cycle order, as produced by the engine
	ConfidenceScore  float64
}

// CycleKey is the rotation-invariant canonicalization of an ordered intent
// id list (§4.10, GLOSSARY): rotate the cycle to start at its
// lexicographically smallest element, preserving rotation direction.
func CycleKey(intentIDs []string) string {
	if len(intentIDs) == 0 {
		return ""
	}
	minIdx := 0
	for i, id := range intentIDs {
		if id < intentIDs[minIdx] {
			minIdx = i
		}
	}
	rotated := make([]string, len(intentIDs))
	for i := range intentIDs {
		rotated[i] = intentIDs[(minIdx+i)%len(intentIDs)]
	}
	key := ""
	for i, id := range rotated {
		if i > 0 {
			key += ">"
		}
		key += id
	}
	return key
}

// EngineInput is the external cycle-enumeration matcher's contract input
// (§4.10 block quote). The algorithm itself is an external collaborator;
// this core only defines and honors its contract.
type EngineInput struct {
	ActiveIntents       []Intent
	AssetValuesUSD      map[string]float64
	ActiveEdgeIntents    []Intent
	NowISO              string
	MinCycleLength       int
	MaxCycleLength       int
	MaxEnumeratedCycles  int
	TimeoutMS            int
	IncludeDiagnostics   bool
}

// EngineStats reports the enumeration run's shape (§4.10 block quote).
type EngineStats struct {
	IntentsActive               int
	Edges                       int
	CandidateCycles             int
	CandidateProposals          int
	SelectedProposals           int
	CycleEnumerationLimited     bool
	CycleEnumerationTimedOut    bool
}

// EngineOutput is the external matcher's contract output.
type EngineOutput struct {
	Proposals []CycleProposal
	Stats     EngineStats
}

// CycleEnumerator is the external collaborator contract: determinism for
// identical inputs is required (§4.10). Exceptions propagate as a returned
// error. The rollout controller turns a v2 error into a fallback to v1 and
// drops the diff on a shadow or TS-shadow error; a v1 error fails the
// whole call with a CONSTRAINT_VIOLATION (v1_engine_error).
type CycleEnumerator interface {
	Enumerate(ctx context.Context, in EngineInput) (EngineOutput, error)
}

// EnumeratorFunc adapts a plain function into a CycleEnumerator.
type EnumeratorFunc func(ctx context.Context, in EngineInput) (EngineOutput, error)

// Enumerate implements CycleEnumerator.
func (f EnumeratorFunc) Enumerate(ctx context.Context, in EngineInput) (EngineOutput, error) {
	return f(ctx, in)
}

// DeltaScoreScaled sums round(confidence_score * 10000) across proposals,
// the scaled delta metric used by shadow/TS-shadow diffs (§4.10).
func DeltaScoreScaled(proposals []CycleProposal) int64 {
	var sum int64
	for _, p := range proposals {
		sum += int64(roundHalfAwayFromZero(p.ConfidenceScore * 10000))
	}
	return sum
}

func roundHalfAwayFromZero(v float64) float64 {
	if v < 0 {
		return -roundHalfAwayFromZero(-v)
	}
	return float64(int64(v + 0.5))
}
