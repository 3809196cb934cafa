package export

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/apperr"
	"marketcore/internal/attest"
	"marketcore/internal/ledger"
)

func buildEntries(n int) []ledger.Entry {
	s := ledger.NewStream("sig")
	var out []ledger.Entry
	base := []string{
		"2025-01-01T00:00:01Z", "2025-01-01T00:00:02Z", "2025-01-01T00:00:03Z",
		"2025-01-01T00:00:04Z", "2025-01-01T00:00:05Z",
	}
	for i := 0; i < n; i++ {
		out = append(out, s.Append("t1", "signals", base[i%len(base)], map[string]any{"i": i}))
	}
	return out
}

func TestParseQueryRejectsUnknownKey(t *testing.T) {
	_, err := ParseQuery(map[string]any{"bogus": 1}, map[string]struct{}{})
	require.NotNil(t, err)
	require.Equal(t, "CONSTRAINT_VIOLATION", string(err.Code))
}

func TestParseQueryRejectsInvertedWindow(t *testing.T) {
	_, err := ParseQuery(map[string]any{"from_iso": "2025-02-01T00:00:00Z", "to_iso": "2025-01-01T00:00:00Z"}, nil)
	require.NotNil(t, err)
	require.EqualValues(t, apperr.ReasonWindowInverted, err.Reason())
}

func TestRunPaginatesWithoutOverlap(t *testing.T) {
	entries := buildEntries(5)
	signer := attest.NewSigner("key", []byte("secret"))
	checkpoints := NewCheckpointStore()

	seen := map[string]bool{}
	var cursor, attestationAfter, checkpointAfter string
	for page := 1; ; page++ {
		q, qerr := ParseQuery(map[string]any{
			"limit":             2,
			"now_iso":           "2025-01-05T00:00:00Z",
			"exported_at_iso":   "2025-01-05T00:00:00Z",
			"cursor_after":      cursor,
			"attestation_after": attestationAfter,
			"checkpoint_after":  checkpointAfter,
		}, nil)
		require.Nil(t, qerr)
		if cursor == "" {
			q.CursorAfter = ""
			q.AttestationAfter = ""
			q.CheckpointAfter = ""
		}

		result, err := Run(Request{
			Contract:    "signals.export",
			Tenant:      "t1",
			Query:       q,
			Signer:      signer,
			Checkpoints: checkpoints,
		}, entries, nil)
		require.Nil(t, err)
		require.Equal(t, 5, result.TotalFiltered)
		for _, e := range result.Entries {
			require.False(t, seen[e.EntryID], "entry %s seen twice", e.EntryID)
			seen[e.EntryID] = true
		}
		if !result.HasNext {
			break
		}
		cursor = result.NextCursor
		attestationAfter = result.Attestation.ChainHash
		checkpointAfter = result.Checkpoint.CheckpointHash
		require.Less(t, page, 10, "pagination did not terminate")
	}
	require.Len(t, seen, 5)
}

func TestRunRejectsStaleAttestationAfter(t *testing.T) {
	entries := buildEntries(5)
	signer := attest.NewSigner("key", []byte("secret"))
	checkpoints := NewCheckpointStore()

	q1, _ := ParseQuery(map[string]any{"limit": 2, "now_iso": "2025-01-05T00:00:00Z", "exported_at_iso": "2025-01-05T00:00:00Z"}, nil)
	page1, err := Run(Request{Contract: "signals.export", Tenant: "t1", Query: q1, Signer: signer, Checkpoints: checkpoints}, entries, nil)
	require.Nil(t, err)
	staleAttestation := page1.Attestation.ChainHash
	staleCheckpoint := page1.Checkpoint.CheckpointHash

	q2, _ := ParseQuery(map[string]any{"limit": 2, "now_iso": "2025-01-05T00:00:00Z", "exported_at_iso": "2025-01-05T00:00:00Z", "cursor_after": page1.NextCursor, "attestation_after": staleAttestation, "checkpoint_after": staleCheckpoint}, nil)
	page2, err := Run(Request{Contract: "signals.export", Tenant: "t1", Query: q2, Signer: signer, Checkpoints: checkpoints}, entries, nil)
	require.Nil(t, err)
	require.True(t, page2.HasNext)

	q3, _ := ParseQuery(map[string]any{"limit": 2, "now_iso": "2025-01-05T00:00:00Z", "exported_at_iso": "2025-01-05T00:00:00Z", "cursor_after": page2.NextCursor, "attestation_after": staleAttestation, "checkpoint_after": staleCheckpoint}, nil)
	_, err = Run(Request{Contract: "signals.export", Tenant: "t1", Query: q3, Signer: signer, Checkpoints: checkpoints}, entries, nil)
	require.NotNil(t, err)
	require.EqualValues(t, apperr.ReasonCheckpointAttestationMismatch, err.Reason())
}

func TestRunRejectsUnknownCursor(t *testing.T) {
	entries := buildEntries(3)
	signer := attest.NewSigner("key", []byte("secret"))
	checkpoints := NewCheckpointStore()
	q, _ := ParseQuery(map[string]any{"cursor_after": "bogus", "attestation_after": "x", "checkpoint_after": "y", "now_iso": "2025-01-05T00:00:00Z"}, nil)
	_, err := Run(Request{Contract: "signals.export", Tenant: "t1", Query: q, Signer: signer, Checkpoints: checkpoints}, entries, nil)
	require.NotNil(t, err)
	require.EqualValues(t, apperr.ReasonCursorNotFound, err.Reason())
}
