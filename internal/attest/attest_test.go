package attest

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignIsDeterministic(t *testing.T) {
	s := NewSigner("key-1", []byte("secret"))
	entries := []any{map[string]any{"a": 1}, map[string]any{"a": 2}}

	att1, err := s.Sign("", entries)
	require.NoError(t, err)
	att2, err := s.Sign("", entries)
	require.NoError(t, err)
	require.Equal(t, att1, att2)
}

func TestSignChainsAcrossPages(t *testing.T) {
	s := NewSigner("key-1", []byte("secret"))
	page1, err := s.Sign("", []any{map[string]any{"a": 1}})
	require.NoError(t, err)
	require.Empty(t, page1.PreviousChainHash)

	page2, err := s.Sign(page1.ChainHash, []any{map[string]any{"a": 2}})
	require.NoError(t, err)
	require.Equal(t, page1.ChainHash, page2.PreviousChainHash)
	require.NotEqual(t, page1.ChainHash, page2.ChainHash)
}

func TestBuildCheckpointHashIsFunctionOfInputs(t *testing.T) {
	s := NewSigner("key-1", []byte("secret"))
	att, _ := s.Sign("", []any{map[string]any{"a": 1}})

	q1 := map[string]any{"from": "2025-01-01", "to": "2025-02-01"}
	q2 := map[string]any{"to": "2025-02-01", "from": "2025-01-01"}

	cp1, err := BuildCheckpoint(att, "cursor-1", q1, "2025-01-05T00:00:00Z")
	require.NoError(t, err)
	cp2, err := BuildCheckpoint(att, "cursor-1", q2, "2025-01-05T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, cp1.CheckpointHash, cp2.CheckpointHash)
	require.Equal(t, cp1.QueryContextFingerprint, cp2.QueryContextFingerprint)

	cp3, err := BuildCheckpoint(att, "cursor-2", q1, "2025-01-05T00:00:00Z")
	require.NoError(t, err)
	require.NotEqual(t, cp1.CheckpointHash, cp3.CheckpointHash)
}
