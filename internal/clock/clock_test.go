package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStrictRejectsLoose(t *testing.T) {
	_, err := ParseStrict("2025-01-01")
	require.Error(t, err)

	ts, err := ParseStrict("2025-01-01T00:00:00Z")
	require.NoError(t, err)
	require.Equal(t, 2025, ts.Year())
}

func TestCountersMonotoneAndScopedByPrefix(t *testing.T) {
	c := NewCounters()
	require.Equal(t, "del_0000000001", c.Next("del"))
	require.Equal(t, "del_0000000002", c.Next("del"))
	require.Equal(t, "ord_0000000001", c.Next("ord"))
	require.EqualValues(t, 2, c.Peek("del"))
}

func TestDeterministicIDStable(t *testing.T) {
	a := DeterministicID("eval", "policy:1|spread:10")
	b := DeterministicID("eval", "policy:1|spread:10")
	c := DeterministicID("eval", "policy:1|spread:11")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, len("eval_")+16)
}
