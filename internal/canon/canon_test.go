package canon

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalSortsKeysAtEveryLevel(t *testing.T) {
	a := map[string]any{"b": 1, "a": map[string]any{"z": 1, "y": 2}}
	b := map[string]any{"a": map[string]any{"y": 2, "z": 1}, "b": 1}

	encodedA, err := Marshal(a)
	require.NoError(t, err)
	encodedB, err := Marshal(b)
	require.NoError(t, err)
	require.Equal(t, string(encodedA), string(encodedB))
	require.Equal(t, `{"a":{"y":2,"z":1},"b":1}`, string(encodedA))
}

func TestMarshalNumberForms(t *testing.T) {
	encoded, err := Marshal(map[string]any{"n": 10000, "f": 1.50})
	require.NoError(t, err)
	require.Equal(t, `{"f":1.5,"n":10000}`, string(encoded))
}

func TestHashHexIsDeterministic(t *testing.T) {
	v1 := map[string]any{"x": 1, "y": "hi"}
	v2 := map[string]any{"y": "hi", "x": 1}

	h1, err := HashHex(v1)
	require.NoError(t, err)
	h2, err := HashHex(v2)
	require.NoError(t, err)
	require.Equal(t, h1, h2)
	require.Len(t, h1, 64)
}

func TestHashHexDiffersOnValueChange(t *testing.T) {
	h1, err := HashHex(map[string]any{"x": 1})
	require.NoError(t, err)
	h2, err := HashHex(map[string]any{"x": 2})
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestChainHexFoldsInOrder(t *testing.T) {
	a := ChainHex([]byte("a"), []byte("b"))
	b := ChainHex([]byte("ab"))
	require.Equal(t, a, b)
	c := ChainHex([]byte("b"), []byte("a"))
	require.NotEqual(t, a, c)
}
