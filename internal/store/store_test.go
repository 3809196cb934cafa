package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/apperr"
	"marketcore/internal/attest"
	"marketcore/internal/clock"
	"marketcore/internal/config"
)

func newTestStore(t *testing.T) *Store {
	cfg, err := config.Load(func(string) string { return "" })
	require.NoError(t, err)
	return New(clock.Fixed("2025-01-01T00:00:00Z"), cfg, attest.NewSigner("key", []byte("secret")))
}

func TestLedgerCreatesOncePerKind(t *testing.T) {
	s := newTestStore(t)
	a := s.Ledger("signals")
	b := s.Ledger("signals")
	require.Same(t, a, b)
	c := s.Ledger("decisions")
	require.NotSame(t, a, c)
}

func TestWriteSerializesAndReturns(t *testing.T) {
	s := newTestStore(t)
	result, err := s.Write(func() (any, *apperr.Error) {
		return "ok", nil
	})
	require.Nil(t, err)
	require.Equal(t, "ok", result)
}

func TestNowISOFallsBackToAuthzOverride(t *testing.T) {
	cfg, _ := config.Load(func(k string) string {
		if k == "AUTHZ_NOW_ISO" {
			return "2030-01-01T00:00:00Z"
		}
		return ""
	})
	s := New(clock.Fixed("2020-01-01T00:00:00Z"), cfg, attest.NewSigner("key", []byte("s")))
	require.Equal(t, "caller-value", s.NowISO("caller-value"))
	require.Equal(t, "2030-01-01T00:00:00Z", s.NowISO(""))
}
