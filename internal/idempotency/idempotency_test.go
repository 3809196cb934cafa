package idempotency

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/canon"
)

func TestRunStoresAndReplays(t *testing.T) {
	reg := NewRegistry()
	actor := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	scope := ScopeKey(actor, "delegation.create", "", "k1")
	payloadHash, err := canon.HashHex(map[string]any{"delegation_id": "del_1"})
	require.NoError(t, err)

	calls := 0
	handler := func() (any, *apperr.Error) {
		calls++
		return map[string]any{"delegation_id": "del_1"}, nil
	}

	out, appErr := reg.Run(scope, payloadHash, handler)
	require.Nil(t, appErr)
	require.False(t, out.Replayed)
	require.Equal(t, 1, calls)

	out2, appErr := reg.Run(scope, payloadHash, handler)
	require.Nil(t, appErr)
	require.True(t, out2.Replayed)
	require.Equal(t, 1, calls, "handler must not run again on replay")

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out2.Result, &decoded))
	require.Equal(t, "del_1", decoded["delegation_id"])
}

func TestRunRejectsMismatchedPayload(t *testing.T) {
	reg := NewRegistry()
	actor := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	scope := ScopeKey(actor, "delegation.create", "", "k1")
	hash1, _ := canon.HashHex(map[string]any{"a": 1})
	hash2, _ := canon.HashHex(map[string]any{"a": 2})

	_, appErr := reg.Run(scope, hash1, func() (any, *apperr.Error) {
		return map[string]any{"a": 1}, nil
	})
	require.Nil(t, appErr)

	calls := 0
	_, appErr = reg.Run(scope, hash2, func() (any, *apperr.Error) {
		calls++
		return nil, nil
	})
	require.NotNil(t, appErr)
	require.Equal(t, "IDEMPOTENCY_KEY_REUSE_PAYLOAD_MISMATCH", string(appErr.Code))
	require.Equal(t, 0, calls, "handler must not run when payload mismatches")
}

func TestRunDoesNotStoreOnFailure(t *testing.T) {
	reg := NewRegistry()
	actor := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	scope := ScopeKey(actor, "delegation.create", "", "k1")
	hash, _ := canon.HashHex(map[string]any{"a": 1})

	_, appErr := reg.Run(scope, hash, func() (any, *apperr.Error) {
		return nil, apperr.ConstraintViolation("bad", "nope", nil)
	})
	require.NotNil(t, appErr)

	_, ok := reg.Peek(scope)
	require.False(t, ok, "failed handler must not leave a record")
}

func TestScopeKeySeparatesSubscopes(t *testing.T) {
	actor := authz.Actor{Type: authz.ActorPartner, ID: "p1"}
	a := ScopeKey(actor, "liquidityPolicy.upsert", "provider_1", "k1")
	b := ScopeKey(actor, "liquidityPolicy.upsert", "provider_2", "k1")
	require.NotEqual(t, a, b)
}

func TestReplayResultIsIndependentCopy(t *testing.T) {
	reg := NewRegistry()
	actor := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	scope := ScopeKey(actor, "delegation.create", "", "k1")
	hash, _ := canon.HashHex(map[string]any{"a": 1})

	out, _ := reg.Run(scope, hash, func() (any, *apperr.Error) {
		return map[string]any{"a": 1}, nil
	})
	out.Result[0] = 'X'

	out2, _ := reg.Run(scope, hash, func() (any, *apperr.Error) {
		return nil, nil
	})
	require.NotEqual(t, byte('X'), out2.Result[0])
}
