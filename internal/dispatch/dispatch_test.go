package dispatch

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/canon"
	"marketcore/internal/idempotency"
)

func newOp(id string, handler Handler) Operation {
	return Operation{
		ID:      id,
		Gate:    authz.NewGate(),
		Idem:    idempotency.NewRegistry(),
		Handler: handler,
	}
}

func TestRunExecutesHandlerOnceAndReplays(t *testing.T) {
	calls := 0
	op := newOp("delegation.create", func() (Result, *apperr.Error) {
		calls++
		return Result{OK: true, Body: map[string]any{"delegation_id": "del_1"}}, nil
	})
	payloadHash, hashErr := canon.HashHex(op.ID)
	require.NoError(t, hashErr)
	op.PayloadHash = payloadHash
	env := Envelope{
		Actor:          authz.Actor{Type: authz.ActorUser, ID: "u1"},
		IdempotencyKey: "k1",
		CorrelationID:  "corr_1",
	}

	first := Run(env, op)
	require.Nil(t, first.Error)
	require.True(t, first.OK)
	require.False(t, first.Replayed)

	second := Run(env, op)
	require.Nil(t, second.Error)
	require.True(t, second.Replayed)
	require.Equal(t, 1, calls)
}

func TestRunRejectsInvalidActor(t *testing.T) {
	op := newOp("delegation.create", func() (Result, *apperr.Error) {
		t.Fatal("handler must not run when authorization fails")
		return Result{}, nil
	})
	env := Envelope{Actor: authz.Actor{}, IdempotencyKey: "k1"}
	resp := Run(env, op)
	require.NotNil(t, resp.Error)
	require.Equal(t, apperr.CodeForbidden, resp.Error.Code)
}

func TestRunAppliesGuard(t *testing.T) {
	op := newOp("delegation.create", func() (Result, *apperr.Error) {
		return Result{OK: true}, nil
	})
	op.Guard = func(env Envelope) *apperr.Error {
		return authz.RequireActorType(env.Actor, authz.ActorUser)
	}
	env := Envelope{Actor: authz.Actor{Type: authz.ActorPartner, ID: "p1"}, IdempotencyKey: "k1"}
	resp := Run(env, op)
	require.NotNil(t, resp.Error)
	require.EqualValues(t, apperr.ReasonActorShapeMismatch, resp.Error.Reason())
}

func TestRunDifferentPayloadSameKeyMismatches(t *testing.T) {
	reg := idempotency.NewRegistry()
	op1 := newOp("x.op", func() (Result, *apperr.Error) { return Result{OK: true}, nil })
	op1.Idem = reg
	op1.PayloadHash = "hash-a"
	env := Envelope{Actor: authz.Actor{Type: authz.ActorUser, ID: "u1"}, IdempotencyKey: "k1"}
	Run(env, op1)

	op2 := op1
	op2.PayloadHash = "hash-b"
	resp := Run(env, op2)
	require.NotNil(t, resp.Error)
	require.Equal(t, apperr.CodeIdempotencyKeyReuseMismatch, resp.Error.Code)
}

func TestRunReadSkipsIdempotency(t *testing.T) {
	calls := 0
	op := newOp("x.get", func() (Result, *apperr.Error) {
		calls++
		return Result{OK: true, Body: "v"}, nil
	})
	env := Envelope{Actor: authz.Actor{Type: authz.ActorUser, ID: "u1"}}
	RunRead(env, op)
	RunRead(env, op)
	require.Equal(t, 2, calls)
}
