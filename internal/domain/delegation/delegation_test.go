package delegation

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/apperr"
	"marketcore/internal/authz"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

func newService() *Service {
	return NewService(clock.Fixed("2025-01-01T00:00:00Z"), ledger.NewStream("delegation"))
}

// S1: delegation create + idempotent-replay at the domain layer (the
// dispatch-level idempotency wrapping is exercised separately in
// internal/dispatch; this test covers the service's own same-id/
// same-parameters tolerance).
func TestS1CreateThenReplayedCreateReturnsSameRecord(t *testing.T) {
	s := newService()
	actor := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	req := CreateRequest{
		Actor:          actor,
		DelegationID:   "del_1",
		PrincipalAgent: Principal{Type: "agent", ID: "a1"},
		Scopes:         []string{"read"},
		Policy:         map[string]any{},
		ExpiresAtISO:   "2099-01-01T00:00:00Z",
		NowISO:         "2025-01-01T00:00:00Z",
	}

	d1, err := s.Create(req)
	require.Nil(t, err)
	require.Equal(t, "del_1", d1.DelegationID)

	d2, err := s.Create(req)
	require.Nil(t, err)
	require.Equal(t, d1, d2)
}

func TestCreateRejectsNonUserActor(t *testing.T) {
	s := newService()
	req := CreateRequest{
		Actor:        authz.Actor{Type: authz.ActorPartner, ID: "p1"},
		DelegationID: "del_1",
		ExpiresAtISO: "2099-01-01T00:00:00Z",
	}
	_, err := s.Create(req)
	require.NotNil(t, err)
	require.Equal(t, apperr.CodeForbidden, err.Code)
}

func TestCreateConflictsOnDifferentParametersSameID(t *testing.T) {
	s := newService()
	actor := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	base := CreateRequest{Actor: actor, DelegationID: "del_1", ExpiresAtISO: "2099-01-01T00:00:00Z", Scopes: []string{"read"}}
	_, err := s.Create(base)
	require.Nil(t, err)

	changed := base
	changed.Scopes = []string{"write"}
	_, err = s.Create(changed)
	require.NotNil(t, err)
	require.EqualValues(t, ReasonDelegationParameterConflict, err.Reason())
}

func TestGetRequiresOwningUser(t *testing.T) {
	s := newService()
	owner := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	_, err := s.Create(CreateRequest{Actor: owner, DelegationID: "del_1", ExpiresAtISO: "2099-01-01T00:00:00Z"})
	require.Nil(t, err)

	_, err = s.Get(authz.Actor{Type: authz.ActorUser, ID: "u2"}, "del_1")
	require.NotNil(t, err)
}

func TestRevokeIsIdempotentAndNeverChangesRevokedAt(t *testing.T) {
	s := newService()
	owner := authz.Actor{Type: authz.ActorUser, ID: "u1"}
	_, err := s.Create(CreateRequest{Actor: owner, DelegationID: "del_1", ExpiresAtISO: "2099-01-01T00:00:00Z"})
	require.Nil(t, err)

	first, err := s.Revoke(owner, "del_1", "2025-06-01T00:00:00Z")
	require.Nil(t, err)
	require.Equal(t, "2025-06-01T00:00:00Z", first.RevokedAtISO)

	second, err := s.Revoke(owner, "del_1", "2025-07-01T00:00:00Z")
	require.Nil(t, err)
	require.Equal(t, "2025-06-01T00:00:00Z", second.RevokedAtISO)
}
