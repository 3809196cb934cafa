package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllowRecognizedActorsRejectsMalformedActor(t *testing.T) {
	err := AllowRecognizedActors("delegation.create", Actor{Type: "robot", ID: "x"}, Auth{})
	require.NotNil(t, err)
	require.Equal(t, "FORBIDDEN", string(err.Code))
}

func TestAllowRecognizedActorsRejectsEmptyOperation(t *testing.T) {
	err := AllowRecognizedActors("", Actor{Type: ActorUser, ID: "u1"}, Auth{})
	require.NotNil(t, err)
	require.Equal(t, "CONSTRAINT_VIOLATION", string(err.Code))
}

func TestRequireActorType(t *testing.T) {
	require.Nil(t, RequireActorType(Actor{Type: ActorUser, ID: "u1"}, ActorUser))
	err := RequireActorType(Actor{Type: ActorPartner, ID: "p1"}, ActorUser)
	require.NotNil(t, err)
	require.Equal(t, "FORBIDDEN", string(err.Code))
}

func TestRequireOwnerMismatch(t *testing.T) {
	err := RequireOwner(Actor{Type: ActorPartner, ID: "p1"}, ActorPartner, "p2")
	require.NotNil(t, err)
	require.EqualValues(t, "liquidity_provider_actor_mismatch", err.Reason())
}

func TestGateDefaultsToAllowRecognizedActors(t *testing.T) {
	g := NewGate()
	require.Nil(t, g.Authorize("op", Actor{Type: ActorUser, ID: "u1"}, Auth{}))
}
