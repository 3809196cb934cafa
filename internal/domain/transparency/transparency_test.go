package transparency

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

func newService() *Service {
	return NewService(clock.Fixed("2025-01-01T00:00:00Z"), ledger.NewStream("transparency"))
}

func TestFirstPublicationRequiresEmptyPreviousRootHash(t *testing.T) {
	svc := newService()
	p, err := svc.Record(RecordRequest{
		PublicationID: "pub1", Partner: "partnerA",
		ArtifactRefs: []string{"receipt:r1"}, RootHash: "root1",
	})
	require.Nil(t, err)
	require.Equal(t, "root1", p.RootHash)
	require.NotEmpty(t, p.ChainHash)
}

func TestChainContinuityEnforced(t *testing.T) {
	svc := newService()
	_, err := svc.Record(RecordRequest{PublicationID: "pub1", Partner: "partnerA", RootHash: "root1"})
	require.Nil(t, err)

	_, err = svc.Record(RecordRequest{
		PublicationID: "pub2", Partner: "partnerA", RootHash: "root2", PreviousRootHash: "wrong",
	})
	require.NotNil(t, err)
	require.Equal(t, ReasonChainDiscontinuity, err.Reason())

	ok, err := svc.Record(RecordRequest{
		PublicationID: "pub2", Partner: "partnerA", RootHash: "root2", PreviousRootHash: "root1",
	})
	require.Nil(t, err)
	require.Equal(t, "root2", ok.RootHash)
}

func TestChainHashDeterministicOnSameInputs(t *testing.T) {
	svc1 := newService()
	p1, err := svc1.Record(RecordRequest{PublicationID: "pub1", Partner: "partnerA", RootHash: "root1"})
	require.Nil(t, err)

	svc2 := newService()
	p2, err := svc2.Record(RecordRequest{PublicationID: "pub1", Partner: "partnerA", RootHash: "root1"})
	require.Nil(t, err)

	require.Equal(t, p1.ChainHash, p2.ChainHash)
}

func TestPartnersHaveIndependentChains(t *testing.T) {
	svc := newService()
	_, err := svc.Record(RecordRequest{PublicationID: "pub1", Partner: "partnerA", RootHash: "root1"})
	require.Nil(t, err)

	_, err = svc.Record(RecordRequest{PublicationID: "pub2", Partner: "partnerB", RootHash: "rootB1"})
	require.Nil(t, err)
}

func TestArtifactRefsLookupByPublicationID(t *testing.T) {
	svc := newService()
	_, err := svc.Record(RecordRequest{
		PublicationID: "pub1", Partner: "partnerA",
		ArtifactRefs: []string{"receipt:r1", "custody_snapshot:s1"}, RootHash: "root1",
	})
	require.Nil(t, err)

	refs := svc.ArtifactRefs("pub1")
	require.ElementsMatch(t, []string{"receipt:r1", "custody_snapshot:s1"}, refs)
	require.Nil(t, svc.ArtifactRefs("missing"))
}
