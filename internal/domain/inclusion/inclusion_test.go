package inclusion

import (
	"testing"

	"github.com/stretchr/testify/require"

	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

func newService(verify ReceiptVerifier, lookupSnapshot CustodySnapshotLookup, buildProof CustodyProofBuilder, lookupArtifacts PublicationArtifactsLookup) *Service {
	return NewService(clock.Fixed("2025-01-01T00:00:00Z"), ledger.NewStream("inclusion"), verify, lookupSnapshot, buildProof, lookupArtifacts)
}

func allowAll() (ReceiptVerifier, CustodySnapshotLookup, CustodyProofBuilder, PublicationArtifactsLookup) {
	verify := func(receiptID, signature string) bool { return signature == "valid" }
	lookupSnapshot := func(snapshotID, holdingID string) bool { return snapshotID == "snap1" && holdingID == "hold1" }
	buildProof := func(snapshotID, holdingID string) (string, bool) { return "proof:" + snapshotID + ":" + holdingID, true }
	lookupArtifacts := func(publicationID string) []string {
		return []string{"receipt:rcpt1", "custody_snapshot:snap1"}
	}
	return verify, lookupSnapshot, buildProof, lookupArtifacts
}

func TestRecordSucceedsAndChainsHashes(t *testing.T) {
	verify, lookupSnapshot, buildProof, lookupArtifacts := allowAll()
	svc := newService(verify, lookupSnapshot, buildProof, lookupArtifacts)

	first, err := svc.Record(RecordRequest{
		LinkageID: "l1", ReceiptID: "rcpt1", ReceiptSignature: "valid",
		SnapshotID: "snap1", HoldingID: "hold1", PublicationID: "pub1",
	})
	require.Nil(t, err)
	require.NotEmpty(t, first.LinkageHash)

	second, err := svc.Record(RecordRequest{
		LinkageID: "l2", ReceiptID: "rcpt1", ReceiptSignature: "valid",
		SnapshotID: "snap1", HoldingID: "hold1", PublicationID: "pub1",
	})
	require.Nil(t, err)
	require.NotEqual(t, first.LinkageHash, second.LinkageHash)
	require.True(t, svc.VerifyChain())
}

func TestRecordRejectsInvalidReceiptSignature(t *testing.T) {
	verify, lookupSnapshot, buildProof, lookupArtifacts := allowAll()
	svc := newService(verify, lookupSnapshot, buildProof, lookupArtifacts)

	_, err := svc.Record(RecordRequest{
		LinkageID: "l1", ReceiptID: "rcpt1", ReceiptSignature: "bogus",
		SnapshotID: "snap1", HoldingID: "hold1", PublicationID: "pub1",
	})
	require.NotNil(t, err)
	require.Equal(t, ReasonReceiptSignatureInvalid, err.Reason())
}

func TestRecordRejectsMissingCustodySnapshot(t *testing.T) {
	verify, _, buildProof, lookupArtifacts := allowAll()
	lookupSnapshot := func(snapshotID, holdingID string) bool { return false }
	svc := newService(verify, lookupSnapshot, buildProof, lookupArtifacts)

	_, err := svc.Record(RecordRequest{
		LinkageID: "l1", ReceiptID: "rcpt1", ReceiptSignature: "valid",
		SnapshotID: "snap1", HoldingID: "hold1", PublicationID: "pub1",
	})
	require.NotNil(t, err)
	require.Equal(t, ReasonCustodySnapshotNotFound, err.Reason())
}

func TestRecordRejectsFailedProof(t *testing.T) {
	verify, lookupSnapshot, _, lookupArtifacts := allowAll()
	buildProof := func(snapshotID, holdingID string) (string, bool) { return "", false }
	svc := newService(verify, lookupSnapshot, buildProof, lookupArtifacts)

	_, err := svc.Record(RecordRequest{
		LinkageID: "l1", ReceiptID: "rcpt1", ReceiptSignature: "valid",
		SnapshotID: "snap1", HoldingID: "hold1", PublicationID: "pub1",
	})
	require.NotNil(t, err)
	require.Equal(t, ReasonCustodyProofInvalid, err.Reason())
}

func TestRecordRejectsPublicationMissingArtifacts(t *testing.T) {
	verify, lookupSnapshot, buildProof, _ := allowAll()
	lookupArtifacts := func(publicationID string) []string { return []string{"receipt:rcpt1"} }
	svc := newService(verify, lookupSnapshot, buildProof, lookupArtifacts)

	_, err := svc.Record(RecordRequest{
		LinkageID: "l1", ReceiptID: "rcpt1", ReceiptSignature: "valid",
		SnapshotID: "snap1", HoldingID: "hold1", PublicationID: "pub1",
	})
	require.NotNil(t, err)
	require.Equal(t, ReasonPublicationArtifactsMissing, err.Reason())
}
