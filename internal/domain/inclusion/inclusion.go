// Package inclusion implements inclusion-proof linkage recording (§4.11):
// binding a signed receipt to a custody snapshot/holding via a verified
// custody inclusion proof, and to its transparency-log publication via
// artifact references, chaining each new linkage to the previous one.
// Follows native/escrow's receipt/event chain.
package inclusion

import (
	"marketcore/internal/apperr"
	"marketcore/internal/canon"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypeLinkageRecorded = "inclusionProof.recorded"
)

// ReceiptVerifier verifies a cross-adapter receipt's signature. The
// concrete signature scheme is an external collaborator (§1 excludes
// cryptographic primitives beyond SHA-256/HMAC from this core).
type ReceiptVerifier func(receiptID, signature string) bool

// CustodySnapshotLookup resolves whether a custody snapshot/holding pair
// exists, the precondition §4.11 calls "existence of custody snapshot and
// holding".
type CustodySnapshotLookup func(snapshotID, holdingID string) bool

// CustodyProofBuilder builds and verifies the custody inclusion proof
// itself; concrete Merkle/accumulator mechanics live outside this core.
type CustodyProofBuilder func(snapshotID, holdingID string) (proof string, verified bool)

// PublicationArtifactsLookup resolves the artifact_refs recorded for a
// transparency publication, so Record can confirm it contains both
// "receipt:<id>" and "custody_snapshot:<id>" (§4.11).
type PublicationArtifactsLookup func(publicationID string) []string

// Linkage is one recorded inclusion-proof linkage (§4.11, §8 invariant 9).
type Linkage struct {
	LinkageID     string
	ReceiptID     string
	SnapshotID    string
	HoldingID     string
	PublicationID string
	Proof         string
	LinkageHash   string
	RecordedAtISO string
}

// Service records inclusion-proof linkages, chaining each new linkage_hash
// to the previous one (§8 invariant 9: "linkage_hash_n is a function of
// linkage_hash_{n-1} and the new linkage fields; removing or reordering
// any entry breaks the chain").
type Service struct {
	Clock    clock.Source
	Ledger   *ledger.Stream
	VerifyReceipt ReceiptVerifier
	LookupSnapshot CustodySnapshotLookup
	BuildProof    CustodyProofBuilder
	LookupPublicationArtifacts PublicationArtifactsLookup

	lastHash string
	bySequence []*Linkage
}

// NewService builds a Service wired to its external collaborators.
func NewService(clockSource clock.Source, stream *ledger.Stream, verify ReceiptVerifier, lookupSnapshot CustodySnapshotLookup, buildProof CustodyProofBuilder, lookupArtifacts PublicationArtifactsLookup) *Service {
	return &Service{
		Clock:                      clockSource,
		Ledger:                     stream,
		VerifyReceipt:              verify,
		LookupSnapshot:             lookupSnapshot,
		BuildProof:                 buildProof,
		LookupPublicationArtifacts: lookupArtifacts,
	}
}

// RecordRequest bundles Record's inputs.
type RecordRequest struct {
	LinkageID        string
	ReceiptID        string
	ReceiptSignature string
	SnapshotID       string
	HoldingID        string
	PublicationID    string
	IdempotencyKey   string
	NowISO           string
}

// Record verifies the receipt signature, the custody snapshot/holding's
// existence, builds and verifies the custody inclusion proof, confirms the
// transparency publication's artifact_refs cover both referenced
// artifacts, and appends the new chained linkage.
func (s *Service) Record(req RecordRequest) (*Linkage, *apperr.Error) {
	if !s.VerifyReceipt(req.ReceiptID, req.ReceiptSignature) {
		return nil, apperr.ConstraintViolation(ReasonReceiptSignatureInvalid, "receipt signature failed verification", map[string]any{"receipt_id": req.ReceiptID})
	}
	if !s.LookupSnapshot(req.SnapshotID, req.HoldingID) {
		return nil, apperr.NotFound(ReasonCustodySnapshotNotFound, "custody snapshot or holding not found", map[string]any{
			"snapshot_id": req.SnapshotID, "holding_id": req.HoldingID,
		})
	}
	proof, verified := s.BuildProof(req.SnapshotID, req.HoldingID)
	if !verified {
		return nil, apperr.ConstraintViolation(ReasonCustodyProofInvalid, "custody inclusion proof failed verification", nil)
	}
	artifacts := s.LookupPublicationArtifacts(req.PublicationID)
	if !containsBoth(artifacts, "receipt:"+req.ReceiptID, "custody_snapshot:"+req.SnapshotID) {
		return nil, apperr.ConstraintViolation(ReasonPublicationArtifactsMissing, "publication artifact_refs do not cover the receipt and custody snapshot", map[string]any{
			"publication_id": req.PublicationID,
		})
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	fields := map[string]any{
		"linkage_id":     req.LinkageID,
		"receipt_id":     req.ReceiptID,
		"snapshot_id":    req.SnapshotID,
		"holding_id":     req.HoldingID,
		"publication_id": req.PublicationID,
		"proof":          proof,
	}
	fieldsHash, err := canon.HashHex(fields)
	if err != nil {
		return nil, apperr.ConstraintViolation("linkage_fields_not_encodable", err.Error(), nil)
	}
	linkageHash := canon.ChainHex([]byte(s.lastHash), []byte(fieldsHash))

	l := &Linkage{
		LinkageID:     req.LinkageID,
		ReceiptID:     req.ReceiptID,
		SnapshotID:    req.SnapshotID,
		HoldingID:     req.HoldingID,
		PublicationID: req.PublicationID,
		Proof:         proof,
		LinkageHash:   linkageHash,
		RecordedAtISO: effectiveNow,
	}
	s.lastHash = linkageHash
	s.bySequence = append(s.bySequence, l)

	s.Ledger.Append(req.PublicationID, EventTypeLinkageRecorded, effectiveNow, map[string]any{
		"linkage_id":   l.LinkageID,
		"linkage_hash": l.LinkageHash,
	})

	return l, nil
}

// VerifyChain confirms that every recorded linkage's hash was derived
// correctly from its predecessor, the property §8 invariant 9 demands.
func (s *Service) VerifyChain() bool {
	prev := ""
	for _, l := range s.bySequence {
		fields := map[string]any{
			"linkage_id":     l.LinkageID,
			"receipt_id":     l.ReceiptID,
			"snapshot_id":    l.SnapshotID,
			"holding_id":     l.HoldingID,
			"publication_id": l.PublicationID,
			"proof":          l.Proof,
		}
		fieldsHash, err := canon.HashHex(fields)
		if err != nil {
			return false
		}
		expected := canon.ChainHex([]byte(prev), []byte(fieldsHash))
		if expected != l.LinkageHash {
			return false
		}
		prev = l.LinkageHash
	}
	return true
}

func containsBoth(refs []string, a, b string) bool {
	var hasA, hasB bool
	for _, r := range refs {
		if r == a {
			hasA = true
		}
		if r == b {
			hasB = true
		}
	}
	return hasA && hasB
}

// Reason codes specific to this package.
const (
	ReasonReceiptSignatureInvalid     apperr.Reason = "inclusion_receipt_signature_invalid"
	ReasonCustodySnapshotNotFound     apperr.Reason = "inclusion_custody_snapshot_not_found"
	ReasonCustodyProofInvalid         apperr.Reason = "inclusion_custody_proof_invalid"
	ReasonPublicationArtifactsMissing apperr.Reason = "inclusion_publication_artifacts_missing"
)
