// Package transparency implements the partner-chained transparency log
// (§4.11): each publication's previous_root_hash must equal the prior
// publication's root_hash for that partner, and every publication's
// chain_hash is a deterministic function of its fields and predecessor.
// Follows native/escrow's event-chain hashing, generalized from a single
// global chain to one chain per partner.
package transparency

import (
	"marketcore/internal/apperr"
	"marketcore/internal/canon"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypePublicationRecorded = "transparencyPublication.recorded"
)

// Publication is one entry in a partner's transparency log.
type Publication struct {
	PublicationID    string
	Partner          string
	ArtifactRefs     []string
	PreviousRootHash string
	RootHash         string
	ChainHash        string
	RecordedAtISO    string
}

func (p *Publication) clone() *Publication {
	if p == nil {
		return nil
	}
	c := *p
	c.ArtifactRefs = append([]string(nil), p.ArtifactRefs...)
	return &c
}

// Service records transparency publications, one chain per partner.
type Service struct {
	Clock  clock.Source
	Ledger *ledger.Stream

	byPartner map[string][]*Publication
}

// NewService builds a Service over the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{Clock: clockSource, Ledger: stream, byPartner: map[string][]*Publication{}}
}

// RecordRequest bundles Record's inputs. RootHash is the content root
// computed by the caller over ArtifactRefs (e.g. a Merkle root); this
// package does not prescribe how it is derived, only that continuity
// holds across publications.
type RecordRequest struct {
	PublicationID    string
	Partner          string
	ArtifactRefs     []string
	RootHash         string
	PreviousRootHash string
	IdempotencyKey   string
	NowISO           string
}

// Record enforces that PreviousRootHash equals the partner's last
// publication's RootHash (empty string for the first publication), then
// derives a deterministic chain_hash and appends the new publication.
func (s *Service) Record(req RecordRequest) (*Publication, *apperr.Error) {
	chain := s.byPartner[req.Partner]

	var expectedPrevious string
	var previousChainHash string
	if len(chain) > 0 {
		last := chain[len(chain)-1]
		expectedPrevious = last.RootHash
		previousChainHash = last.ChainHash
	}
	if req.PreviousRootHash != expectedPrevious {
		return nil, apperr.ConstraintViolation(ReasonChainDiscontinuity, "previous_root_hash does not match the partner's last publication", map[string]any{
			"partner":  req.Partner,
			"expected": expectedPrevious,
			"actual":   req.PreviousRootHash,
		})
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	fields := map[string]any{
		"publication_id":     req.PublicationID,
		"partner":            req.Partner,
		"artifact_refs":      req.ArtifactRefs,
		"root_hash":          req.RootHash,
		"previous_root_hash": req.PreviousRootHash,
	}
	fieldsHash, err := canon.HashHex(fields)
	if err != nil {
		return nil, apperr.ConstraintViolation("publication_fields_not_encodable", err.Error(), nil)
	}
	chainHash := canon.ChainHex([]byte(previousChainHash), []byte(fieldsHash))

	p := &Publication{
		PublicationID:    req.PublicationID,
		Partner:          req.Partner,
		ArtifactRefs:     append([]string(nil), req.ArtifactRefs...),
		PreviousRootHash: req.PreviousRootHash,
		RootHash:         req.RootHash,
		ChainHash:        chainHash,
		RecordedAtISO:    effectiveNow,
	}
	s.byPartner[req.Partner] = append(chain, p)

	s.Ledger.Append(req.Partner, EventTypePublicationRecorded, effectiveNow, map[string]any{
		"publication_id": p.PublicationID,
		"chain_hash":      p.ChainHash,
	})

	return p, nil
}

// ArtifactRefs returns the artifact_refs recorded for publicationID, or
// nil if not found. This satisfies inclusion.PublicationArtifactsLookup.
func (s *Service) ArtifactRefs(publicationID string) []string {
	for _, chain := range s.byPartner {
		for _, p := range chain {
			if p.PublicationID == publicationID {
				return append([]string(nil), p.ArtifactRefs...)
			}
		}
	}
	return nil
}

// Chain returns a defensive copy of partner's full publication chain in
// recorded order.
func (s *Service) Chain(partner string) []*Publication {
	chain := s.byPartner[partner]
	out := make([]*Publication, len(chain))
	for i, p := range chain {
		out[i] = p.clone()
	}
	return out
}

// Reason codes specific to this package.
const (
	ReasonChainDiscontinuity apperr.Reason = "transparency_chain_discontinuity"
)
