// Package staging implements staging evidence bundles (§4.11): a partner
// submits milestone evidence manifests that must not duplicate an earlier
// (partner, milestone, manifest_hash) tuple, each chained via a
// checkpoint_hash, with cursor-based pagination over the recorded bundles.
// Follows native/escrow's checkpoint/event chain and
// services/otc-gateway's pagination-continuation-token idiom.
package staging

import (
	"marketcore/internal/apperr"
	"marketcore/internal/canon"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypeBundleRecorded = "stagingEvidenceBundle.recorded"
)

// Bundle is one recorded staging evidence submission.
type Bundle struct {
	BundleID       string
	Partner        string
	Milestone      string
	ManifestHash   string
	CheckpointHash string
	RecordedAtISO  string
}

func (b *Bundle) clone() *Bundle {
	if b == nil {
		return nil
	}
	c := *b
	return &c
}

// Service records staging evidence bundles in one submission order shared
// by all partners, rejecting duplicate (partner, milestone, manifest_hash)
// submissions and chaining each bundle's checkpoint_hash to the
// previously recorded bundle, whichever partner submitted it.
type Service struct {
	Clock  clock.Source
	Ledger *ledger.Stream

	seen      map[tupleKey]string // (partner, milestone, manifest_hash) -> bundle_id
	bySequence []*Bundle
}

type tupleKey struct {
	partner, milestone, manifestHash string
}

// NewService builds a Service over the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{Clock: clockSource, Ledger: stream, seen: map[tupleKey]string{}}
}

// RecordRequest bundles Record's inputs.
type RecordRequest struct {
	BundleID       string
	Partner        string
	Milestone      string
	ManifestHash   string
	IdempotencyKey string
	NowISO         string
}

// Record rejects a (partner, milestone, manifest_hash) tuple already
// submitted (CONFLICT, §7: "duplicate evidence manifest") and otherwise
// appends a new bundle chained to the previous checkpoint_hash.
func (s *Service) Record(req RecordRequest) (*Bundle, *apperr.Error) {
	key := tupleKey{partner: req.Partner, milestone: req.Milestone, manifestHash: req.ManifestHash}
	if existingID, exists := s.seen[key]; exists {
		return nil, apperr.Conflict(ReasonDuplicateManifest, "evidence manifest already submitted for this partner and milestone", map[string]any{
			"partner": req.Partner, "milestone": req.Milestone, "existing_bundle_id": existingID,
		})
	}

	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	var previousCheckpoint string
	if len(s.bySequence) > 0 {
		previousCheckpoint = s.bySequence[len(s.bySequence)-1].CheckpointHash
	}

	fields := map[string]any{
		"bundle_id":     req.BundleID,
		"partner":       req.Partner,
		"milestone":     req.Milestone,
		"manifest_hash": req.ManifestHash,
	}
	fieldsHash, err := canon.HashHex(fields)
	if err != nil {
		return nil, apperr.ConstraintViolation("bundle_fields_not_encodable", err.Error(), nil)
	}
	checkpointHash := canon.ChainHex([]byte(previousCheckpoint), []byte(fieldsHash))

	b := &Bundle{
		BundleID:       req.BundleID,
		Partner:        req.Partner,
		Milestone:      req.Milestone,
		ManifestHash:   req.ManifestHash,
		CheckpointHash: checkpointHash,
		RecordedAtISO:  effectiveNow,
	}
	s.seen[key] = b.BundleID
	s.bySequence = append(s.bySequence, b)

	s.Ledger.Append(req.Partner, EventTypeBundleRecorded, effectiveNow, map[string]any{
		"bundle_id":       b.BundleID,
		"checkpoint_hash": b.CheckpointHash,
	})

	return b, nil
}

// Page is one page of bundles plus a continuation anchor to resume from.
type Page struct {
	Bundles  []*Bundle
	NextAnchor string // bundle_id to pass as AfterBundleID on the next call; empty when exhausted
}

// List returns up to pageSize bundles recorded strictly after
// afterBundleID (empty for the first page), in submission order. The
// returned NextAnchor is the last bundle_id returned, matching §7's
// continuation-anchor contract: passing it back resumes exactly where
// the previous page left off even if new bundles were recorded meanwhile.
func (s *Service) List(afterBundleID string, pageSize int) (Page, *apperr.Error) {
	start := 0
	if afterBundleID != "" {
		found := false
		for i, b := range s.bySequence {
			if b.BundleID == afterBundleID {
				start = i + 1
				found = true
				break
			}
		}
		if !found {
			return Page{}, apperr.NotFound(ReasonAnchorNotFound, "continuation anchor not found", map[string]any{"after_bundle_id": afterBundleID})
		}
	}
	if pageSize <= 0 {
		pageSize = len(s.bySequence)
	}
	end := start + pageSize
	if end > len(s.bySequence) {
		end = len(s.bySequence)
	}

	out := make([]*Bundle, 0, end-start)
	for _, b := range s.bySequence[start:end] {
		out = append(out, b.clone())
	}

	var nextAnchor string
	if len(out) > 0 {
		nextAnchor = out[len(out)-1].BundleID
	}
	return Page{Bundles: out, NextAnchor: nextAnchor}, nil
}

// Reason codes specific to this package.
const (
	ReasonDuplicateManifest apperr.Reason = "staging_duplicate_manifest"
	ReasonAnchorNotFound    apperr.Reason = "staging_anchor_not_found"
)
