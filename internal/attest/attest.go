// Package attest implements the attestation and checkpoint signer (§4.6):
// the running chain hash over an exported page, the checkpoint record
// anchoring continuation, and the (deterministic, test-injectable)
// signature over the envelope.
package attest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"marketcore/internal/canon"
)

// Attestation is the signed summary of one exported page (§3).
type Attestation struct {
	ChainHash         string `json:"chain_hash"`
	PreviousChainHash string `json:"previous_chain_hash,omitempty"`
	KeyID             string `json:"key_id"`
	Signature         string `json:"signature"`
}

// Checkpoint anchors continuation for the next page (§3).
type Checkpoint struct {
	CheckpointHash        string `json:"checkpoint_hash"`
	NextCursor            string `json:"next_cursor,omitempty"`
	AttestationChainHash  string `json:"attestation_chain_hash"`
	QueryContextFingerprint string `json:"query_context_fingerprint"`
	QueryContext          any    `json:"query_context"`
	ExportedAt            string `json:"exported_at"`
}

// Signer computes chain hashes and signs export pages. The signing key is
// injected (§1 excludes key-rotation mechanics from this core's scope);
// production wiring supplies a real key, tests supply a fixed one.
type Signer struct {
	KeyID string
	Key   []byte
}

// NewSigner builds a Signer bound to keyID/key.
func NewSigner(keyID string, key []byte) *Signer {
	return &Signer{KeyID: keyID, Key: key}
}

// ChainHash folds H(previous || H(canonical(entry))) across entries in
// order, matching §4.6's chain_hash_i = H(chain_hash_{i-1} || H(canonical(entry_i))).
// previousChainHash is "" for the first page of a stream.
func (s *Signer) ChainHash(previousChainHash string, entries []any) (string, error) {
	chain := previousChainHash
	for _, e := range entries {
		entryHash, err := canon.HashHex(e)
		if err != nil {
			return "", err
		}
		chain = canon.ChainHex([]byte(chain), []byte(entryHash))
	}
	return chain, nil
}

// Sign computes the Attestation for a page given its previous chain hash.
// Signing is deterministic: HMAC-SHA256 over the chain hash under the
// signer's key, so re-signing an identical page with an identical
// previous_chain_hash always yields an identical attestation (§8
// invariant 4).
func (s *Signer) Sign(previousChainHash string, entries []any) (Attestation, error) {
	chainHash, err := s.ChainHash(previousChainHash, entries)
	if err != nil {
		return Attestation{}, err
	}
	mac := hmac.New(sha256.New, s.Key)
	mac.Write([]byte(chainHash))
	signature := hex.EncodeToString(mac.Sum(nil))
	return Attestation{
		ChainHash:         chainHash,
		PreviousChainHash: previousChainHash,
		KeyID:             s.KeyID,
		Signature:         signature,
	}, nil
}

// QueryFingerprint is a pure function of the canonicalized query value
// (§8 invariant 5): two semantically equal queries produce the same
// fingerprint regardless of key order or insignificant formatting.
func QueryFingerprint(query any) (string, error) {
	return canon.HashHex(query)
}

// BuildCheckpoint computes checkpoint_hash = H(attestation_chain_hash ||
// next_cursor || context_fingerprint) and assembles the Checkpoint record
// (§3, §4.6).
func BuildCheckpoint(att Attestation, nextCursor string, query any, exportedAt string) (Checkpoint, error) {
	fingerprint, err := QueryFingerprint(query)
	if err != nil {
		return Checkpoint{}, err
	}
	checkpointHash := canon.ChainHex([]byte(att.ChainHash), []byte(nextCursor), []byte(fingerprint))
	return Checkpoint{
		CheckpointHash:          checkpointHash,
		NextCursor:              nextCursor,
		AttestationChainHash:    att.ChainHash,
		QueryContextFingerprint: fingerprint,
		QueryContext:            query,
		ExportedAt:              exportedAt,
	}, nil
}
