package ops

import "fmt"

// custodyRegistry is the lightweight in-process stand-in for the external
// custody and receipt-signing systems inclusion.Service depends on (§1
// excludes cryptographic primitives beyond SHA-256/HMAC, and custody
// snapshot storage, from this core). It backs three of the four collaborator
// functions inclusion.NewService is injected with (the fourth, artifact
// lookup, comes from transparency.Service), the way a deployment
// would wire them to a custody ledger and a signature-verification
// service instead.
type custodyRegistry struct {
	snapshots map[string]map[string]struct{} // snapshot_id -> holding_id set
	receipts  map[string]receiptRecord       // receipt_id -> signature/validity
}

type receiptRecord struct {
	signature string
	valid     bool
}

func newCustodyRegistry() *custodyRegistry {
	return &custodyRegistry{
		snapshots: map[string]map[string]struct{}{},
		receipts:  map[string]receiptRecord{},
	}
}

func (c *custodyRegistry) registerSnapshot(snapshotID, holdingID string) {
	holdings, ok := c.snapshots[snapshotID]
	if !ok {
		holdings = map[string]struct{}{}
		c.snapshots[snapshotID] = holdings
	}
	holdings[holdingID] = struct{}{}
}

func (c *custodyRegistry) registerReceipt(receiptID, signature string, valid bool) {
	c.receipts[receiptID] = receiptRecord{signature: signature, valid: valid}
}

func (c *custodyRegistry) verifyReceipt(receiptID, signature string) bool {
	rec, ok := c.receipts[receiptID]
	return ok && rec.valid && rec.signature == signature
}

func (c *custodyRegistry) lookupSnapshot(snapshotID, holdingID string) bool {
	holdings, ok := c.snapshots[snapshotID]
	if !ok {
		return false
	}
	_, ok = holdings[holdingID]
	return ok
}

// buildProof derives a deterministic proof string from the snapshot/holding
// pair's registration, standing in for the real custody Merkle proof (§1).
func (c *custodyRegistry) buildProof(snapshotID, holdingID string) (string, bool) {
	if !c.lookupSnapshot(snapshotID, holdingID) {
		return "", false
	}
	return fmt.Sprintf("custody_proof:%s:%s", snapshotID, holdingID), true
}
