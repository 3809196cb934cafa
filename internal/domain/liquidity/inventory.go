package liquidity

import (
	"marketcore/internal/apperr"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// Holding is one unit of provider-owned inventory available for
// reservation against a single active reservation at a time.
type Holding struct {
	HoldingID   string
	ProviderID  string
	AssetID     string
	QuantityUSD float64
}

// Reservation is a successful hold against a Holding.
type Reservation struct {
	ReservationID string
	HoldingID     string
	QuantityUSD   float64
	CreatedAtISO  string
	ReleasedAtISO string
}

// InventoryService tracks holdings and their active reservations. A
// holding may carry at most one active (non-released) reservation at a
// time (§8 S4: "two reserve requests against the same holding with
// different reservation_id" — the second must conflict).
type InventoryService struct {
	Clock    clock.Source
	Ledger   *ledger.Stream
	holdings map[string]*Holding
	activeReservation map[string]*Reservation // holdingID -> active reservation, absent if none
}

// NewInventoryService builds an InventoryService over the given ledger stream.
func NewInventoryService(clockSource clock.Source, stream *ledger.Stream) *InventoryService {
	return &InventoryService{
		Clock:              clockSource,
		Ledger:             stream,
		holdings:           map[string]*Holding{},
		activeReservation:  map[string]*Reservation{},
	}
}

// PutHolding registers or replaces a holding record.
func (s *InventoryService) PutHolding(h Holding) {
	clone := h
	s.holdings[h.HoldingID] = &clone
}

// ReserveOutcome is one reserve call's result (§8 S4: "first outcome
// ok:true, second outcome ok:false, reason_code=...").
type ReserveOutcome struct {
	OK           bool
	ReasonCode   apperr.Reason
	Reservation  *Reservation
}

// ReserveRequest bundles Reserve's inputs.
type ReserveRequest struct {
	HoldingID      string
	ReservationID  string
	QuantityUSD    float64
	IdempotencyKey string
	NowISO         string
}

// Reserve attempts to place reservationID against holdingID. If the
// holding already carries a different active reservation, the call
// returns ok:false with liquidity_inventory_reservation_conflict rather
// than an *apperr.Error, matching §8 S4's "engine succeeds" framing: the
// reservation attempt itself is a well-formed, successfully evaluated
// call whose domain outcome happens to be a conflict.
func (s *InventoryService) Reserve(req ReserveRequest) (ReserveOutcome, *apperr.Error) {
	holdingID, reservationID, nowISO := req.HoldingID, req.ReservationID, req.NowISO
	holding, ok := s.holdings[holdingID]
	if !ok {
		return ReserveOutcome{}, apperr.NotFound(ReasonHoldingNotFound, "holding not found", map[string]any{"holding_id": holdingID})
	}

	effectiveNow := nowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	if existing, ok := s.activeReservation[holdingID]; ok {
		if existing.ReservationID == reservationID {
			return ReserveOutcome{OK: true, Reservation: cloneReservation(existing)}, nil
		}
		s.Ledger.Append(holding.ProviderID, EventTypeReservationFailed, effectiveNow, map[string]any{
			"holding_id":     holdingID,
			"reservation_id": reservationID,
		})
		return ReserveOutcome{OK: false, ReasonCode: ReasonReservationConflict}, nil
	}

	r := &Reservation{
		ReservationID: reservationID,
		HoldingID:     holdingID,
		CreatedAtISO:  effectiveNow,
	}
	s.activeReservation[holdingID] = r

	s.Ledger.Append(holding.ProviderID, EventTypeReservationMade, effectiveNow, map[string]any{
		"holding_id":     holdingID,
		"reservation_id": reservationID,
	})

	return ReserveOutcome{OK: true, Reservation: cloneReservation(r)}, nil
}

// ReleaseRequest bundles Release's inputs.
type ReleaseRequest struct {
	HoldingID      string
	ReservationID  string
	IdempotencyKey string
	NowISO         string
}

// Release clears holdingID's active reservation if it matches reservationID.
func (s *InventoryService) Release(req ReleaseRequest) *apperr.Error {
	holdingID, reservationID, nowISO := req.HoldingID, req.ReservationID, req.NowISO
	existing, ok := s.activeReservation[holdingID]
	if !ok || existing.ReservationID != reservationID {
		return apperr.NotFound(ReasonReservationNotFound, "no matching active reservation", map[string]any{"holding_id": holdingID})
	}
	effectiveNow := nowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}
	existing.ReleasedAtISO = effectiveNow
	delete(s.activeReservation, holdingID)
	return nil
}

// ActiveReservationCount returns the number of holdings with a live
// reservation (§8 S4: "active reservation count = 1").
func (s *InventoryService) ActiveReservationCount() int {
	return len(s.activeReservation)
}

func cloneReservation(r *Reservation) *Reservation {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

// Reason codes specific to this package.
const (
	ReasonHoldingNotFound     apperr.Reason = "liquidity_inventory_holding_not_found"
	ReasonReservationConflict apperr.Reason = "liquidity_inventory_reservation_conflict"
	ReasonReservationNotFound apperr.Reason = "liquidity_inventory_reservation_not_found"
)
