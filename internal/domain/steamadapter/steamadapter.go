// Package steamadapter implements the Steam marketplace adapter contract
// and preflight (§4.11): a versioned contract declaring supported
// settlement modes, dry-run requirements, and batch-size limits, checked
// against each preflight call before the adapter is engaged. Follows
// native/escrow's ArbitrationScheme-style closed enum plus
// services/escrow-gateway's config-validation style of surfacing a
// specific reason per failed precondition.
package steamadapter

import (
	"marketcore/internal/apperr"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

// EventType constants name this package's ledger appends.
const (
	EventTypeContractUpserted = "steamAdapterContract.upserted"
)

// SettlementMode enumerates the settlement modes a contract may support.
type SettlementMode string

// Contract is the versioned per-provider adapter contract (§4.11).
type Contract struct {
	Version                uint64
	SupportedSettlementModes []SettlementMode
	DryRunRequired         bool
	MaxBatchSize           int
	UpdatedAtISO           string
}

// Clone deep-copies c.
func (c *Contract) Clone() *Contract {
	if c == nil {
		return nil
	}
	clone := *c
	if len(c.SupportedSettlementModes) > 0 {
		clone.SupportedSettlementModes = append([]SettlementMode(nil), c.SupportedSettlementModes...)
	}
	return &clone
}

func (c *Contract) supports(mode SettlementMode) bool {
	for _, m := range c.SupportedSettlementModes {
		if m == mode {
			return true
		}
	}
	return false
}

// Service holds one contract per provider.
type Service struct {
	Clock  clock.Source
	Ledger *ledger.Stream
	byProvider map[string]*Contract
}

// NewService builds a Service over the given ledger stream.
func NewService(clockSource clock.Source, stream *ledger.Stream) *Service {
	return &Service{Clock: clockSource, Ledger: stream, byProvider: map[string]*Contract{}}
}

// UpsertRequest bundles Upsert's inputs.
type UpsertRequest struct {
	ProviderID               string
	SupportedSettlementModes []SettlementMode
	DryRunRequired           bool
	MaxBatchSize             int
	IdempotencyKey           string
	NowISO                   string
}

// Upsert stores a new contract version for providerID. Version increases
// monotonically, matching the liquidity policy's own versioning rule
// (§3).
func (s *Service) Upsert(req UpsertRequest) (*Contract, *apperr.Error) {
	if req.MaxBatchSize <= 0 {
		return nil, apperr.ConstraintViolation(ReasonMaxBatchSizeInvalid, "max_batch_size must be positive", nil)
	}
	effectiveNow := req.NowISO
	if effectiveNow == "" {
		effectiveNow = s.Clock.NowISO()
	}

	existing := s.byProvider[req.ProviderID]
	version := uint64(1)
	if existing != nil {
		version = existing.Version + 1
	}

	c := &Contract{
		Version:                  version,
		SupportedSettlementModes: append([]SettlementMode(nil), req.SupportedSettlementModes...),
		DryRunRequired:           req.DryRunRequired,
		MaxBatchSize:             req.MaxBatchSize,
		UpdatedAtISO:             effectiveNow,
	}
	s.byProvider[req.ProviderID] = c

	s.Ledger.Append(req.ProviderID, EventTypeContractUpserted, effectiveNow, map[string]any{
		"provider_id": req.ProviderID,
		"version":     c.Version,
	})

	return c.Clone(), nil
}

// Get returns providerID's current contract, or NOT_FOUND.
func (s *Service) Get(providerID string) (*Contract, *apperr.Error) {
	c, ok := s.byProvider[providerID]
	if !ok {
		return nil, apperr.NotFound(ReasonContractNotFound, "adapter contract not found", map[string]any{"provider_id": providerID})
	}
	return c.Clone(), nil
}

// PreflightRequest is one preflight call's inputs.
type PreflightRequest struct {
	ProviderID     string
	SettlementMode SettlementMode
	DryRun         bool
	BatchSize      int
}

// PreflightResult is Preflight's deterministic, side-effect-free output.
type PreflightResult struct {
	OK          bool
	ReasonCodes []apperr.Reason
}

// Preflight checks a proposed adapter operation against providerID's
// current contract (§4.11: "preflight fails with specific reason codes
// when settlement mode is unsupported, dry-run is required but missing,
// or batch size exceeds the contract").
func (s *Service) Preflight(req PreflightRequest) (PreflightResult, *apperr.Error) {
	c, ok := s.byProvider[req.ProviderID]
	if !ok {
		return PreflightResult{}, apperr.NotFound(ReasonContractNotFound, "adapter contract not found", map[string]any{"provider_id": req.ProviderID})
	}

	var reasons []apperr.Reason
	if !c.supports(req.SettlementMode) {
		reasons = append(reasons, ReasonSettlementModeUnsupported)
	}
	if c.DryRunRequired && !req.DryRun {
		reasons = append(reasons, ReasonDryRunRequired)
	}
	if req.BatchSize > c.MaxBatchSize {
		reasons = append(reasons, ReasonBatchSizeExceeded)
	}

	return PreflightResult{OK: len(reasons) == 0, ReasonCodes: reasons}, nil
}

// Reason codes specific to this package.
const (
	ReasonMaxBatchSizeInvalid       apperr.Reason = "steam_adapter_max_batch_size_invalid"
	ReasonContractNotFound          apperr.Reason = "steam_adapter_contract_not_found"
	ReasonSettlementModeUnsupported apperr.Reason = "steam_adapter_settlement_mode_unsupported"
	ReasonDryRunRequired            apperr.Reason = "steam_adapter_dry_run_required"
	ReasonBatchSizeExceeded         apperr.Reason = "steam_adapter_batch_size_exceeded"
)
