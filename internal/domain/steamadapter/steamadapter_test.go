package steamadapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketcore/internal/apperr"
	"marketcore/internal/clock"
	"marketcore/internal/ledger"
)

func newService() *Service {
	return NewService(clock.Fixed("2025-01-01T00:00:00Z"), ledger.NewStream("steamAdapterContract"))
}

func TestUpsertVersionsMonotonically(t *testing.T) {
	svc := newService()
	c1, err := svc.Upsert(UpsertRequest{ProviderID: "p1", SupportedSettlementModes: []SettlementMode{"instant"}, MaxBatchSize: 10})
	require.Nil(t, err)
	assert.Equal(t, uint64(1), c1.Version)

	c2, err := svc.Upsert(UpsertRequest{ProviderID: "p1", SupportedSettlementModes: []SettlementMode{"instant", "escrow"}, MaxBatchSize: 20})
	require.Nil(t, err)
	assert.Equal(t, uint64(2), c2.Version)
}

func TestPreflightReportsEverySpecificFailure(t *testing.T) {
	svc := newService()
	_, err := svc.Upsert(UpsertRequest{
		ProviderID:               "p1",
		SupportedSettlementModes: []SettlementMode{"instant"},
		DryRunRequired:           true,
		MaxBatchSize:             5,
	})
	require.Nil(t, err)

	result, err := svc.Preflight(PreflightRequest{ProviderID: "p1", SettlementMode: "escrow", DryRun: false, BatchSize: 10})
	require.Nil(t, err)
	assert.False(t, result.OK)
	assert.ElementsMatch(t, []apperr.Reason{
		ReasonSettlementModeUnsupported, ReasonDryRunRequired, ReasonBatchSizeExceeded,
	}, result.ReasonCodes)
}

func TestPreflightAllowsCompliantRequest(t *testing.T) {
	svc := newService()
	_, err := svc.Upsert(UpsertRequest{
		ProviderID:               "p1",
		SupportedSettlementModes: []SettlementMode{"instant"},
		DryRunRequired:           true,
		MaxBatchSize:             5,
	})
	require.Nil(t, err)

	result, err := svc.Preflight(PreflightRequest{ProviderID: "p1", SettlementMode: "instant", DryRun: true, BatchSize: 5})
	require.Nil(t, err)
	assert.True(t, result.OK)
	assert.Empty(t, result.ReasonCodes)
}

func TestPreflightUnknownProviderIsNotFound(t *testing.T) {
	svc := newService()
	_, err := svc.Preflight(PreflightRequest{ProviderID: "missing"})
	require.NotNil(t, err)
	assert.Equal(t, apperr.CodeNotFound, err.Code)
}
