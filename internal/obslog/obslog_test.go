package obslog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupRenamesKeys(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup(&buf, "ledger")
	logger.Info("entry appended", slog.String("ledger_kind", "signals"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Equal(t, "entry appended", decoded["message"])
	require.Equal(t, "INFO", decoded["severity"])
	require.Equal(t, "ledger", decoded["component"])
	require.Contains(t, decoded, "timestamp")
}

func TestMaskFieldRedactsNonAllowlisted(t *testing.T) {
	attr := MaskField("counterparty_actor_id", "partner-42")
	require.Equal(t, RedactedValue, attr.Value.String())

	attr = MaskField("reason_code", "liquidity_policy_spread_exceeded")
	require.Equal(t, "liquidity_policy_spread_exceeded", attr.Value.String())
}
