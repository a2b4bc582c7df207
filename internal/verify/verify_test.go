package verify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrA = common.HexToAddress("0x000000000000000000000000000000000000000a")
	addrB = common.HexToAddress("0x000000000000000000000000000000000000000b")
)

func TestVerify(t *testing.T) {
	assert.Equal(t, OutcomeMatch, Verify(addrA, &addrA))
	assert.Equal(t, OutcomeMismatch, Verify(addrA, &addrB))
	assert.Equal(t, OutcomeUnspecified, Verify(addrA, nil))
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()

	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buf bytes.Buffer
	logger.InitializeWithWriter(&buf, slog.LevelDebug)
	return &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for _, raw := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if raw == "" {
			continue
		}
		var line map[string]any
		require.NoError(t, json.Unmarshal([]byte(raw), &line))
		lines = append(lines, line)
	}
	return lines
}

func TestVerifier_MismatchWarnsOnce(t *testing.T) {
	buf := captureLogs(t)

	outcome := NewVerifier(nil).Check("MainchainRoninTrustedOrganizationProxy", "MainchainRoninTrustedOrganizationProxy", addrA, &addrB)
	assert.Equal(t, OutcomeMismatch, outcome)

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "WARN", lines[0]["level"])
	assert.Equal(t, "mismatch", lines[0]["outcome"])
	assert.Equal(t, addrA.Hex(), lines[0]["address"])
	assert.Equal(t, addrB.Hex(), lines[0]["expected"])
}

func TestVerifier_MatchAndUnspecifiedAreInfo(t *testing.T) {
	buf := captureLogs(t)
	v := NewVerifier(nil)

	assert.Equal(t, OutcomeMatch, v.Check("step", "contract", addrA, &addrA))
	assert.Equal(t, OutcomeUnspecified, v.Check("step", "contract", addrA, nil))

	lines := logLines(t, buf)
	require.Len(t, lines, 2)
	for _, line := range lines {
		assert.Equal(t, "INFO", line["level"])
	}
}
