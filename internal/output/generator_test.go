package output

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/compose-network/ronin-deployer/internal/deployment"
	fsjson "github.com/compose-network/ronin-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/ronin-deployer/internal/pipeline"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestGenerator_WritesReport(t *testing.T) {
	proxy := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	report := pipeline.Report{
		Network: "ronin-testnet",
		Results: []pipeline.Result{
			{Step: "RoninTrustedOrganizationLogic", Status: pipeline.StatusSkipped},
			{
				Step:         "MainchainRoninTrustedOrganizationProxy",
				Status:       pipeline.StatusSucceeded,
				Contract:     "TransparentUpgradeableProxyV2",
				Address:      proxy,
				TxHash:       common.HexToHash("0x01"),
				Verification: "match",
			},
			{Step: "Other", Status: pipeline.StatusFailed, Err: errors.New("boom")},
		},
	}
	artifacts := []deployment.Artifact{{
		Name:     "MainchainRoninTrustedOrganizationProxy",
		Contract: "TransparentUpgradeableProxyV2",
		Address:  proxy,
		Nonce:    4,
		ABI:      []byte("[ {\"type\": \"fallback\"} ]"),
	}}

	g := NewGenerator(fsjson.NewWriter())
	model := g.Build(report, common.HexToAddress("0xd3910"), artifacts)
	assert.True(t, model.Failed)
	assert.Nil(t, model.Steps[0].Address)
	assert.Equal(t, "boom", model.Steps[2].Error)

	path := filepath.Join(t.TempDir(), "report.yaml")
	require.NoError(t, g.Generate(path, model))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `abi: '[{"type":"fallback"}]'`)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(data, &decoded))
	assert.Equal(t, "ronin-testnet", decoded["network"])
	contracts := decoded["contracts"].(map[string]any)
	entry := contracts["MainchainRoninTrustedOrganizationProxy"].(map[string]any)
	assert.Equal(t, strings.ToLower(proxy.Hex()), entry["address"])
}
