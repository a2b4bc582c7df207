package output

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/compose-network/ronin-deployer/internal/infra/filesystem"
	"github.com/compose-network/ronin-deployer/internal/pipeline"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type Generator struct {
	writer filesystem.Writer
}

func NewGenerator(writer filesystem.Writer) *Generator {
	return &Generator{writer: writer}
}

// Build assembles the report of a run together with every recorded deployment.
func (g *Generator) Build(report pipeline.Report, deployer common.Address, artifacts []deployment.Artifact) *Model {
	model := &Model{
		Network:   string(report.Network),
		Deployer:  deployer,
		Failed:    report.Failed(),
		Contracts: make(map[string]ContractConfig, len(artifacts)),
	}

	for _, result := range report.Results {
		step := StepReport{
			Step:         result.Step,
			Status:       string(result.Status),
			Contract:     result.Contract,
			Verification: result.Verification,
		}
		if result.Address != (common.Address{}) {
			address := result.Address
			step.Address = &address
		}
		if result.TxHash != (common.Hash{}) {
			step.TxHash = result.TxHash.Hex()
		}
		if result.Duration > 0 {
			step.Duration = result.Duration.String()
		}
		if result.Err != nil {
			step.Error = result.Err.Error()
		}
		model.Steps = append(model.Steps, step)
	}

	for _, artifact := range artifacts {
		contract := ContractConfig{
			Contract:   artifact.Contract,
			Address:    artifact.Address,
			Nonce:      artifact.Nonce,
			Reconciled: artifact.Reconciled,
			ABI:        SingleQuotedString(compactJSON(artifact.ABI)),
		}
		if artifact.TxHash != (common.Hash{}) {
			contract.TxHash = artifact.TxHash.Hex()
		}
		model.Contracts[artifact.Name] = contract
	}

	return model
}

// Generate writes the report to path as YAML.
func (g *Generator) Generate(path string, model *Model) error {
	data, err := yaml.Marshal(model)
	if err != nil {
		return fmt.Errorf("could not marshal output model: %w", err)
	}

	if err := g.writer.WriteBytes(path, data); err != nil {
		return fmt.Errorf("could not write output file %s: %w", path, err)
	}

	return nil
}

func compactJSON(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
