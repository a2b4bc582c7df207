package output

import (
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

type (
	Model struct {
		Network   string                    `yaml:"network"`
		Deployer  common.Address            `yaml:"deployer"`
		Failed    bool                      `yaml:"failed"`
		Steps     []StepReport              `yaml:"steps"`
		Contracts map[string]ContractConfig `yaml:"contracts"`
	}

	StepReport struct {
		Step         string          `yaml:"step"`
		Status       string          `yaml:"status"`
		Contract     string          `yaml:"contract,omitempty"`
		Address      *common.Address `yaml:"address,omitempty"`
		TxHash       string          `yaml:"tx-hash,omitempty"`
		Verification string          `yaml:"verification,omitempty"`
		Duration     string          `yaml:"duration,omitempty"`
		Error        string          `yaml:"error,omitempty"`
	}

	ContractConfig struct {
		Contract   string             `yaml:"contract"`
		Address    common.Address     `yaml:"address"`
		TxHash     string             `yaml:"tx-hash,omitempty"`
		Nonce      uint64             `yaml:"nonce"`
		Reconciled bool               `yaml:"reconciled,omitempty"`
		ABI        SingleQuotedString `yaml:"abi,omitempty"`
	}

	SingleQuotedString string
)

func (s SingleQuotedString) MarshalYAML() (any, error) {
	node := &yaml.Node{
		Kind:  yaml.ScalarNode,
		Style: yaml.SingleQuotedStyle,
		Value: string(s),
	}
	return node, nil
}
