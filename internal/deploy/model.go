package deploy

import "github.com/ethereum/go-ethereum/common"

type (
	Prediction struct {
		Step         string         `yaml:"step"`
		Deployer     common.Address `yaml:"deployer"`
		Nonce        uint64         `yaml:"nonce"`
		Pinned       bool           `yaml:"pinned"`
		Address      common.Address `yaml:"address"`
		Verification string         `yaml:"verification"`
	}

	record struct {
		Name       string         `yaml:"name"`
		Contract   string         `yaml:"contract"`
		Address    common.Address `yaml:"address"`
		TxHash     string         `yaml:"tx-hash,omitempty"`
		Nonce      uint64         `yaml:"nonce"`
		Reconciled bool           `yaml:"reconciled,omitempty"`
	}
)
