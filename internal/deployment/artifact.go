package deployment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrAlreadyRecorded is returned when a name already has an artifact. Records are write-once.
	ErrAlreadyRecorded = errors.New("deployment already recorded")
	// ErrInvalidName is returned for names that cannot be used as a record key.
	ErrInvalidName = errors.New("invalid deployment name")
)

type (
	// Artifact is the persisted outcome of a contract deployment, keyed by Name.
	Artifact struct {
		Name        string          `json:"name"`
		Contract    string          `json:"contract"`
		Address     common.Address  `json:"address"`
		TxHash      common.Hash     `json:"transactionHash"`
		Deployer    common.Address  `json:"deployer"`
		Nonce       uint64          `json:"nonce"`
		BlockNumber uint64          `json:"blockNumber,omitempty"`
		ABI         json.RawMessage `json:"abi,omitempty"`
		// Reconciled marks artifacts adopted from chain state instead of a tracked submission.
		Reconciled bool `json:"reconciled,omitempty"`
	}

	// Pending tracks a creation transaction that was sent but whose artifact is not recorded yet.
	Pending struct {
		Name     string         `json:"name"`
		Contract string         `json:"contract"`
		TxHash   common.Hash    `json:"transactionHash"`
		Address  common.Address `json:"address"`
		Deployer common.Address `json:"deployer"`
		Nonce    uint64         `json:"nonce"`
	}
)

// validateName keeps names usable as file names in the file-backed store.
func validateName(name string) error {
	if name == "" || name[0] == '.' {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
		default:
			return fmt.Errorf("%w: %q contains %q", ErrInvalidName, name, r)
		}
	}
	return nil
}
