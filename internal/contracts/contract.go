package contracts

import (
	"encoding/json"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

type (
	Name string

	// Compiled is a compiled contract as produced by the build toolchain.
	// Bytecode is empty when only the ABI is known.
	Compiled struct {
		Name     Name
		ABI      abi.ABI
		RawABI   json.RawMessage
		Bytecode []byte
	}
)

const (
	NameRoninTrustedOrganization      Name = "RoninTrustedOrganization"
	NameTransparentUpgradeableProxyV2 Name = "TransparentUpgradeableProxyV2"
)

// Deployable reports whether the contract carries creation bytecode.
func (c Compiled) Deployable() bool {
	return len(c.Bytecode) > 0
}
