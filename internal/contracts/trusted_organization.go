package contracts

import (
	"fmt"
	"math/big"

	"github.com/compose-network/ronin-deployer/configs"
	"github.com/ethereum/go-ethereum/common"
)

const MethodInitialize = "initialize"

// TrustedOrganization mirrors IRoninTrustedOrganization.TrustedOrganization.
// Field names must stay the camel-cased ABI component names.
type TrustedOrganization struct {
	ConsensusAddr common.Address
	Governor      common.Address
	BridgeVoter   common.Address
	Weight        *big.Int
	AddedBlock    *big.Int
}

// TrustedOrganizationInit is the argument list of
// initialize(TrustedOrganization[] _trustedOrgs, uint256 __num, uint256 __denom).
type TrustedOrganizationInit struct {
	TrustedOrganizations []TrustedOrganization
	Numerator            *big.Int
	Denominator          *big.Int
}

// Args returns the arguments in initializer order.
func (i TrustedOrganizationInit) Args() []any {
	return []any{i.TrustedOrganizations, i.Numerator, i.Denominator}
}

// NewTrustedOrganizationInit converts network configuration into initializer arguments.
// Malformed addresses are rejected rather than zero-filled.
func NewTrustedOrganizationInit(cfg configs.TrustedOrganizationConfig) (TrustedOrganizationInit, error) {
	orgs := make([]TrustedOrganization, 0, len(cfg.TrustedOrganizations))

	for i, org := range cfg.TrustedOrganizations {
		consensus, err := parseAddress(org.ConsensusAddr)
		if err != nil {
			return TrustedOrganizationInit{}, fmt.Errorf("%w: trusted organization %d consensus address: %w", ErrEncoding, i, err)
		}
		governor, err := parseAddress(org.Governor)
		if err != nil {
			return TrustedOrganizationInit{}, fmt.Errorf("%w: trusted organization %d governor: %w", ErrEncoding, i, err)
		}
		bridgeVoter, err := parseAddress(org.BridgeVoter)
		if err != nil {
			return TrustedOrganizationInit{}, fmt.Errorf("%w: trusted organization %d bridge voter: %w", ErrEncoding, i, err)
		}

		orgs = append(orgs, TrustedOrganization{
			ConsensusAddr: consensus,
			Governor:      governor,
			BridgeVoter:   bridgeVoter,
			Weight:        new(big.Int).SetUint64(org.Weight),
			AddedBlock:    new(big.Int).SetUint64(org.AddedBlock),
		})
	}

	return TrustedOrganizationInit{
		TrustedOrganizations: orgs,
		Numerator:            new(big.Int).SetUint64(cfg.Numerator),
		Denominator:          new(big.Int).SetUint64(cfg.Denominator),
	}, nil
}

func parseAddress(value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("%q is not a hex address", value)
	}
	return common.HexToAddress(value), nil
}
