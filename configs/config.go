package configs

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var Values Config

type (
	StoreKind string

	Config struct {
		Network           string                   `mapstructure:"network"`
		RPCURL            string                   `mapstructure:"rpc-url"`
		Deployer          Wallet                   `mapstructure:"deployer"`
		ArtifactsDir      string                   `mapstructure:"artifacts-dir"`
		Store             Store                    `mapstructure:"store"`
		ConfirmTimeout    time.Duration            `mapstructure:"confirm-timeout"`
		Parallelism       int                      `mapstructure:"parallelism"`
		ReportPath        string                   `mapstructure:"report-path"`
		MetricsFile       string                   `mapstructure:"metrics-file"`
		LogLevel          string                   `mapstructure:"log-level"`
		MainchainNetworks []string                 `mapstructure:"mainchain-networks"`
		Networks          map[string]NetworkConfig `mapstructure:"networks"`
	}

	Wallet struct {
		PrivateKey string `mapstructure:"private-key"`
	}

	Store struct {
		Kind StoreKind `mapstructure:"kind"`
		Path string    `mapstructure:"path"`
	}

	NetworkConfig struct {
		RoninTrustedOrganization TrustedOrganizationConfig `mapstructure:"ronin-trusted-organization"`
		InitAddresses            map[string]ContractInit   `mapstructure:"init-addresses"`
	}

	TrustedOrganizationConfig struct {
		TrustedOrganizations []TrustedOrganization `mapstructure:"trusted-organizations"`
		Numerator            uint64                `mapstructure:"numerator"`
		Denominator          uint64                `mapstructure:"denominator"`
	}

	TrustedOrganization struct {
		ConsensusAddr string `mapstructure:"consensus-addr"`
		Governor      string `mapstructure:"governor"`
		BridgeVoter   string `mapstructure:"bridge-voter"`
		Weight        uint64 `mapstructure:"weight"`
		AddedBlock    uint64 `mapstructure:"added-block"`
	}

	// ContractInit holds what is known in advance about a contract role on a network.
	// Both fields are optional.
	ContractInit struct {
		Address string  `mapstructure:"address"`
		Nonce   *uint64 `mapstructure:"nonce"`
	}
)

const (
	StoreKindFile StoreKind = "file"
	StoreKindBolt StoreKind = "bolt"

	// Role keys are lower case: viper folds map keys.
	RoleGovernanceAdmin                  = "governance-admin"
	RoleRoninTrustedOrganizationContract = "ronin-trusted-organization-contract"
)

// ExpectedAddress returns the configured address, or nil when none is configured.
func (c ContractInit) ExpectedAddress() *common.Address {
	if c.Address == "" {
		return nil
	}
	address := common.HexToAddress(c.Address)
	return &address
}

// Init returns the entry for role; a missing role yields an empty ContractInit.
func (n NetworkConfig) Init(role string) ContractInit {
	return n.InitAddresses[role]
}

// NetworkConfig returns the configuration of the selected network.
func (c *Config) NetworkConfig() (NetworkConfig, bool) {
	cfg, ok := c.Networks[c.Network]
	return cfg, ok
}

// IsMainchain reports whether network belongs to the mainchain set.
func (c *Config) IsMainchain(network string) bool {
	return slices.Contains(c.MainchainNetworks, network)
}

// Validate checks the configuration needed to run the pipeline on the selected network.
func (c *Config) Validate() error {
	var errs []error

	if c.Network == "" {
		errs = append(errs, errors.New("network is required"))
	}
	if c.RPCURL == "" {
		errs = append(errs, errors.New("rpc-url is required"))
	}
	if c.Deployer.PrivateKey == "" {
		errs = append(errs, errors.New("deployer.private-key is required"))
	}
	if c.ArtifactsDir == "" {
		errs = append(errs, errors.New("artifacts-dir is required"))
	}
	if c.ConfirmTimeout <= 0 {
		errs = append(errs, errors.New("confirm-timeout must be positive"))
	}
	if c.Parallelism < 1 {
		errs = append(errs, errors.New("parallelism must be at least 1"))
	}

	switch c.Store.Kind {
	case StoreKindFile, StoreKindBolt:
		if c.Store.Path == "" {
			errs = append(errs, errors.New("store.path is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("store.kind must be either '%s' or '%s'", StoreKindFile, StoreKindBolt))
	}

	if c.Network != "" && c.IsMainchain(c.Network) {
		networkCfg, ok := c.NetworkConfig()
		if !ok {
			errs = append(errs, fmt.Errorf("networks.%s is required for a mainchain network", c.Network))
		} else {
			errs = append(errs, networkCfg.validate("networks."+c.Network)...)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (n NetworkConfig) validate(prefix string) []error {
	var errs []error

	org := n.RoninTrustedOrganization
	orgPrefix := prefix + ".ronin-trusted-organization"
	if org.Denominator == 0 {
		errs = append(errs, fmt.Errorf("%s.denominator must be positive", orgPrefix))
	} else if org.Numerator > org.Denominator {
		errs = append(errs, fmt.Errorf("%s.numerator must not exceed denominator", orgPrefix))
	}

	for i, trusted := range org.TrustedOrganizations {
		fields := []struct{ name, value string }{
			{"consensus-addr", trusted.ConsensusAddr},
			{"governor", trusted.Governor},
			{"bridge-voter", trusted.BridgeVoter},
		}
		for _, field := range fields {
			if !common.IsHexAddress(field.value) {
				errs = append(errs, fmt.Errorf("%s.trusted-organizations[%d].%s is not a hex address", orgPrefix, i, field.name))
			}
		}
	}

	for role, init := range n.InitAddresses {
		if init.Address != "" && !common.IsHexAddress(init.Address) {
			errs = append(errs, fmt.Errorf("%s.init-addresses.%s.address is not a hex address", prefix, role))
		}
	}

	return errs
}
