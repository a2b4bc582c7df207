package steps

import (
	"context"
	"fmt"

	"github.com/compose-network/ronin-deployer/configs"
	"github.com/compose-network/ronin-deployer/internal/contracts"
	"github.com/compose-network/ronin-deployer/internal/deployer"
	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/compose-network/ronin-deployer/internal/pipeline"
	"github.com/compose-network/ronin-deployer/internal/verify"
	"github.com/ethereum/go-ethereum/common"
)

const (
	NameRoninTrustedOrganizationLogic          = "RoninTrustedOrganizationLogic"
	NameMainchainRoninTrustedOrganizationProxy = "MainchainRoninTrustedOrganizationProxy"
	// NameMainchainGovernanceAdmin is deployed outside this graph and resolved from the store.
	NameMainchainGovernanceAdmin = "MainchainGovernanceAdmin"
)

type (
	ContractDeployer interface {
		DeployOrFetch(ctx context.Context, name string, req deployer.Request) (deployment.Artifact, error)
	}

	AddressVerifier interface {
		Check(step, contractName string, actual common.Address, expected *common.Address) verify.Outcome
	}

	// Dependencies are the collaborators shared by every step definition.
	Dependencies struct {
		Config    configs.Config
		Contracts map[contracts.Name]contracts.Compiled
		Deployer  ContractDeployer
		Verifier  AddressVerifier
	}
)

// All returns every step definition of the mainchain deployment.
func All(deps Dependencies) []pipeline.Step {
	return []pipeline.Step{
		RoninTrustedOrganizationLogic(deps),
		MainchainRoninTrustedOrganizationProxy(deps),
	}
}

// NewGraph builds the step graph for deps.
func NewGraph(deps Dependencies) (*pipeline.Graph, error) {
	return pipeline.NewGraph(All(deps)...)
}

func RoninTrustedOrganizationLogic(deps Dependencies) pipeline.Step {
	return pipeline.Step{
		Name:     NameRoninTrustedOrganizationLogic,
		Tags:     []string{NameRoninTrustedOrganizationLogic},
		Networks: pipeline.NewNetworks(deps.Config.MainchainNetworks...),
		Run: func(ctx context.Context, _ *pipeline.Env) (pipeline.Result, error) {
			logic, err := deps.contract(contracts.NameRoninTrustedOrganization)
			if err != nil {
				return pipeline.Result{}, err
			}

			artifact, err := deps.Deployer.DeployOrFetch(ctx, NameRoninTrustedOrganizationLogic, deployer.Request{
				Step:     NameRoninTrustedOrganizationLogic,
				Contract: logic,
			})
			if err != nil {
				return pipeline.Result{}, err
			}

			return pipeline.Result{
				Contract: artifact.Contract,
				Address:  artifact.Address,
				TxHash:   artifact.TxHash,
			}, nil
		},
	}
}

// MainchainRoninTrustedOrganizationProxy deploys the trusted organization proxy and runs
// initialize(trustedOrgs, numerator, denominator) in the proxy constructor.
func MainchainRoninTrustedOrganizationProxy(deps Dependencies) pipeline.Step {
	return pipeline.Step{
		Name: NameMainchainRoninTrustedOrganizationProxy,
		Tags: []string{NameMainchainRoninTrustedOrganizationProxy},
		Dependencies: []string{
			NameRoninTrustedOrganizationLogic,
			NameMainchainGovernanceAdmin,
		},
		Networks: pipeline.NewNetworks(deps.Config.MainchainNetworks...),
		Run: func(ctx context.Context, env *pipeline.Env) (pipeline.Result, error) {
			upstream, err := env.Resolver.ResolveAll(ctx, NameRoninTrustedOrganizationLogic, NameMainchainGovernanceAdmin)
			if err != nil {
				return pipeline.Result{}, err
			}
			env.Logger.
				With("logic", upstream[NameRoninTrustedOrganizationLogic].Address.Hex()).
				With("admin", upstream[NameMainchainGovernanceAdmin].Address.Hex()).
				Debug("resolved proxy dependencies")

			networkCfg, ok := deps.Config.Networks[string(env.Network)]
			if !ok {
				return pipeline.Result{}, fmt.Errorf("no configuration for network %s", env.Network)
			}

			logic, err := deps.contract(contracts.NameRoninTrustedOrganization)
			if err != nil {
				return pipeline.Result{}, err
			}
			proxy, err := deps.contract(contracts.NameTransparentUpgradeableProxyV2)
			if err != nil {
				return pipeline.Result{}, err
			}

			init, err := contracts.NewTrustedOrganizationInit(networkCfg.RoninTrustedOrganization)
			if err != nil {
				return pipeline.Result{}, err
			}
			payload, err := contracts.NewEncoder(logic).Encode(contracts.MethodInitialize, init.Args()...)
			if err != nil {
				return pipeline.Result{}, err
			}
			env.Logger.
				With("trusted_organizations", len(init.TrustedOrganizations)).
				With("payload_size", len(payload)).
				Debug("encoded initializer")

			self := networkCfg.Init(configs.RoleRoninTrustedOrganizationContract)

			artifact, err := deps.Deployer.DeployOrFetch(ctx, NameMainchainRoninTrustedOrganizationProxy, deployer.Request{
				Step:     NameMainchainRoninTrustedOrganizationProxy,
				Contract: proxy,
				Args: []any{
					upstream[NameRoninTrustedOrganizationLogic].Address,
					upstream[NameMainchainGovernanceAdmin].Address,
					payload,
				},
				PinnedNonce: self.Nonce,
			})
			if err != nil {
				return pipeline.Result{}, err
			}

			outcome := deps.Verifier.Check(NameMainchainRoninTrustedOrganizationProxy, NameMainchainRoninTrustedOrganizationProxy,
				artifact.Address, self.ExpectedAddress())

			return pipeline.Result{
				Contract:     artifact.Contract,
				Address:      artifact.Address,
				TxHash:       artifact.TxHash,
				Verification: string(outcome),
			}, nil
		},
	}
}

func (d Dependencies) contract(name contracts.Name) (contracts.Compiled, error) {
	compiled, ok := d.Contracts[name]
	if !ok {
		return contracts.Compiled{}, fmt.Errorf("%w: %s", contracts.ErrArtifactNotFound, name)
	}
	return compiled, nil
}
