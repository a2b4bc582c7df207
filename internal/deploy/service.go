package deploy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/compose-network/ronin-deployer/configs"
	"github.com/compose-network/ronin-deployer/internal/chain"
	"github.com/compose-network/ronin-deployer/internal/contracts"
	"github.com/compose-network/ronin-deployer/internal/deployer"
	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/compose-network/ronin-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/compose-network/ronin-deployer/internal/metrics"
	"github.com/compose-network/ronin-deployer/internal/output"
	"github.com/compose-network/ronin-deployer/internal/pipeline"
	"github.com/compose-network/ronin-deployer/internal/steps"
	"github.com/compose-network/ronin-deployer/internal/verify"
)

type (
	// Service wires the configured store, chain client and step graph for one network.
	Service struct {
		cfg     configs.Config
		client  chain.Client
		store   deployment.Store
		metrics *metrics.Metrics
		closers []func() error
		logger  *slog.Logger
	}
)

// NewService opens the record store and dials the chain. Call Close when done.
func NewService(ctx context.Context, cfg configs.Config) (*Service, error) {
	s := &Service{
		cfg:     cfg,
		metrics: metrics.New(cfg.Network),
		logger:  logger.Named("deploy_service").With("network", cfg.Network),
	}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	s.store = store
	s.closers = append(s.closers, store.Close)

	s.logger.With("url", cfg.RPCURL).Info("dialing the RPC")
	client, err := chain.Dial(ctx, cfg.RPCURL, cfg.Deployer.PrivateKey)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.client = client
	s.closers = append(s.closers, func() error { client.Close(); return nil })

	s.logger.
		With("chain_id", client.ChainID().String()).
		With("deployer", client.Address().Hex()).
		Info("connected")

	return s, nil
}

// newServiceWith builds a Service over existing collaborators.
func newServiceWith(cfg configs.Config, client chain.Client, store deployment.Store) *Service {
	return &Service{
		cfg:     cfg,
		client:  client,
		store:   store,
		metrics: metrics.New(cfg.Network),
		logger:  logger.Named("deploy_service").With("network", cfg.Network),
	}
}

func openStore(cfg configs.Config) (deployment.Store, error) {
	switch cfg.Store.Kind {
	case configs.StoreKindFile:
		return deployment.NewFileStore(cfg.Store.Path, cfg.Network, json.NewReader(), json.NewWriter())
	case configs.StoreKindBolt:
		return deployment.NewBoltStore(cfg.Store.Path, cfg.Network)
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Deploy runs the closure of targets (everything when empty), writes the report and
// metrics, and returns the first step failure.
func (s *Service) Deploy(ctx context.Context, targets ...string) (pipeline.Report, error) {
	compiled, err := contracts.NewLoader(s.cfg.ArtifactsDir, json.NewReader()).
		Load(contracts.NameRoninTrustedOrganization, contracts.NameTransparentUpgradeableProxyV2)
	if err != nil {
		return pipeline.Report{}, fmt.Errorf("failed to load compiled contracts: %w", err)
	}

	graph, err := steps.NewGraph(steps.Dependencies{
		Config:    s.cfg,
		Contracts: compiled,
		Deployer: deployer.New(s.client, s.store, deployer.Options{
			ConfirmTimeout: s.cfg.ConfirmTimeout,
			Metrics:        s.metrics,
		}),
		Verifier: verify.NewVerifier(s.metrics),
	})
	if err != nil {
		return pipeline.Report{}, err
	}

	runner := pipeline.NewRunner(graph, pipeline.RunnerOptions{
		Network:     pipeline.Network(s.cfg.Network),
		Resolver:    pipeline.NewResolver(s.store),
		Parallelism: s.cfg.Parallelism,
		Metrics:     s.metrics,
	})

	s.logger.With("targets", targets).With("order", graph.Order()).Info("running deployment pipeline")
	report, runErr := runner.Run(ctx, targets...)

	if err := s.writeReport(ctx, report); err != nil {
		runErr = errors.Join(runErr, err)
	}
	if err := s.metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
		runErr = errors.Join(runErr, err)
	}

	return report, runErr
}

func (s *Service) writeReport(ctx context.Context, report pipeline.Report) error {
	if s.cfg.ReportPath == "" {
		return nil
	}

	artifacts, err := s.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list deployments for the report: %w", err)
	}

	generator := output.NewGenerator(json.NewWriter())
	if err := generator.Generate(s.cfg.ReportPath, generator.Build(report, s.client.Address(), artifacts)); err != nil {
		return err
	}

	s.logger.With("path", s.cfg.ReportPath).Info("deployment report written")
	return nil
}

// Predict returns the address the trusted organization proxy gets at its configured
// nonce, or at the account's next nonce when none is pinned.
func (s *Service) Predict(ctx context.Context) (Prediction, error) {
	networkCfg, _ := s.cfg.NetworkConfig()
	init := networkCfg.Init(configs.RoleRoninTrustedOrganizationContract)

	d := deployer.New(s.client, s.store, deployer.Options{})
	address, nonce, err := d.Predict(ctx, init.Nonce)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		Step:         steps.NameMainchainRoninTrustedOrganizationProxy,
		Deployer:     s.client.Address(),
		Nonce:        nonce,
		Pinned:       init.Nonce != nil,
		Address:      address,
		Verification: string(verify.Verify(address, init.ExpectedAddress())),
	}, nil
}

// Records lists every recorded deployment of the configured network.
func Records(ctx context.Context, cfg configs.Config) ([]deployment.Artifact, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	return store.List(ctx)
}

// HasApplicableSteps reports whether a deploy of targets would act on the configured
// network at all. It needs neither the chain nor compiled artifacts.
func HasApplicableSteps(cfg configs.Config, targets ...string) (bool, error) {
	entries, err := Plan(cfg, targets...)
	if err != nil {
		return false, err
	}
	for _, entry := range entries {
		if entry.Applicable {
			return true, nil
		}
	}
	return false, nil
}

// Plan builds the step graph without chain access and lists what a run would do.
func Plan(cfg configs.Config, targets ...string) ([]pipeline.PlanEntry, error) {
	graph, err := steps.NewGraph(steps.Dependencies{Config: cfg})
	if err != nil {
		return nil, err
	}
	return graph.Plan(pipeline.Network(cfg.Network), targets...)
}
