package deploy

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/compose-network/ronin-deployer/configs"
	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/compose-network/ronin-deployer/internal/pipeline"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var CMD = &cobra.Command{
	Use:   "deploy [step-or-tag...]",
	Short: "Deploy the mainchain contracts of the configured network",
	Long:  "Runs the deployment steps in dependency order. With arguments, only the named steps or tags and their dependencies run.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := configs.Values
		slog.With("network", cfg.Network).Info("starting deploy command. Validating config")

		if err := cfg.Validate(); err != nil {
			return err
		}

		applicable, err := HasApplicableSteps(cfg, args...)
		if err != nil {
			return err
		}
		if !applicable {
			slog.With("network", cfg.Network).
				With("mainchain_networks", pipeline.NewNetworks(cfg.MainchainNetworks...).Sorted()).
				With("outcome", string(pipeline.StatusSkipped)).
				Info("no step applies to network, nothing to deploy")
			return nil
		}

		service, err := NewService(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to prepare deployment: %w", err)
		}
		defer service.Close()

		report, err := service.Deploy(cmd.Context(), args...)
		if err != nil {
			if pipeline.IsRetryable(err) {
				slog.Warn("deployment failed with a retryable error, re-running is safe")
			}
			return fmt.Errorf("deployment failed: %w", err)
		}

		slog.With("steps", len(report.Results)).Info("deployment completed successfully")
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan [step-or-tag...]",
	Short: "Show the steps a deploy would run on the configured network",
	RunE: func(cmd *cobra.Command, args []string) error {
		if configs.Values.Network == "" {
			return errors.New("network is required")
		}

		entries, err := Plan(configs.Values, args...)
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), entries)
	},
}

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List the recorded deployments of the configured network",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if configs.Values.Network == "" {
			return errors.New("network is required")
		}

		artifacts, err := Records(cmd.Context(), configs.Values)
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), toRecords(artifacts))
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the trusted organization proxy address from the deployer and nonce",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := configs.Values
		if err := cfg.Validate(); err != nil {
			return err
		}

		service, err := NewService(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer service.Close()

		prediction, err := service.Predict(cmd.Context())
		if err != nil {
			return err
		}
		return printYAML(cmd.OutOrStdout(), prediction)
	},
}

// Commands returns the deployment command and its companions.
func Commands() []*cobra.Command {
	return []*cobra.Command{CMD, planCmd, recordsCmd, predictCmd}
}

func toRecords(artifacts []deployment.Artifact) []record {
	out := make([]record, 0, len(artifacts))
	for _, artifact := range artifacts {
		r := record{
			Name:       artifact.Name,
			Contract:   artifact.Contract,
			Address:    artifact.Address,
			Nonce:      artifact.Nonce,
			Reconciled: artifact.Reconciled,
		}
		if artifact.TxHash != (common.Hash{}) {
			r.TxHash = artifact.TxHash.Hex()
		}
		out = append(out, r)
	}
	return out
}

func printYAML(w io.Writer, value any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(value); err != nil {
		return fmt.Errorf("failed to print output: %w", err)
	}
	return encoder.Close()
}
