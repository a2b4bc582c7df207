package main

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/compose-network/ronin-deployer/configs"
	"github.com/compose-network/ronin-deployer/internal/deploy"
	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	appName   = "ronin-deployer"
	envPrefix = "RONIN_DEPLOYER"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           appName,
	Short:         "Deploys the Ronin mainchain contracts in dependency order",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.Initialize(slog.LevelInfo)

		v := viper.GetViper()
		if err := configs.SetDefaults(v); err != nil {
			return err
		}

		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
		v.AutomaticEnv()

		if configFile != "" {
			v.SetConfigFile(configFile)
		} else {
			v.SetConfigName("config")
			v.SetConfigType("yaml")

			if execPath, err := os.Executable(); err == nil {
				v.AddConfigPath(filepath.Dir(execPath))
			}
			v.AddConfigPath(".")
			v.AddConfigPath("./configs")
		}

		// Flags, environment and defaults can provide everything but the network tables.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				const errMsg = "error reading config file"
				slog.With("err", err.Error()).Error(errMsg)
				return errors.Join(err, errors.New(errMsg))
			}
			slog.Debug("no config file found, will rely on flags and defaults")
		} else {
			slog.With("config_file", v.ConfigFileUsed()).Debug("config file loaded")
		}

		if err := v.Unmarshal(&configs.Values); err != nil {
			const errMsg = "unable to decode application config"
			slog.With("err", err.Error()).Error(errMsg)
			return errors.Join(err, errors.New(errMsg))
		}

		logger.Initialize(logger.ParseLevel(configs.Values.LogLevel))
		slog.With("network", configs.Values.Network).With("store", configs.Values.Store.Kind).Debug("configuration loaded")

		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to the config file (default: ./config.yaml or ./configs/config.yaml)")
	if err := deploy.DeclareFlags(rootCmd, viper.GetViper()); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(deploy.Commands()...)

	if err := rootCmd.Execute(); err != nil {
		slog.With("err", err.Error()).Error("failed to execute root command")
		os.Exit(1)
	}
}
