package deploy

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag with its configuration.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

// Defaults live in configs/config.example.yaml; flag defaults stay empty so they never
// shadow a config file.
var (
	stringFlags = []flagDef[string]{
		{"network", "network", "", "Network to deploy to"},
		{"rpc-url", "rpc-url", "", "JSON-RPC URL of the network"},
		{"private-key", "deployer.private-key", "", "Deployer private key"},
		{"artifacts-dir", "artifacts-dir", "", "Directory holding compiled contract artifacts"},
		{"store-kind", "store.kind", "", "Deployment record store (file or bolt)"},
		{"store-path", "store.path", "", "Deployment record directory or database file"},
		{"confirm-timeout", "confirm-timeout", "", "Maximum wait for a deployment receipt, e.g. 2m"},
		{"report-path", "report-path", "", "Where to write the YAML run report"},
		{"metrics-file", "metrics-file", "", "Where to write prometheus textfile metrics"},
		{"log-level", "log-level", "", "Log level (debug, info, warn, error)"},
	}

	intFlags = []flagDef[int]{
		{"parallelism", "parallelism", 0, "Independent steps to run at once"},
	}

	boolFlags = []flagDef[bool]{}
)

// DeclareFlags declares the persistent flags on root and binds them to v.
func DeclareFlags(root *cobra.Command, v *viper.Viper) error {
	if err := declareFlags(root, v, stringFlags); err != nil {
		return err
	}
	if err := declareFlags(root, v, intFlags); err != nil {
		return err
	}
	return declareFlags(root, v, boolFlags)
}

func declareFlags[T flagType](root *cobra.Command, v *viper.Viper, flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(root, v, flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single flag and binds it to a viper configuration key.
// The type parameter T determines the flag type (string, int, or bool).
func declareFlag[T flagType](root *cobra.Command, v *viper.Viper, flagName, viperKey string, defaultValue T, description string) error {
	flags := root.PersistentFlags()

	var zero T
	switch any(zero).(type) {
	case string:
		flags.String(flagName, any(defaultValue).(string), description)
	case int:
		flags.Int(flagName, any(defaultValue).(int), description)
	case bool:
		flags.Bool(flagName, any(defaultValue).(bool), description)
	}
	return v.BindPFlag(viperKey, flags.Lookup(flagName))
}
