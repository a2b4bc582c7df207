package configs

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

var (
	//go:embed config.example.yaml
	defaultConfigYAML string

	defaultConfigOnce  sync.Once
	defaultConfigViper *viper.Viper
	defaultConfigErr   error
)

// networkKeysPrefix marks per-network keys. Those are never defaulted: initializer
// arguments must come from the operator's configuration.
const networkKeysPrefix = "networks."

func embeddedDefaults() (*viper.Viper, error) {
	defaultConfigOnce.Do(func() {
		v := viper.New()
		v.SetConfigType("yaml")
		if err := v.ReadConfig(strings.NewReader(defaultConfigYAML)); err != nil {
			defaultConfigErr = fmt.Errorf("failed to read embedded config.example.yaml: %w", err)
			return
		}
		defaultConfigViper = v
	})

	return defaultConfigViper, defaultConfigErr
}

// SetDefaults registers the operational settings of the embedded config.example.yaml
// as defaults on v, so a config file or flags only need to override what differs.
func SetDefaults(v *viper.Viper) error {
	defaults, err := embeddedDefaults()
	if err != nil {
		return err
	}

	for _, key := range defaults.AllKeys() {
		if strings.HasPrefix(key, networkKeysPrefix) {
			continue
		}
		v.SetDefault(key, defaults.Get(key))
	}

	return nil
}

// ExampleConfig returns the full embedded config.example.yaml, networks included.
func ExampleConfig() (Config, error) {
	defaults, err := embeddedDefaults()
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := defaults.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to decode embedded config.example.yaml: %w", err)
	}

	return cfg, nil
}
