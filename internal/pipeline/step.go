package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/compose-network/ronin-deployer/internal/deployer"
	"github.com/ethereum/go-ethereum/common"
)

type (
	Status string

	// Env is what the runner hands to a step body.
	Env struct {
		Network  Network
		Resolver *Resolver
		Logger   *slog.Logger
	}

	// Step is one node of the deployment graph. It provides its Name and Tags to
	// dependents and requires Dependencies, which are tags of other steps or names of
	// deployments recorded outside this graph.
	Step struct {
		Name         string
		Tags         []string
		Dependencies []string
		// Networks restricts the step to these networks; nil means every network.
		Networks Networks
		Run      func(ctx context.Context, env *Env) (Result, error)
	}

	Result struct {
		Step         string         `yaml:"step"`
		Status       Status         `yaml:"status"`
		Contract     string         `yaml:"contract,omitempty"`
		Address      common.Address `yaml:"-"`
		TxHash       common.Hash    `yaml:"-"`
		Verification string         `yaml:"verification,omitempty"`
		Duration     time.Duration  `yaml:"-"`
		Err          error          `yaml:"-"`
	}
)

const (
	StatusSucceeded Status = "succeeded"
	StatusSkipped   Status = "skipped"
	StatusFailed    Status = "failed"
	// StatusBlocked marks steps whose dependencies failed or were blocked.
	StatusBlocked Status = "blocked"
	// StatusCancelled marks steps not started because the run stopped.
	StatusCancelled Status = "cancelled"
)

// IsRetryable reports whether re-running the failed step may succeed without a
// configuration change.
func IsRetryable(err error) bool {
	return errors.Is(err, deployer.ErrDeployment)
}

// provides returns every tag the step satisfies, its name included.
func (s Step) provides() []string {
	tags := make([]string, 0, len(s.Tags)+1)
	tags = append(tags, s.Name)
	for _, tag := range s.Tags {
		if tag != s.Name {
			tags = append(tags, tag)
		}
	}
	return tags
}
