package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/ronin-deployer/internal/logger"
	"github.com/compose-network/ronin-deployer/internal/metrics"
	"golang.org/x/sync/errgroup"
)

type (
	RunnerOptions struct {
		Network  Network
		Resolver *Resolver
		// Parallelism bounds how many independent steps of one depth run at once.
		Parallelism int
		Metrics     *metrics.Metrics
	}

	// Runner executes a graph against one network.
	Runner struct {
		graph       *Graph
		network     Network
		resolver    *Resolver
		parallelism int
		metrics     *metrics.Metrics
		logger      *slog.Logger
	}

	// Report holds one result per visited step, in execution order.
	Report struct {
		Network Network  `yaml:"network"`
		Results []Result `yaml:"results"`
	}
)

func NewRunner(graph *Graph, opts RunnerOptions) *Runner {
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}

	return &Runner{
		graph:       graph,
		network:     opts.Network,
		resolver:    opts.Resolver,
		parallelism: parallelism,
		metrics:     opts.Metrics,
		logger:      logger.Named("pipeline").With("network", string(opts.Network)),
	}
}

// Failed reports whether any step failed.
func (r Report) Failed() bool {
	for _, result := range r.Results {
		if result.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Run executes the closure of targets, or the whole graph when none are given.
// Steps of equal depth may run concurrently. Once a step fails no further depth
// is started; the returned error wraps the first failure.
func (r *Runner) Run(ctx context.Context, targets ...string) (Report, error) {
	selected, err := r.graph.closure(targets)
	if err != nil {
		return Report{}, err
	}

	levels := make(map[int][]int)
	maxDepth := 0
	for _, i := range r.graph.order {
		if _, ok := selected[i]; !ok {
			continue
		}
		d := r.graph.depth[i]
		levels[d] = append(levels[d], i)
		maxDepth = max(maxDepth, d)
	}

	results := make(map[int]Result, len(selected))
	var firstErr error

	for depth := 0; depth <= maxDepth; depth++ {
		level := levels[depth]
		if len(level) == 0 {
			continue
		}

		var runnable []int
		for _, i := range level {
			if blocker, blocked := r.blockedBy(i, results); blocked {
				results[i] = Result{
					Step:   r.graph.steps[i].Name,
					Status: StatusBlocked,
					Err:    fmt.Errorf("dependency %s did not succeed", blocker),
				}
				continue
			}
			if firstErr != nil || ctx.Err() != nil {
				results[i] = Result{Step: r.graph.steps[i].Name, Status: StatusCancelled}
				continue
			}
			runnable = append(runnable, i)
		}

		levelResults := make([]Result, len(runnable))
		var group errgroup.Group
		group.SetLimit(r.parallelism)
		for slot, i := range runnable {
			group.Go(func() error {
				levelResults[slot] = r.runStep(ctx, r.graph.steps[i])
				return nil
			})
		}
		_ = group.Wait()

		for slot, i := range runnable {
			result := levelResults[slot]
			results[i] = result
			if result.Status == StatusFailed && firstErr == nil {
				firstErr = fmt.Errorf("step %s failed: %w", result.Step, result.Err)
			}
		}
	}

	report := Report{Network: r.network}
	for _, i := range r.graph.order {
		result, ok := results[i]
		if !ok {
			continue
		}
		if result.Status == StatusBlocked || result.Status == StatusCancelled {
			r.metrics.StepFinished(string(result.Status))
		}
		report.Results = append(report.Results, result)
	}

	return report, firstErr
}

func (r *Runner) blockedBy(i int, results map[int]Result) (string, bool) {
	for _, p := range r.graph.incoming[i] {
		switch results[p].Status {
		case StatusFailed, StatusBlocked, StatusCancelled:
			return r.graph.steps[p].Name, true
		}
	}
	return "", false
}

func (r *Runner) runStep(ctx context.Context, step Step) Result {
	log := r.logger.With("step", step.Name)

	if !IsApplicable(r.network, step.Networks) {
		log.With("outcome", string(StatusSkipped)).Info("step not applicable to network, skipping")
		r.metrics.StepFinished(string(StatusSkipped))
		return Result{Step: step.Name, Status: StatusSkipped}
	}

	env := &Env{
		Network:  r.network,
		Resolver: r.resolver,
		Logger:   log,
	}

	start := time.Now()
	result, err := step.Run(ctx, env)
	result.Step = step.Name
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusFailed
		result.Err = err
		log.With("err", err.Error()).With("retryable", IsRetryable(err)).Error("step failed")
	} else {
		if result.Status == "" {
			result.Status = StatusSucceeded
		}
		log.With("status", string(result.Status)).With("duration", result.Duration.String()).Debug("step finished")
	}

	r.metrics.StepFinished(string(result.Status))
	return result
}
