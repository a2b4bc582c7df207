package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/compose-network/ronin-deployer/internal/deployer"
	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/compose-network/ronin-deployer/internal/infra/filesystem/json"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder collects the order in which step bodies ran.
type recorder struct {
	mu  sync.Mutex
	ran []string
}

func (r *recorder) step(name string, deps ...string) Step {
	return Step{
		Name:         name,
		Dependencies: deps,
		Run: func(context.Context, *Env) (Result, error) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.ran = append(r.ran, name)
			return Result{}, nil
		},
	}
}

func (r *recorder) order() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

func newStore(t *testing.T) deployment.Store {
	t.Helper()
	store, err := deployment.NewFileStore(t.TempDir(), "ronin-testnet", json.NewReader(), json.NewWriter())
	require.NoError(t, err)
	return store
}

func TestIsApplicable(t *testing.T) {
	targets := NewNetworks("ronin-testnet", "ronin-mainnet")

	assert.True(t, IsApplicable("ronin-testnet", targets))
	assert.False(t, IsApplicable("ethereum-mainnet", targets))
	assert.True(t, IsApplicable("anything", nil))
	assert.False(t, IsApplicable("ronin-testnet", NewNetworks()))
	assert.Equal(t, []string{"ronin-mainnet", "ronin-testnet"}, targets.Sorted())
}

func TestResolver(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	resolver := NewResolver(store)

	_, err := resolver.Resolve(ctx, "MainchainGovernanceAdmin")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingDependency))
	assert.Contains(t, err.Error(), "MainchainGovernanceAdmin")

	admin := deployment.Artifact{Name: "MainchainGovernanceAdmin", Address: common.HexToAddress("0x2002")}
	require.NoError(t, store.Put(ctx, admin))

	got, err := resolver.Resolve(ctx, "MainchainGovernanceAdmin")
	require.NoError(t, err)
	assert.Equal(t, admin.Address, got.Address)

	require.NoError(t, store.Put(ctx, deployment.Artifact{Name: "Broken"}))
	_, err = resolver.Resolve(ctx, "Broken")
	assert.True(t, errors.Is(err, ErrMissingDependency))

	_, err = resolver.ResolveAll(ctx, "MainchainGovernanceAdmin", "RoninTrustedOrganizationLogic")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RoninTrustedOrganizationLogic")
}

func TestNewGraph_DeterministicOrder(t *testing.T) {
	rec := &recorder{}
	steps := []Step{
		rec.step("d", "b", "c"),
		rec.step("c", "a"),
		rec.step("b", "a"),
		rec.step("a"),
		rec.step("e"),
	}

	g, err := NewGraph(steps...)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, g.Order())

	reversed := []Step{steps[4], steps[3], steps[2], steps[1], steps[0]}
	g2, err := NewGraph(reversed...)
	require.NoError(t, err)
	assert.Equal(t, g.Order(), g2.Order())
}

func TestNewGraph_Rejects(t *testing.T) {
	rec := &recorder{}
	tagged := rec.step("b")
	tagged.Tags = []string{"shared"}
	otherTagged := rec.step("c")
	otherTagged.Tags = []string{"shared"}

	tests := []struct {
		name     string
		steps    []Step
		contains string
	}{
		{"empty", nil, "no steps"},
		{"unnamed", []Step{rec.step("")}, "name is required"},
		{"no body", []Step{{Name: "a"}}, "no body"},
		{"duplicate name", []Step{rec.step("a"), rec.step("a")}, "duplicate step name"},
		{"duplicate tag", []Step{tagged, otherTagged}, `tag "shared"`},
		{"self dependency", []Step{rec.step("a", "a")}, "depends on itself"},
		{"cycle", []Step{rec.step("a", "c"), rec.step("b", "a"), rec.step("c", "b")}, "a -> b -> c -> a"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewGraph(tt.steps...)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidGraph))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestGraph_PlanAndExternal(t *testing.T) {
	rec := &recorder{}
	logic := rec.step("Logic")
	logic.Networks = NewNetworks("ronin-testnet")
	proxy := rec.step("Proxy", "Logic", "Admin")
	proxy.Networks = NewNetworks("ronin-testnet")
	other := rec.step("Other")

	g, err := NewGraph(logic, proxy, other)
	require.NoError(t, err)

	assert.Equal(t, []string{"Admin"}, g.External("Proxy"))

	plan, err := g.Plan("ethereum-mainnet", "Proxy")
	require.NoError(t, err)
	assert.Equal(t, []PlanEntry{
		{Step: "Logic", Depth: 0, Applicable: false},
		{Step: "Proxy", Depth: 1, Applicable: false, DependsOn: []string{"Logic"}, External: []string{"Admin"}},
	}, plan)

	_, err = g.Plan("ronin-testnet", "Nope")
	assert.Error(t, err)
	assert.Empty(t, rec.order(), "planning executes nothing")
}

func TestRunner_SkippedStepSatisfiesDependents(t *testing.T) {
	rec := &recorder{}
	gated := rec.step("gated")
	gated.Networks = NewNetworks("ronin-testnet")
	after := rec.step("after", "gated")

	g, err := NewGraph(gated, after)
	require.NoError(t, err)

	report, err := NewRunner(g, RunnerOptions{Network: "ethereum-mainnet"}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"after"}, rec.order())
	require.Len(t, report.Results, 2)
	assert.Equal(t, StatusSkipped, report.Results[0].Status)
	assert.Equal(t, StatusSucceeded, report.Results[1].Status)
	assert.False(t, report.Failed())
}

func TestRunner_FailureBlocksDependents(t *testing.T) {
	rec := &recorder{}
	failing := Step{
		Name: "a",
		Run: func(context.Context, *Env) (Result, error) {
			return Result{}, fmt.Errorf("%w: node unavailable", deployer.ErrDeployment)
		},
	}

	g, err := NewGraph(failing, rec.step("b", "a"), rec.step("c", "b"), rec.step("x"), rec.step("y", "x"))
	require.NoError(t, err)

	report, err := NewRunner(g, RunnerOptions{Network: "ronin-testnet"}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, deployer.ErrDeployment))
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "step a failed")

	statuses := map[string]Status{}
	for _, result := range report.Results {
		statuses[result.Step] = result.Status
	}
	assert.Equal(t, map[string]Status{
		"a": StatusFailed,
		"b": StatusBlocked,
		"c": StatusBlocked,
		"x": StatusSucceeded,
		"y": StatusCancelled,
	}, statuses)
	assert.Equal(t, []string{"x"}, rec.order())
	assert.True(t, report.Failed())
}

func TestRunner_Targets(t *testing.T) {
	rec := &recorder{}
	tagged := rec.step("b", "a")
	tagged.Tags = []string{"B"}

	g, err := NewGraph(rec.step("a"), tagged, rec.step("c"))
	require.NoError(t, err)

	report, err := NewRunner(g, RunnerOptions{Network: "ronin-testnet"}).Run(context.Background(), "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.order())
	assert.Len(t, report.Results, 2)

	_, err = NewRunner(g, RunnerOptions{}).Run(context.Background(), "missing")
	assert.Error(t, err)
}

func TestRunner_ParallelLevel(t *testing.T) {
	started := make(chan struct{}, 2)
	release := make(chan struct{})

	concurrent := func(name string) Step {
		return Step{
			Name: name,
			Run: func(ctx context.Context, _ *Env) (Result, error) {
				started <- struct{}{}
				select {
				case <-release:
					return Result{}, nil
				case <-ctx.Done():
					return Result{}, ctx.Err()
				}
			},
		}
	}

	g, err := NewGraph(concurrent("a"), concurrent("b"))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := NewRunner(g, RunnerOptions{Network: "ronin-testnet", Parallelism: 2}).Run(ctx)
		done <- err
	}()

	for range 2 {
		select {
		case <-started:
		case <-ctx.Done():
			t.Fatal("steps of the same depth did not start concurrently")
		}
	}
	close(release)
	require.NoError(t, <-done)
}

func TestRunner_PassesResolverToSteps(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	require.NoError(t, store.Put(ctx, deployment.Artifact{Name: "Admin", Address: common.HexToAddress("0x2002")}))

	var resolved common.Address
	step := Step{
		Name:         "uses-admin",
		Dependencies: []string{"Admin"},
		Run: func(ctx context.Context, env *Env) (Result, error) {
			admin, err := env.Resolver.Resolve(ctx, "Admin")
			if err != nil {
				return Result{}, err
			}
			resolved = admin.Address
			return Result{Address: admin.Address}, nil
		},
	}

	g, err := NewGraph(step)
	require.NoError(t, err)

	report, err := NewRunner(g, RunnerOptions{Network: "ronin-testnet", Resolver: NewResolver(store)}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2002"), resolved)
	assert.Equal(t, resolved, report.Results[0].Address)
}
