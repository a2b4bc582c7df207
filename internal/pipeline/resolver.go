package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/compose-network/ronin-deployer/internal/deployment"
	"github.com/ethereum/go-ethereum/common"
)

// ErrMissingDependency is returned when a required upstream deployment is not recorded.
var ErrMissingDependency = errors.New("missing dependency")

// Resolver looks up upstream deployments. Every call reads the store.
type Resolver struct {
	store deployment.Store
}

func NewResolver(store deployment.Store) *Resolver {
	return &Resolver{store: store}
}

func (r *Resolver) Resolve(ctx context.Context, name string) (deployment.Artifact, error) {
	artifact, found, err := r.store.Get(ctx, name)
	if err != nil {
		return deployment.Artifact{}, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	if !found {
		return deployment.Artifact{}, fmt.Errorf("%w: %s is not deployed", ErrMissingDependency, name)
	}
	if artifact.Address == (common.Address{}) {
		return deployment.Artifact{}, fmt.Errorf("%w: %s is recorded with the zero address", ErrMissingDependency, name)
	}

	return artifact, nil
}

// ResolveAll resolves names in order and stops at the first failure.
func (r *Resolver) ResolveAll(ctx context.Context, names ...string) (map[string]deployment.Artifact, error) {
	out := make(map[string]deployment.Artifact, len(names))
	for _, name := range names {
		artifact, err := r.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		out[name] = artifact
	}
	return out, nil
}
