package deployment

import "context"

// Store is the deployment record. A name present in the store is the only signal that
// its contract was deployed; entries are never overwritten.
type Store interface {
	Get(ctx context.Context, name string) (Artifact, bool, error)
	Put(ctx context.Context, artifact Artifact) error
	List(ctx context.Context) ([]Artifact, error)

	GetPending(ctx context.Context, name string) (Pending, bool, error)
	PutPending(ctx context.Context, pending Pending) error
	DeletePending(ctx context.Context, name string) error

	Close() error
}
