package deployment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/compose-network/ronin-deployer/internal/logger"
	bolt "go.etcd.io/bbolt"
)

var (
	artifactsBucket = []byte("artifacts")
	pendingBucket   = []byte("pending")
)

// BoltStore keeps deployment records in a bbolt database, one top level bucket per network.
// bbolt holds an exclusive file lock, so a second process opening the same file waits
// at most openTimeout and then fails instead of writing concurrently.
type BoltStore struct {
	db      *bolt.DB
	network []byte
	logger  *slog.Logger
}

const openTimeout = 2 * time.Second

// NewBoltStore opens (or creates) the database at path and prepares the network buckets
func NewBoltStore(path, network string) (*BoltStore, error) {
	if network == "" {
		return nil, errors.New("network is required")
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt store %s: %w", path, err)
	}

	store := &BoltStore{
		db:      db,
		network: []byte(network),
		logger:  logger.Named("bolt_store").With("path", path),
	}

	if err := store.setupDB(); err != nil {
		store.Close()

		return nil, err
	}

	return store, nil
}

func (s *BoltStore) setupDB() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		root, err := tx.CreateBucketIfNotExists(s.network)
		if err != nil {
			return err
		}

		for _, name := range [][]byte{artifactsBucket, pendingBucket} {
			if _, err := root.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}

		return nil
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(_ context.Context, name string) (Artifact, bool, error) {
	var artifact Artifact
	found, err := s.get(artifactsBucket, name, &artifact)
	return artifact, found, err
}

// Put records an artifact inside a single write transaction, so the existence check
// and the insert cannot interleave with another writer.
func (s *BoltStore) Put(_ context.Context, artifact Artifact) error {
	if err := validateName(artifact.Name); err != nil {
		return err
	}

	value, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal record for %s: %w", artifact.Name, err)
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := s.bucket(tx, artifactsBucket)
		key := []byte(artifact.Name)

		if bucket.Get(key) != nil {
			return fmt.Errorf("%s: %w", artifact.Name, ErrAlreadyRecorded)
		}

		return bucket.Put(key, value)
	})
	if err != nil {
		return err
	}

	s.logger.With("contract_name", artifact.Name).Debug("deployment record written")
	return nil
}

func (s *BoltStore) List(_ context.Context) ([]Artifact, error) {
	var artifacts []Artifact

	err := s.db.View(func(tx *bolt.Tx) error {
		return s.bucket(tx, artifactsBucket).ForEach(func(k, v []byte) error {
			var artifact Artifact
			if err := json.Unmarshal(v, &artifact); err != nil {
				return fmt.Errorf("failed to decode record %s: %w", k, err)
			}
			artifacts = append(artifacts, artifact)

			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return artifacts, nil
}

func (s *BoltStore) GetPending(_ context.Context, name string) (Pending, bool, error) {
	var pending Pending
	found, err := s.get(pendingBucket, name, &pending)
	return pending, found, err
}

func (s *BoltStore) PutPending(_ context.Context, pending Pending) error {
	if err := validateName(pending.Name); err != nil {
		return err
	}

	value, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("failed to marshal pending entry for %s: %w", pending.Name, err)
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return s.bucket(tx, pendingBucket).Put([]byte(pending.Name), value)
	})
}

func (s *BoltStore) DeletePending(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		return s.bucket(tx, pendingBucket).Delete([]byte(name))
	})
}

func (s *BoltStore) get(bucketName []byte, name string, target any) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	var value []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if raw := s.bucket(tx, bucketName).Get([]byte(name)); raw != nil {
			value = append([]byte(nil), raw...)
		}

		return nil
	}); err != nil {
		return false, err
	}

	if value == nil {
		return false, nil
	}

	if err := json.Unmarshal(value, target); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", name, err)
	}

	return true, nil
}

func (s *BoltStore) bucket(tx *bolt.Tx, name []byte) *bolt.Bucket {
	return tx.Bucket(s.network).Bucket(name)
}
