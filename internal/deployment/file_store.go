package deployment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/compose-network/ronin-deployer/internal/infra/filesystem"
	"github.com/compose-network/ronin-deployer/internal/infra/filesystem/json"
	"github.com/compose-network/ronin-deployer/internal/logger"
)

const (
	recordExt  = ".json"
	pendingDir = ".pending"
)

// FileStore keeps one JSON file per deployment under <root>/<network>/<Name>.json,
// the layout hardhat-deploy uses for its deployments folder.
type FileStore struct {
	dir    string
	reader filesystem.Reader
	writer filesystem.Writer
	logger *slog.Logger
}

// NewFileStore creates a file-backed store for a network
func NewFileStore(root, network string, reader filesystem.Reader, writer filesystem.Writer) (*FileStore, error) {
	if network == "" {
		return nil, errors.New("network is required")
	}

	dir := filepath.Join(root, network)
	if err := os.MkdirAll(filepath.Join(dir, pendingDir), 0755); err != nil {
		return nil, fmt.Errorf("failed to create deployments directory: %w", err)
	}

	return &FileStore{
		dir:    dir,
		reader: reader,
		writer: writer,
		logger: logger.Named("file_store").With("dir", dir),
	}, nil
}

func (s *FileStore) Get(_ context.Context, name string) (Artifact, bool, error) {
	var artifact Artifact
	found, err := s.read(s.recordPath(name), name, &artifact)
	return artifact, found, err
}

// Put records an artifact. A second Put for the same name fails with ErrAlreadyRecorded,
// including when two processes race on it.
func (s *FileStore) Put(_ context.Context, artifact Artifact) error {
	if err := validateName(artifact.Name); err != nil {
		return err
	}

	if err := s.writer.CreateJSON(s.recordPath(artifact.Name), artifact); err != nil {
		if errors.Is(err, json.ErrExists) {
			return fmt.Errorf("%s: %w", artifact.Name, ErrAlreadyRecorded)
		}
		return fmt.Errorf("failed to write record for %s: %w", artifact.Name, err)
	}

	s.logger.With("contract_name", artifact.Name).Debug("deployment record written")
	return nil
}

func (s *FileStore) List(_ context.Context) ([]Artifact, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list deployments: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, recordExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(names)

	artifacts := make([]Artifact, 0, len(names))
	for _, name := range names {
		var artifact Artifact
		if err := s.reader.ReadJSON(s.recordPath(name), &artifact); err != nil {
			return nil, fmt.Errorf("failed to read record %s: %w", name, err)
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

func (s *FileStore) GetPending(_ context.Context, name string) (Pending, bool, error) {
	var pending Pending
	found, err := s.read(s.pendingPath(name), name, &pending)
	return pending, found, err
}

func (s *FileStore) PutPending(_ context.Context, pending Pending) error {
	if err := validateName(pending.Name); err != nil {
		return err
	}
	if err := s.writer.WriteJSON(s.pendingPath(pending.Name), pending); err != nil {
		return fmt.Errorf("failed to write pending entry for %s: %w", pending.Name, err)
	}
	return nil
}

func (s *FileStore) DeletePending(_ context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}
	return s.writer.Remove(s.pendingPath(name))
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) read(path, name string, target any) (bool, error) {
	if err := validateName(name); err != nil {
		return false, err
	}

	exists, err := s.reader.Exists(path)
	if err != nil || !exists {
		return false, err
	}

	if err := s.reader.ReadJSON(path, target); err != nil {
		return false, fmt.Errorf("failed to read %s: %w", name, err)
	}

	return true, nil
}

func (s *FileStore) recordPath(name string) string {
	return filepath.Join(s.dir, name+recordExt)
}

func (s *FileStore) pendingPath(name string) string {
	return filepath.Join(s.dir, pendingDir, name+recordExt)
}
