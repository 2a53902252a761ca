package kstore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/birdayz/kflow/internal/checkpoint"
)

const snapshotExt = ".snap"

// FileStore writes one checkpoint file per program into a directory. Ids
// are base64url encoded into file names, so any id is safe to store.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) file(id string) *checkpoint.File {
	name := base64.RawURLEncoding.EncodeToString([]byte(id)) + snapshotExt
	return checkpoint.NewFile(filepath.Join(s.dir, name))
}

func (s *FileStore) Put(ctx context.Context, id string, snapshot []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.file(id).Write(snapshot)
}

func (s *FileStore) Get(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.file(id).Read()
	if errors.Is(err, checkpoint.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id)
	}
	return data, err
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.file(id).Delete()
}

// List ignores files that are not snapshots, including the temp files of
// interrupted writes.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	var ids []string
	for _, e := range entries {
		name, ok := strings.CutSuffix(e.Name(), snapshotExt)
		if !ok || e.IsDir() {
			continue
		}
		id, err := base64.RawURLEncoding.DecodeString(name)
		if err != nil {
			continue
		}
		ids = append(ids, string(id))
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *FileStore) Close() error { return nil }

var _ Store = (*FileStore)(nil)
