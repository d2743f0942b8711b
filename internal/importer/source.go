package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	"github.com/yamdb/apiserver/internal/storage"
)

// ErrMissing is returned by a Source when the named file doesn't exist.
var ErrMissing = errors.New("fixture file missing")

// Source opens fixture files by name, e.g. "users.csv".
type Source interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// DirSource reads fixtures from a local directory.
type DirSource struct {
	Dir string
}

func (s DirSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	f, err := os.Open(filepath.Join(s.Dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", name, ErrMissing)
	}
	return f, err
}

// ObjectReader is the subset of *storage.Storage used to fetch fixtures.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// BucketSource reads fixtures from object storage under Prefix.
type BucketSource struct {
	Objects ObjectReader
	Prefix  string
}

func (s BucketSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	key := path.Join(s.Prefix, name)
	r, err := s.Objects.Get(ctx, key)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return nil, fmt.Errorf("%s: %w", key, ErrMissing)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return r, nil
}
