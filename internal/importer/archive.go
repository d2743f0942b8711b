package importer

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

const maxArchiveEntry = 64 << 20

var fixtureFiles = map[string]bool{
	FileUsers:      true,
	FileCategories: true,
	FileGenres:     true,
	FileGenreTitle: true,
	FileTitles:     true,
	FileReviews:    true,
	FileComments:   true,
}

// ArchiveSource serves fixtures from a .tar.gz bundle read into memory.
// Entries must sit at the archive root and carry a fixture file name.
type ArchiveSource struct {
	// SHA256 is the hex digest of the compressed bundle.
	SHA256 string

	files map[string][]byte
}

// ReadArchive validates and loads the bundle. name is only used to check the
// extension.
func ReadArchive(name string, r io.Reader) (*ArchiveSource, error) {
	lower := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return nil, errors.New("zip bundles are not supported")
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
	default:
		return nil, errors.New("unsupported bundle format")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty bundle data")
	}
	hash := sha256.Sum256(data)

	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("invalid tar.gz bundle")
	}
	defer gr.Close()

	src := &ArchiveSource{SHA256: hex.EncodeToString(hash[:]), files: map[string][]byte{}}
	tr := tar.NewReader(gr)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errors.New("invalid tar.gz bundle")
		}
		if header.FileInfo().IsDir() {
			continue
		}
		if !header.FileInfo().Mode().IsRegular() {
			return nil, errors.New("bundle contains unsupported entries")
		}
		base, err := bundleEntryName(header.Name)
		if err != nil {
			return nil, err
		}
		if _, dup := src.files[base]; dup {
			return nil, fmt.Errorf("duplicate bundle entry: %s", base)
		}

		body, err := io.ReadAll(io.LimitReader(tr, maxArchiveEntry+1))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", base, err)
		}
		if len(body) > maxArchiveEntry {
			return nil, fmt.Errorf("bundle entry %s is too large", base)
		}
		src.files[base] = body
	}

	if len(src.files) == 0 {
		return nil, errors.New("bundle has no fixtures")
	}
	return src, nil
}

func bundleEntryName(name string) (string, error) {
	clean := path.Clean(strings.TrimPrefix(name, "./"))
	if clean == "." {
		return "", errors.New("invalid bundle entry")
	}
	if path.Base(clean) != clean || strings.Contains(clean, `\`) {
		return "", errors.New("bundle must not contain directories")
	}
	if !fixtureFiles[clean] {
		return "", fmt.Errorf("unexpected bundle entry: %s", clean)
	}
	return clean, nil
}

func (s *ArchiveSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	body, ok := s.files[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrMissing)
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}
