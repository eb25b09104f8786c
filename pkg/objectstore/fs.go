package objectstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cuemby/sentryd/pkg/apierr"
)

// defaultFileMode restricts newly-created objects to owner-only read/write,
// since a backup artifact may carry key material or server configuration.
const defaultFileMode = 0o600

// FsStore stores objects as files directly under a root directory. Keys
// must not start with "/" and are joined verbatim onto the root, so callers
// must not pass path-traversal input (backup file names are produced only
// by pkg/backup's own naming scheme).
type FsStore struct {
	root string
	mode os.FileMode
}

// NewFsStore returns a Store rooted at dir, creating it if necessary.
func NewFsStore(dir string) (*FsStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, apierr.Wrap(apierr.CodeCannotCreateSink, "creating object store directory", err)
	}
	return &FsStore{root: dir, mode: defaultFileMode}, nil
}

func (s *FsStore) path(key string) (string, error) {
	if strings.HasPrefix(key, "/") {
		return "", fmt.Errorf("object key must not start with '/': %q", key)
	}
	return filepath.Join(s.root, key), nil
}

type fsWriter struct {
	f *os.File
}

func (w *fsWriter) Write(p []byte) (int, error) { return w.f.Write(p) }
func (w *fsWriter) Close() error                { return w.f.Close() }

func (s *FsStore) Writer(_ context.Context, key string, overwrite bool) (WriteCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeCannotCreateSink, "resolving object key", err)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}

	f, err := os.OpenFile(path, flags, s.mode)
	if err != nil {
		if !overwrite && os.IsExist(err) {
			return nil, apierr.Wrap(apierr.CodeConflict, fmt.Sprintf("object %q already exists", key), err)
		}
		return nil, apierr.Wrap(apierr.CodeCannotCreateSink, "opening object for writing", err)
	}

	return &fsWriter{f: f}, nil
}

func (s *FsStore) Reader(_ context.Context, key string) (ReadCloser, error) {
	path, err := s.path(key)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeUnreadable, "resolving object key", err)
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apierr.Wrap(apierr.CodeNotFound, fmt.Sprintf("object %q not found", key), err)
		}
		return nil, apierr.Wrap(apierr.CodeUnreadable, "opening object for reading", err)
	}
	return f, nil
}

func (s *FsStore) ListAll(_ context.Context) ([]string, error) {
	return s.listMatching(func(string) bool { return true })
}

func (s *FsStore) ListAllAfter(_ context.Context, prefix string) ([]string, error) {
	return s.listMatching(func(name string) bool { return name > prefix })
}

func (s *FsStore) Find(_ context.Context, prefix string) ([]string, error) {
	return s.listMatching(func(name string) bool { return strings.HasPrefix(name, prefix) })
}

func (s *FsStore) listMatching(keep func(string) bool) ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, apierr.Wrap(apierr.CodeUnreadable, "reading object store directory", err)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if keep(entry.Name()) {
			keys = append(keys, entry.Name())
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FsStore) Metadata(_ context.Context, key string) (Metadata, error) {
	path, err := s.path(key)
	if err != nil {
		return Metadata{}, apierr.Wrap(apierr.CodeUnreadable, "resolving object key", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, apierr.Wrap(apierr.CodeNotFound, fmt.Sprintf("object %q not found", key), err)
		}
		return Metadata{}, apierr.Wrap(apierr.CodeUnreadable, "statting object", err)
	}

	return Metadata{
		Key:       key,
		Size:      uint64(info.Size()),
		CreatedAt: info.ModTime().UTC(),
	}, nil
}

func (s *FsStore) Delete(_ context.Context, key string) error {
	path, err := s.path(key)
	if err != nil {
		return apierr.Wrap(apierr.CodeUnreadable, "resolving object key", err)
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return apierr.Wrap(apierr.CodeNotFound, fmt.Sprintf("object %q not found", key), err)
		}
		return apierr.Wrap(apierr.CodeUnreadable, "deleting object", err)
	}
	return nil
}

var _ Store = (*FsStore)(nil)
