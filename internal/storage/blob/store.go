package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrNotFound    = errors.New("blob not found")
	ErrExists      = errors.New("blob already exists")
	ErrTooLarge    = errors.New("blob too large")
	ErrInvalidName = errors.New("invalid blob name")
)

// Store is an append-only directory of files. Existing blobs are never
// overwritten or removed.
type Store struct {
	dir string
}

// NewStore creates the directory if needed and returns a store rooted at it.
func NewStore(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("blob dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string {
	return s.dir
}

// Put writes r under name. At most maxBytes are accepted (0 means unlimited).
// The blob becomes visible only once fully written and synced; a name that is
// already taken fails with ErrExists.
func (s *Store) Put(ctx context.Context, name string, r io.Reader, maxBytes int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if !ValidName(name) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	tmp, err := os.CreateTemp(s.dir, ".incoming-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}()

	src := r
	if maxBytes > 0 {
		src = io.LimitReader(r, maxBytes+1)
	}

	n, err := io.Copy(tmp, src)
	if err != nil {
		return 0, fmt.Errorf("write blob: %w", err)
	}
	if maxBytes > 0 && n > maxBytes {
		return 0, ErrTooLarge
	}
	if err := tmp.Sync(); err != nil {
		return 0, fmt.Errorf("sync blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close blob: %w", err)
	}

	// Link fails when the target exists, unlike Rename.
	if err := os.Link(tmpName, s.path(name)); err != nil {
		if errors.Is(err, os.ErrExist) {
			return 0, fmt.Errorf("%w: %s", ErrExists, name)
		}
		return 0, fmt.Errorf("link blob: %w", err)
	}

	if err := fsyncDir(s.dir); err != nil {
		return 0, fmt.Errorf("sync blob dir: %w", err)
	}

	return n, nil
}

// Open returns the blob for reading. The caller closes it.
func (s *Store) Open(name string) (*os.File, os.FileInfo, error) {
	if !ValidName(name) {
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, nil, fmt.Errorf("open blob: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat blob: %w", err)
	}
	if !info.Mode().IsRegular() {
		f.Close()
		return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	return f, info, nil
}

// Exists reports whether a blob with the given name is stored.
func (s *Store) Exists(name string) (bool, error) {
	if !ValidName(name) {
		return false, nil
	}

	info, err := os.Stat(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat blob: %w", err)
	}

	return info.Mode().IsRegular(), nil
}

// ValidName reports whether name is a plain file name inside the store.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	if strings.HasPrefix(name, ".") {
		return false
	}
	return !strings.ContainsAny(name, `/\`) && !strings.ContainsRune(name, 0)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
