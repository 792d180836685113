package document

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/tuanvumaihuynh/product-catalog/internal/model"
)

// ErrCorrupt is returned when the document on disk cannot be decoded.
var ErrCorrupt = errors.New("corrupt catalog document")

// DB owns one catalog document file.
//
// Every Update runs load, mutate and persist under an exclusive lock, and the
// file is replaced atomically, so readers see either the old or the new document.
// The decoded document is cached after the first load; DB assumes it is the only
// writer of the file.
type DB struct {
	path string

	mu  sync.RWMutex
	doc *Document

	writeFile func(path string, data []byte, perm os.FileMode) error
}

// Open prepares a DB for the document at path, creating an empty document if
// the file does not exist yet. The document itself is decoded lazily.
func Open(path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("document path is required")
	}

	db := &DB{
		path:      path,
		writeFile: writeFileAtomicDurable,
	}

	_, err := os.Stat(path)
	if err == nil {
		return db, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat document: %w", err)
	}

	data, err := marshal(Document{})
	if err != nil {
		return nil, fmt.Errorf("marshal empty document: %w", err)
	}
	if err := db.writeFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	return db, nil
}

// Path returns the location of the document file.
func (db *DB) Path() string {
	return db.path
}

// View calls fn with the current document. fn must not modify it.
func (db *DB) View(ctx context.Context, fn func(Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.RLock()
	doc := db.doc
	db.mu.RUnlock()

	if doc == nil {
		// First read: load under the write lock so concurrent readers decode once.
		db.mu.Lock()
		loaded, err := db.loadLocked()
		db.mu.Unlock()
		if err != nil {
			return err
		}
		doc = loaded
	}

	return fn(*doc)
}

// Check decodes the file on disk, bypassing the cache, to confirm the
// document is still readable.
func (db *DB) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.RLock()
	defer db.mu.RUnlock()

	_, err := readDocument(db.path)
	return err
}

// Update runs one read-modify-write transaction. fn receives a private copy of
// the document; when fn succeeds the copy is persisted and becomes current.
// When fn or the write fails, both the file and the cached document are left
// as they were.
func (db *DB) Update(ctx context.Context, fn func(*Document) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	current, err := db.loadLocked()
	if err != nil {
		return err
	}

	next := current.clone()
	if err := fn(&next); err != nil {
		return err
	}

	data, err := marshal(next)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}
	if err := db.writeFile(db.path, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}

	db.doc = &next
	return nil
}

func (db *DB) loadLocked() (*Document, error) {
	if db.doc != nil {
		return db.doc, nil
	}

	doc, err := readDocument(db.path)
	if err != nil {
		return nil, err
	}
	doc.normalize()

	db.doc = &doc
	return db.doc, nil
}

func readDocument(path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("open document: %w", err)
	}
	defer f.Close()

	var doc Document
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Document{}, fmt.Errorf("%w: trailing content", ErrCorrupt)
	}

	return doc, nil
}

func marshal(doc Document) ([]byte, error) {
	if doc.Products == nil {
		doc.Products = []model.Product{}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFileAtomicDurable(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, base+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true

	return fsyncDir(dir)
}

func fsyncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
