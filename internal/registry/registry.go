// Package registry maps catalog names to open [catalogstore.CatalogStore]
// instances, opening each on first reference and sharing it across sessions
// for the remaining process lifetime.
package registry

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/calvinalkan/fcatalogd/internal/catalogstore"
)

// ErrInvalidName reports a catalog name that fails the sanitization rule:
// only ASCII letters, digits, underscore, and hyphen, 1 to 64 characters.
var ErrInvalidName = errors.New("registry: invalid catalog name")

var nameRe = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)

// ValidateName reports whether name satisfies the catalog-name sanitization
// rule. It rejects path separators, leading dots, and anything else outside
// the allowed character set — no name can ever escape the configured root
// directory.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	return nil
}

// Registry opens and shares CatalogStores by name under one root directory.
//
// Concurrent Choose calls for the same name are serialized by mu and yield
// the same *catalogstore.CatalogStore; store operations themselves are
// serialized independently, inside the store.
type Registry struct {
	mu        sync.Mutex
	rootDir   string
	n         int
	batchSize int
	stores    map[string]*catalogstore.CatalogStore
	manifest  *manifest
}

// New returns a Registry rooted at rootDir. n is the signature width used
// when a referenced catalog does not yet exist on disk. batchSize overrides
// each opened store's auto-commit threshold; a value <= 0 selects
// [catalogstore.DefaultBatchSize].
func New(rootDir string, n int, batchSize int) *Registry {
	return &Registry{
		rootDir:   rootDir,
		n:         n,
		batchSize: batchSize,
		stores:    make(map[string]*catalogstore.CatalogStore),
		manifest:  newManifest(rootDir),
	}
}

// Choose resolves name to its CatalogStore, opening it on first reference.
// Concurrent callers requesting the same name block on each other and
// receive the same store instance.
func (r *Registry) Choose(ctx context.Context, name string) (*catalogstore.CatalogStore, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if store, ok := r.stores[name]; ok {
		return store, nil
	}

	path := r.pathForName(name)

	store, err := catalogstore.Open(ctx, path, r.n, r.batchSize)
	if err != nil {
		return nil, fmt.Errorf("registry: open catalog %q: %w", name, err)
	}

	r.stores[name] = store

	r.manifest.recordOpen(name, path, store.N())

	return store, nil
}

// pathForName derives a catalog's backing file path as a pure function of
// its (already-validated) name.
func (r *Registry) pathForName(name string) string {
	return filepath.Join(r.rootDir, name+".sqlite3")
}

// CloseAll closes every open store, collecting and joining any close errors.
// Called by cmd/fcatalogd on shutdown.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error

	for name, store := range r.stores {
		if err := store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("registry: close %q: %w", name, err))
		}
	}

	return errors.Join(errs...)
}
