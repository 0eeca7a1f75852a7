package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"k8s.io/klog/v2"

	"github.com/calvinalkan/fcatalogd/internal/fsutil"
)

var manifestFS fsutil.FS = fsutil.NewReal()

// ManifestEntry describes one catalog for operational visibility only.
type ManifestEntry struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	N         int       `json:"n"`
	CreatedAt time.Time `json:"created_at"`
}

type manifestFile struct {
	Catalogs []ManifestEntry `json:"catalogs"`
}

// manifest maintains a best-effort catalogs.json listing of every catalog
// the registry has opened. It is never consulted for correctness and is not
// read back at startup: each process starts with an empty list and rewrites
// the file with only the catalogs it has opened. It exists solely so
// `fcatalogctl list-catalogs` has something to read without dialing the
// server.
type manifest struct {
	mu      sync.Mutex
	rootDir string
	writer  *fsutil.AtomicWriter
	entries []ManifestEntry
}

func newManifest(rootDir string) *manifest {
	return &manifest{
		rootDir: rootDir,
		writer:  fsutil.NewAtomicWriter(),
	}
}

func (m *manifest) recordOpen(name, path string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, ManifestEntry{
		Name:      name,
		Path:      path,
		N:         n,
		CreatedAt: time.Now().UTC(),
	})

	data, err := json.MarshalIndent(manifestFile{Catalogs: m.entries}, "", "  ")
	if err != nil {
		klog.Warningf("registry: marshal manifest: %v", err)

		return
	}

	manifestPath := filepath.Join(m.rootDir, "catalogs.json")
	if err := m.writer.WriteFile(manifestPath, data); err != nil {
		klog.Warningf("registry: write manifest: %v", err)
	}
}

// ReadManifest reads the best-effort catalogs.json under rootDir, if
// present. Used only by fcatalogctl's list-catalogs subcommand.
func ReadManifest(rootDir string) ([]ManifestEntry, error) {
	data, err := manifestFS.ReadFile(filepath.Join(rootDir, "catalogs.json"))
	if os.IsNotExist(err) {
		return nil, nil
	}

	if err != nil {
		return nil, err
	}

	var mf manifestFile

	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, err
	}

	return mf.Catalogs, nil
}
