// Package artifact is the durable hand-off channel between pipeline stages.
// Every artifact is addressed by (stage, name) where name is typically a
// date key; the content schema belongs to the producing and consuming
// stages, not to this package.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Repository stores stage outputs under root/<stage>/<name>.
type Repository struct {
	root string
}

// NewRepository anchors the repository at the given directory.
func NewRepository(root string) *Repository {
	return &Repository{root: root}
}

// Path returns the file path an artifact would occupy.
func (r *Repository) Path(stage, name string) string {
	return filepath.Join(r.root, stage, name)
}

// Exists reports whether the artifact has been produced.
func (r *Repository) Exists(stage, name string) bool {
	info, err := os.Stat(r.Path(stage, name))
	return err == nil && !info.IsDir()
}

// Size returns the artifact's byte size, or 0 when it is absent.
func (r *Repository) Size(stage, name string) int64 {
	info, err := os.Stat(r.Path(stage, name))
	if err != nil || info.IsDir() {
		return 0
	}
	return info.Size()
}

// Read returns the artifact bytes.
func (r *Repository) Read(stage, name string) ([]byte, error) {
	data, err := os.ReadFile(r.Path(stage, name))
	if err != nil {
		return nil, fmt.Errorf("read artifact %s/%s: %w", stage, name, err)
	}
	return data, nil
}

// Write stores the artifact, creating the stage directory as needed. A
// second write for the same key overwrites the first; stages are expected
// to be idempotent re-runs, not history accumulators.
func (r *Repository) Write(stage, name string, data []byte) error {
	dir := filepath.Join(r.root, stage)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir %s: %w", stage, err)
	}
	if err := os.WriteFile(r.Path(stage, name), data, 0o644); err != nil {
		return fmt.Errorf("write artifact %s/%s: %w", stage, name, err)
	}
	return nil
}

// List returns the names of a stage's artifacts starting with prefix,
// sorted lexically. The scan stage writes one batch per run hour, so its
// consumers enumerate a date's batches this way.
func (r *Repository) List(stage, prefix string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(r.root, stage))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list artifacts %s: %w", stage, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
