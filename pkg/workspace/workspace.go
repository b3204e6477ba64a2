package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/sdsc-ordes/debates-analytics/pkg/log"
)

// Workspace is a scoped temporary directory owned by exactly one task
// invocation. It is removed on every exit path via Cleanup; leftovers from
// crashed workers are reaped by CleanStale on the next worker start.
type Workspace struct {
	Dir string
}

// New creates a unique directory under baseDir.
func New(baseDir string) (*Workspace, error) {
	dir := filepath.Join(baseDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	log.Debug("Created workspace %s", dir)
	return &Workspace{Dir: dir}, nil
}

// Path returns the absolute path for a file inside the workspace.
func (w *Workspace) Path(name string) string {
	return filepath.Join(w.Dir, name)
}

// Cleanup removes the workspace directory and everything in it.
// Safe to call multiple times and from deferred contexts.
func (w *Workspace) Cleanup() {
	if w == nil || w.Dir == "" {
		return
	}
	if err := os.RemoveAll(w.Dir); err != nil {
		log.Warn("Failed to clean up workspace %s: %v", w.Dir, err)
		return
	}
	log.Debug("Cleaned up workspace %s", w.Dir)
}

// CleanStale removes workspace directories older than maxAge. A zero maxAge
// removes everything, which is what a freshly started worker wants since no
// other process shares its base directory.
func CleanStale(baseDir string, maxAge time.Duration) error {
	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read workspace base dir: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			continue
		}
		dir := filepath.Join(baseDir, entry.Name())
		if err := os.RemoveAll(dir); err != nil {
			log.Warn("Failed to remove stale workspace %s: %v", dir, err)
			continue
		}
		log.Info("Removed stale workspace %s", dir)
	}
	return nil
}
