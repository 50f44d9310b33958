// Package journal writes the append-only outcome log. One line per event in
// the form "<label>: <details>"; the file is truncated at process start so a
// run can be reconstructed from the log alone.
package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/skyfield-labs/framecast/internal/domain"
)

// Journal is an append-only outcome log backed by a single file. Entries are
// synced on every append so a crash never loses a recorded outcome.
type Journal struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates (or truncates) the journal file at path. Parent directories
// are created as needed.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{f: f}, nil
}

// Append records one outcome line. format/args form the details portion.
func (j *Journal) Append(kind domain.OutcomeKind, format string, args ...interface{}) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := fmt.Fprintf(j.f, "%s: %s\n", kind, fmt.Sprintf(format, args...)); err != nil {
		return err
	}
	return j.f.Sync()
}

// Close closes the underlying file.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.f.Close()
}
