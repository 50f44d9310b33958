// Package catalog enumerates the input frames once at startup and fixes the
// processing order for the lifetime of the run.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skyfield-labs/framecast/internal/domain"
)

// Load scans dir non-recursively, keeps regular files with the given
// extension (case-insensitive, e.g. ".jpg"), and returns them sorted
// ascending by name with indices assigned in that order. An empty result is
// valid; an unreadable directory is a fatal load error.
func Load(dir, ext string) ([]domain.Frame, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", dir, err)
	}

	paths := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		if !strings.EqualFold(filepath.Ext(e.Name()), ext) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	frames := make([]domain.Frame, len(paths))
	for i, p := range paths {
		frames[i] = domain.Frame{Index: i, Path: p}
	}
	return frames, nil
}
