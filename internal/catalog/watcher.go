package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WaitForFrames blocks until a file with the given extension is created or
// written in dir, or until ctx is done. It is used when the capture process
// has not produced any frames yet at startup; the caller performs the single
// catalog load after it returns.
func WaitForFrames(ctx context.Context, dir, ext string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("catalog: watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("catalog: watch %s: %w", dir, err)
	}

	// A frame may have landed between the caller's scan and watcher.Add.
	if frames, err := Load(dir, ext); err == nil && len(frames) > 0 {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("catalog: watcher closed")
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if strings.EqualFold(filepath.Ext(event.Name), ext) {
				return nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("catalog: watcher closed")
			}
			return fmt.Errorf("catalog: watch %s: %w", dir, err)
		}
	}
}
