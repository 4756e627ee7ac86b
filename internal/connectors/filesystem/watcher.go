package filesystem

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure Watcher implements the interface.
var _ driven.Watcher = (*Watcher)(nil)

// changeBuffer is the capacity of the change channel.
const changeBuffer = 100

// Watcher reports file changes under a snapshot root using fsnotify.
// Directories created while watching are added to the watch set.
type Watcher struct {
	exclude *excluder

	mu      sync.Mutex
	root    string
	watcher *fsnotify.Watcher
}

// NewWatcher creates a watcher that honours the loader's exclusion options.
func NewWatcher(opts Options) *Watcher {
	return &Watcher{exclude: newExcluder(opts)}
}

// Watch starts watching root. The returned channel is closed when ctx is
// cancelled or Close is called.
func (w *Watcher) Watch(ctx context.Context, root string) (<-chan domain.FileChange, error) {
	if err := checkRoot(root); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		_ = fsw.Close()
		return nil, fmt.Errorf("%w: watcher already running", domain.ErrInvalidInput)
	}
	w.root = root
	w.watcher = fsw
	w.mu.Unlock()

	if err := w.addTree(root); err != nil {
		_ = w.Close()
		return nil, err
	}

	changes := make(chan domain.FileChange, changeBuffer)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				_ = w.Close()
				return
			case event, ok := <-fsw.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) {
					if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
						if err := w.addTree(event.Name); err != nil {
							logger.Warn("watch %s: %v", event.Name, err)
						}
					}
				}
				change := w.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					_ = w.Close()
					return
				}
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				logger.Warn("watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher == nil {
		return nil
	}
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

// addTree watches dir and every non-excluded directory below it.
func (w *Watcher) addTree(dir string) error {
	w.mu.Lock()
	fsw, root := w.watcher, w.root
	w.mu.Unlock()
	if fsw == nil {
		return nil
	}

	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root {
			rel, relErr := relPath(root, p)
			if relErr != nil {
				return relErr
			}
			if isHidden(rel) {
				return filepath.SkipDir
			}
			if ok, _ := w.exclude.dir(rel); ok {
				return filepath.SkipDir
			}
		}
		if err := fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
}

// handleFsEvent maps an fsnotify event to a change, or nil if the event is
// not interesting (directories, hidden or excluded paths, chmod).
func (w *Watcher) handleFsEvent(event fsnotify.Event) *domain.FileChange {
	w.mu.Lock()
	root := w.root
	w.mu.Unlock()

	rel, err := relPath(root, event.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "../") {
		return nil
	}
	if isHidden(rel) {
		return nil
	}
	if w.exclude.underExcludedDir(rel) {
		return nil
	}
	if ok, _ := w.exclude.file(rel); ok {
		return nil
	}

	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return &domain.FileChange{Type: domain.ChangeDeleted, Path: rel}
	}

	info, err := os.Lstat(event.Name)
	if err != nil || info.IsDir() {
		return nil
	}

	switch {
	case event.Has(fsnotify.Create):
		return &domain.FileChange{Type: domain.ChangeCreated, Path: rel}
	case event.Has(fsnotify.Write):
		return &domain.FileChange{Type: domain.ChangeUpdated, Path: rel}
	default:
		return nil
	}
}

// isHidden reports whether any element of a slash-separated path starts
// with a dot. Editors write swap and lock files there.
func isHidden(rel string) bool {
	for _, part := range strings.Split(rel, "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
