package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// watchDebounce is how long Watch keeps collecting changes after the first
// one before re-indexing, so that editor save bursts become one pass.
const watchDebounce = 300 * time.Millisecond

// Root returns the snapshot root, materializing the source on first use.
func (s *IngestService) Root(ctx context.Context) (string, error) {
	return s.resolveRoot(ctx)
}

// Watch re-indexes files as they change under the snapshot root until ctx is
// cancelled. Changes are coalesced per path; each pass is reported to report
// when it is non-nil. Fatal errors stop the watch.
func (s *IngestService) Watch(ctx context.Context, w driven.Watcher, report func(*domain.RunSummary)) error {
	root, err := s.resolveRoot(ctx)
	if err != nil {
		return err
	}
	changes, err := w.Watch(ctx, root)
	if err != nil {
		return err
	}
	defer w.Close()

	logger.Info("Watching %s for changes", root)
	for {
		pending, ok := collectChanges(ctx, changes, watchDebounce)
		if len(pending) > 0 {
			summary, err := s.Reindex(ctx, pending)
			if report != nil {
				report(summary)
			}
			if err != nil {
				if domain.Classify(err).Fatal() {
					return ignoreCancel(err)
				}
				logger.Warn("re-index failed: %v", err)
			}
		}
		if !ok {
			return nil
		}
	}
}

// collectChanges blocks for the first change, then gathers more until the
// window passes. It returns the distinct paths in order and false once the
// channel is closed or ctx is done.
func collectChanges(ctx context.Context, changes <-chan domain.FileChange, window time.Duration) ([]string, bool) {
	seen := make(map[string]domain.ChangeType)

	select {
	case <-ctx.Done():
		return nil, false
	case c, ok := <-changes:
		if !ok {
			return nil, false
		}
		seen[c.Path] = c.Type
	}

	timer := time.NewTimer(window)
	defer timer.Stop()
	open := true
collect:
	for {
		select {
		case <-ctx.Done():
			open = false
			break collect
		case c, ok := <-changes:
			if !ok {
				open = false
				break collect
			}
			seen[c.Path] = c.Type
		case <-timer.C:
			break collect
		}
	}

	paths := make([]string, 0, len(seen))
	for p, t := range seen {
		logger.Debug("%s %s", t, p)
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths, open
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
