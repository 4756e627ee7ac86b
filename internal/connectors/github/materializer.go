package github

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure Materializer implements the interface.
var _ driven.SourceMaterializer = (*Materializer)(nil)

// Materializer downloads a repository snapshot to the local file system.
type Materializer struct {
	cfg    domain.GitHubConfig
	client *Client
}

// New creates a materializer. A nil client is replaced by one using cfg.Token.
func New(cfg domain.GitHubConfig, client *Client) *Materializer {
	if client == nil {
		client = NewClient(context.Background(), cfg.Token)
	}
	return &Materializer{cfg: cfg, client: client}
}

// Describe names the source as owner/repo@branch.
func (m *Materializer) Describe() string {
	return fmt.Sprintf("%s/%s@%s", m.cfg.Owner, m.cfg.Repo, m.cfg.Branch)
}

// Materialize returns the snapshot root, downloading it unless a snapshot
// already exists and no refresh was forced. Failed downloads are retried up
// to MaxRetries attempts in total, RetryDelay apart.
func (m *Materializer) Materialize(ctx context.Context) (string, error) {
	if !m.cfg.IsConfigured() {
		return "", fmt.Errorf("%w: github owner and repo are required", domain.ErrInvalidInput)
	}
	if m.cfg.Branch == "" {
		return "", fmt.Errorf("%w: github branch is required", domain.ErrInvalidInput)
	}

	dest := m.cfg.LocalPath()
	if info, err := os.Stat(dest); err == nil && info.IsDir() {
		if !m.cfg.Force {
			logger.Info("Snapshot of %s already exists at %s, reusing it", m.Describe(), dest)
			return dest, nil
		}
		logger.Info("Removing existing snapshot at %s", dest)
	}

	attempts := max(1, m.cfg.MaxRetries)
	var err error
	for attempt := 1; ; attempt++ {
		logger.Debug("Fetching %s (attempt %d of %d)", m.Describe(), attempt, attempts)
		if err = m.fetch(ctx, dest); err == nil {
			logger.Info("Snapshot of %s written to %s", m.Describe(), dest)
			return dest, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !domain.IsTransient(err) || attempt >= attempts {
			return "", fmt.Errorf("fetch %s: giving up after %d attempts: %w", m.Describe(), attempt, err)
		}

		delay := m.cfg.RetryDelay
		if after, ok := domain.RetryAfter(err); ok {
			delay = after
		}
		logger.Warn("Attempt %d to fetch %s failed: %v. Retrying in %s", attempt, m.Describe(), err, delay)
		if err := sleep(ctx, delay); err != nil {
			return "", err
		}
	}
}

// fetch downloads and extracts into a temporary sibling of dest, then swaps
// it into place so that dest only ever holds a complete snapshot.
func (m *Materializer) fetch(ctx context.Context, dest string) error {
	link, err := m.client.ArchiveLink(ctx, m.cfg.Owner, m.cfg.Repo, m.cfg.Branch)
	if err != nil {
		return err
	}
	body, err := m.client.Download(ctx, link)
	if err != nil {
		return err
	}
	defer body.Close()

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("%w: create %s: %v", domain.ErrInvalidInput, parent, err)
	}
	tmp, err := os.MkdirTemp(parent, "."+m.cfg.Repo+"-*")
	if err != nil {
		return fmt.Errorf("create staging directory: %w", err)
	}
	defer os.RemoveAll(tmp)

	files, err := extract(body, tmp)
	if err != nil {
		return err
	}
	logger.Debug("Extracted %d files from %s", files, m.Describe())

	if err := os.RemoveAll(dest); err != nil {
		return fmt.Errorf("remove old snapshot: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return fmt.Errorf("install snapshot: %w", err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
