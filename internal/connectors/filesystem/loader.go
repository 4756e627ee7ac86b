package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
	"github.com/custodia-labs/kimchi/internal/normalisers/plaintext"
)

// ErrExcluded is returned by LoadFile for a path the exclusion rules reject.
var ErrExcluded = domain.ErrExcluded

// Ensure Loader implements the interface.
var _ driven.DocumentLoader = (*Loader)(nil)

// Loader reads documents from a local snapshot.
// A Loader holds no per-walk state, so one instance can serve many walks.
type Loader struct {
	opts    Options
	exclude *excluder
	decoder *plaintext.Decoder
}

// New creates a loader.
func New(opts Options) (*Loader, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	dec, err := plaintext.NewDecoder(opts.FallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return &Loader{
		opts:    opts,
		exclude: newExcluder(opts),
		decoder: dec,
	}, nil
}

// Load walks root in lexical order. Documents and errors are streamed; both
// channels are closed when the walk ends.
func (l *Loader) Load(ctx context.Context, root string) (<-chan domain.Document, <-chan error) {
	docs := make(chan domain.Document)
	errs := make(chan error)

	go func() {
		defer close(docs)
		defer close(errs)

		if err := checkRoot(root); err != nil {
			sendErr(ctx, errs, err)
			return
		}

		rules := newIgnoreRules(l.opts.UseGitignore)
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if p == root {
				if err != nil {
					return err
				}
				rules.load(root, "")
				return nil
			}

			rel, relErr := relPath(root, p)
			if relErr != nil {
				return relErr
			}

			if err != nil {
				if !sendErr(ctx, errs, domain.NewSkipError(rel, domain.SkipUnreadable, err)) {
					return ctx.Err()
				}
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			if d.Type()&fs.ModeSymlink != 0 {
				if !sendErr(ctx, errs, domain.NewSkipError(rel, domain.SkipSymlink, nil)) {
					return ctx.Err()
				}
				return nil
			}

			if d.IsDir() {
				if ok, why := l.exclude.dir(rel); ok {
					logger.Debug("exclude %s/ (%s)", rel, why)
					return filepath.SkipDir
				}
				if rules.matches(rel, true) {
					logger.Debug("exclude %s/ (gitignore)", rel)
					return filepath.SkipDir
				}
				rules.load(p, rel)
				return nil
			}

			if !d.Type().IsRegular() {
				logger.Debug("exclude %s (not a regular file)", rel)
				return nil
			}
			if ok, why := l.exclude.file(rel); ok {
				logger.Debug("exclude %s (%s)", rel, why)
				return nil
			}
			if rules.matches(rel, false) {
				logger.Debug("exclude %s (gitignore)", rel)
				return nil
			}

			doc, err := l.read(p, rel)
			if err != nil {
				if !sendErr(ctx, errs, err) {
					return ctx.Err()
				}
				return nil
			}

			select {
			case docs <- doc:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		if walkErr != nil {
			sendErr(ctx, errs, walkErr)
		}
	}()

	return docs, errs
}

// LoadFile loads a single file relative to root with the same rules as Load.
// Excluded paths return ErrExcluded; data problems return a *domain.SkipError.
func (l *Loader) LoadFile(_ context.Context, root, rel string) (domain.Document, error) {
	if err := checkRoot(root); err != nil {
		return domain.Document{}, err
	}
	rel = path.Clean(filepath.ToSlash(rel))
	if rel == "." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return domain.Document{}, fmt.Errorf("%w: path %q is outside the snapshot", domain.ErrInvalidInput, rel)
	}

	if l.exclude.underExcludedDir(rel) {
		return domain.Document{}, ErrExcluded
	}
	if ok, _ := l.exclude.file(rel); ok {
		return domain.Document{}, ErrExcluded
	}

	rules := newIgnoreRules(l.opts.UseGitignore)
	rules.load(root, "")
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		dir := strings.Join(parts[:i], "/")
		if rules.matches(dir, true) {
			return domain.Document{}, ErrExcluded
		}
		rules.load(filepath.Join(root, filepath.FromSlash(dir)), dir)
	}
	if rules.matches(rel, false) {
		return domain.Document{}, ErrExcluded
	}

	abs := filepath.Join(root, filepath.FromSlash(rel))
	info, err := os.Lstat(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.Document{}, fmt.Errorf("%s: %w", rel, domain.ErrNotFound)
		}
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipUnreadable, err)
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipSymlink, nil)
	}
	if !info.Mode().IsRegular() {
		return domain.Document{}, ErrExcluded
	}
	return l.read(abs, rel)
}

// read loads and decodes one regular file.
func (l *Loader) read(abs, rel string) (domain.Document, error) {
	info, err := os.Lstat(abs)
	if err != nil {
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipUnreadable, err)
	}
	if info.Size() > l.opts.MaxFileSize {
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipTooLarge,
			fmt.Errorf("%d bytes exceeds limit of %d", info.Size(), l.opts.MaxFileSize))
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipUnreadable, err)
	}

	decoded, err := l.decoder.Decode(data)
	switch {
	case errors.Is(err, plaintext.ErrBinary):
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipBinary, nil)
	case err != nil:
		return domain.Document{}, domain.NewSkipError(rel, domain.SkipUndecodable, err)
	}

	return domain.Document{
		Path:       rel,
		Extension:  strings.ToLower(path.Ext(rel)),
		Text:       decoded.Text,
		SizeBytes:  info.Size(),
		CreatedAt:  createdAt(info),
		ModifiedAt: info.ModTime(),
		Encoding:   decoded.Encoding,
	}, nil
}

// checkRoot verifies the snapshot root is an existing directory.
func checkRoot(root string) error {
	if root == "" {
		return fmt.Errorf("%w: repository path is required", domain.ErrInvalidInput)
	}
	info, err := os.Stat(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: directory does not exist: %s", domain.ErrInvalidInput, root)
		}
		return fmt.Errorf("%w: cannot access %s: %v", domain.ErrInvalidInput, root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: not a directory: %s", domain.ErrInvalidInput, root)
	}
	return nil
}

func relPath(root, p string) (string, error) {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// sendErr delivers err unless ctx is done. Returns false if ctx ended first.
func sendErr(ctx context.Context, errs chan<- error, err error) bool {
	select {
	case errs <- err:
		return true
	case <-ctx.Done():
		return false
	}
}
