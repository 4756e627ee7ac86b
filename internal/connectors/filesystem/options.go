package filesystem

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// Options controls which files a Loader reads.
type Options struct {
	// ExcludeDirs are directory names skipped at any depth.
	ExcludeDirs []string

	// ExcludeExtensions are extensions (with or without dot) never loaded.
	ExcludeExtensions []string

	// ExcludeGlobs are doublestar patterns matched against the slash
	// separated relative path and against the base name.
	ExcludeGlobs []string

	// UseGitignore applies .gitignore files found in the snapshot.
	UseGitignore bool

	// MaxFileSize is the largest file loaded, in bytes.
	MaxFileSize int64

	// FallbackEncoding decodes non-UTF-8 files without a byte-order mark.
	FallbackEncoding string
}

// OptionsFromConfig maps repository configuration onto loader options.
func OptionsFromConfig(cfg domain.RepoConfig) Options {
	return Options{
		ExcludeDirs:       cfg.ExcludeDirs,
		ExcludeExtensions: cfg.ExcludeExtensions,
		ExcludeGlobs:      cfg.ExcludeGlobs,
		UseGitignore:      cfg.UseGitignore,
		MaxFileSize:       cfg.MaxFileSize,
		FallbackEncoding:  cfg.FallbackEncoding,
	}
}

// DefaultOptions returns options built from domain defaults.
func DefaultOptions() Options {
	return OptionsFromConfig(domain.DefaultConfig().Repo)
}

// Validate checks option values.
func (o Options) Validate() error {
	if o.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max file size must be positive", domain.ErrInvalidInput)
	}
	for _, g := range o.ExcludeGlobs {
		if !doublestar.ValidatePattern(g) {
			return fmt.Errorf("%w: invalid exclude glob %q", domain.ErrInvalidInput, g)
		}
	}
	return nil
}

func normaliseExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
