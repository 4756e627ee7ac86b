package filesystem

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	gitignore "github.com/sabhiram/go-gitignore"

	"github.com/custodia-labs/kimchi/internal/logger"
)

// gitignoreFile is the per-directory ignore file name.
const gitignoreFile = ".gitignore"

// scopedIgnore is a compiled .gitignore that applies below dir.
type scopedIgnore struct {
	dir     string
	matcher *gitignore.GitIgnore
}

// ignoreRules holds the .gitignore files seen on the way down a walk.
// Patterns apply only to paths under the directory that declared them.
type ignoreRules struct {
	enabled bool
	scopes  []scopedIgnore
}

func newIgnoreRules(enabled bool) *ignoreRules {
	return &ignoreRules{enabled: enabled}
}

// load compiles absDir/.gitignore, if present, scoped to relDir.
func (r *ignoreRules) load(absDir, relDir string) {
	if !r.enabled {
		return
	}
	p := filepath.Join(absDir, gitignoreFile)
	if _, err := os.Stat(p); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("cannot read %s: %v", p, err)
		}
		return
	}
	m, err := gitignore.CompileIgnoreFile(p)
	if err != nil {
		logger.Warn("cannot parse %s: %v", p, err)
		return
	}
	r.scopes = append(r.scopes, scopedIgnore{dir: relDir, matcher: m})
}

// matches reports whether rel is ignored by any applicable .gitignore.
func (r *ignoreRules) matches(rel string, isDir bool) bool {
	for _, s := range r.scopes {
		sub := rel
		if s.dir != "" {
			if !strings.HasPrefix(rel, s.dir+"/") {
				continue
			}
			sub = strings.TrimPrefix(rel, s.dir+"/")
		}
		if s.matcher.MatchesPath(sub) {
			return true
		}
		if isDir && s.matcher.MatchesPath(sub+"/") {
			return true
		}
	}
	return false
}

// excluder applies the static exclusion options.
type excluder struct {
	dirs  map[string]struct{}
	exts  map[string]struct{}
	globs []string
}

func newExcluder(opts Options) *excluder {
	e := &excluder{
		dirs:  make(map[string]struct{}, len(opts.ExcludeDirs)),
		exts:  make(map[string]struct{}, len(opts.ExcludeExtensions)),
		globs: opts.ExcludeGlobs,
	}
	for _, d := range opts.ExcludeDirs {
		e.dirs[strings.Trim(d, "/")] = struct{}{}
	}
	for _, x := range opts.ExcludeExtensions {
		e.exts[normaliseExt(x)] = struct{}{}
	}
	return e
}

// dir reports whether a directory is excluded, and why.
func (e *excluder) dir(rel string) (bool, string) {
	if _, ok := e.dirs[path.Base(rel)]; ok {
		return true, "excluded directory"
	}
	return e.glob(rel)
}

// file reports whether a file is excluded, and why.
func (e *excluder) file(rel string) (bool, string) {
	if _, ok := e.exts[strings.ToLower(path.Ext(rel))]; ok {
		return true, "excluded extension"
	}
	return e.glob(rel)
}

// underExcludedDir reports whether any parent directory of rel is excluded.
func (e *excluder) underExcludedDir(rel string) bool {
	parts := strings.Split(rel, "/")
	for i := 1; i < len(parts); i++ {
		if ok, _ := e.dir(strings.Join(parts[:i], "/")); ok {
			return true
		}
	}
	return false
}

func (e *excluder) glob(rel string) (bool, string) {
	base := path.Base(rel)
	for _, g := range e.globs {
		if ok, _ := doublestar.Match(g, rel); ok {
			return true, "glob " + g
		}
		if ok, _ := doublestar.Match(g, base); ok {
			return true, "glob " + g
		}
	}
	return false, ""
}
