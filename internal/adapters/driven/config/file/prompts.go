package file

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure PromptStore implements the interface.
var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves the answer prompts from <dir>/<name>.txt. Missing files
// are seeded with the built-in defaults on first use; a file that is
// missing, unreadable or has the wrong number of %s verbs falls back to the
// default. Loaded prompts are cached until Reload.
type PromptStore struct {
	dir string

	seedOnce sync.Once
	seedErr  error

	mu    sync.Mutex
	cache map[string]string
}

//nolint:lll // prompt text
var defaultPrompts = map[string]string{
	driven.PromptAnswerSystem: `You answer questions about a source code repository using only the passages provided.
Cite every claim with the passage reference in square brackets, for example [internal/server/http.go#3].
If the passages do not contain the answer, say so plainly instead of guessing.`,

	driven.PromptAnswerUser: `Passages:

%s

Question: %s

Answer:`,
}

// verbs is the number of %s verbs each prompt must contain.
var verbs = map[string]int{
	driven.PromptAnswerSystem: 0,
	driven.PromptAnswerUser:   2,
}

const promptReadme = "# kimchi prompts\n\n" +
	"Prompts used by `kimchi ask`, `kimchi eval` and the MCP `ask` tool.\n\n" +
	"- `answer_system.txt`: system message for answer synthesis\n" +
	"- `answer_user.txt`: user message; the first `%s` receives the numbered\n" +
	"  passages with their path#sequence references, the second the question\n\n" +
	"A file with the wrong number of `%s` verbs is ignored and the built-in\n" +
	"prompt is used instead. Delete a file to restore its default.\n"

// NewPromptStore creates a prompt store rooted at dir, defaulting to
// ~/.kimchi/prompts. Nothing touches the disk until the first Load.
func NewPromptStore(dir string) (*PromptStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".kimchi", "prompts")
	}
	return &PromptStore{dir: dir, cache: make(map[string]string)}, nil
}

// Load returns the named prompt.
func (s *PromptStore) Load(name string) (string, error) {
	def, known := defaultPrompts[name]
	if !known {
		return "", fmt.Errorf("load prompt %q: unknown prompt", name)
	}

	s.seedOnce.Do(s.seed)
	if s.seedErr != nil {
		logger.Debug("Prompt directory unavailable, using built-in prompts: %v", s.seedErr)
		return def, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if prompt, ok := s.cache[name]; ok {
		return prompt, nil
	}

	prompt := def
	switch custom, err := s.read(name); {
	case err != nil:
		logger.Debug("Prompt %s: %v, using built-in", name, err)
	case strings.Count(custom, "%s") != verbs[name]:
		logger.Warn("Prompt %s needs %d %%s verbs, found %d; using built-in",
			s.path(name), verbs[name], strings.Count(custom, "%s"))
	default:
		prompt = custom
	}
	s.cache[name] = prompt
	return prompt, nil
}

// Reload drops cached prompts so the next Load reads the files again.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	clear(s.cache)
	s.mu.Unlock()
}

// Dir returns the prompt directory.
func (s *PromptStore) Dir() string {
	return s.dir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.dir, name+".txt")
}

func (s *PromptStore) read(name string) (string, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// seed creates the directory and writes any missing default files.
// Existing files are never overwritten.
func (s *PromptStore) seed() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.seedErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}
	files := map[string]string{"README.md": promptReadme}
	for name, content := range defaultPrompts {
		files[name+".txt"] = content + "\n"
	}
	for file, content := range files {
		path := filepath.Join(s.dir, file)
		if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			s.seedErr = fmt.Errorf("write %s: %w", file, err)
			return
		}
	}
}
