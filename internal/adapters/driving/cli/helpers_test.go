package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/kimchi/internal/app"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/core/services"
)

const stubReply = "The server listens on port 8080 [README.md#0]."

type stubLLM struct{}

func (stubLLM) Chat(context.Context, []driven.ChatMessage, driven.ChatOptions) (string, error) {
	return stubReply, nil
}

func (stubLLM) ModelName() string { return "stub" }

func (stubLLM) Ping(context.Context) error { return nil }

func (stubLLM) Close() error { return nil }

// setupTestServices points the commands at an in-memory config store and a
// shared in-memory index embedded with the hash provider. The returned
// function restores the globals.
func setupTestServices(t *testing.T) func() {
	t.Helper()

	settings := services.NewSettingsService(memory.NewConfigStore())
	settings.SetEnv(func(string) (string, bool) { return "", false })
	settingsService = settings

	index := memory.NewVectorIndex("test")
	dir := t.TempDir()
	newApp = func(cfg domain.Config, opts ...app.Option) (*app.App, error) {
		cfg.Embedding.Provider = domain.AIProviderHash
		cfg.Embedding.Model = "hash"
		cfg.Embedding.Dimensions = 64
		cfg.Index.Name = "test"
		cfg.Index.Backend = domain.IndexBackendMemory
		cfg.Index.DataDir = dir
		cfg.ShowProgress = false
		opts = append(opts,
			app.WithConfigDir(dir),
			app.WithVectorIndex(index),
			app.WithLLM(stubLLM{}),
		)
		return app.New(cfg, opts...)
	}

	return func() {
		settingsService = nil
		newApp = app.New
		verbose = false
		configDir = ""
		indexName = ""
		dataDir = ""
		backend = ""
		queryTopK = 0
		queryJSON = false
		askTopK = 0
		evalOut = ""
		evalTopK = 0
		indexWatch = false
		indexRecreate = false
		indexForce = false
		mcpPort = 0
		tuiTopK = 0
	}
}

func writeRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"main.go":   "package main\n\n// main starts the server.\nfunc main() {\n\tserve()\n}\n",
		"README.md": "# Hello\n\nThe server listens on port 8080.\n",
		"notes.txt": "Deployment happens every Friday. Rollbacks use the previous tag.",
	}
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte(body), 0o644))
	}
	return root
}
