package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/kimchi/internal/app"
	"github.com/custodia-labs/kimchi/internal/core/domain"
)

func TestRootCmd_Subcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "query", "ask", "eval", "stats", "strategies", "config", "mcp", "tui", "version"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestTUICmd_Flags(t *testing.T) {
	flag := tuiCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag)
	assert.Equal(t, "k", flag.Shorthand)
	assert.Error(t, tuiCmd.Args(tuiCmd, []string{"extra"}))
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	for _, name := range []string{"verbose", "config-dir", "index", "data-dir", "backend"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}
	assert.Equal(t, "v", rootCmd.PersistentFlags().Lookup("verbose").Shorthand)
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("1.2.3")
	assert.Equal(t, "1.2.3", version)
}

func TestLoadConfig_FlagOverrides(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	indexName = "flags"
	dataDir = "/tmp/kimchi-data"
	backend = "memory"

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "flags", cfg.Index.Name)
	assert.Equal(t, "/tmp/kimchi-data", cfg.Index.DataDir)
	assert.Equal(t, domain.IndexBackendMemory, cfg.Index.Backend)
}

func TestOpenApp_AdjustAndOptions(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	var seen domain.Config
	var opts int
	newApp = func(cfg domain.Config, o ...app.Option) (*app.App, error) {
		seen = cfg
		opts = len(o)
		return &app.App{Config: cfg}, nil
	}

	a, err := openApp(func(cfg *domain.Config) {
		cfg.Retrieval.TopK = 9
	})
	require.NoError(t, err)
	assert.NotNil(t, a)
	assert.Equal(t, 9, seen.Retrieval.TopK)
	assert.Equal(t, 1, opts, "config dir option is always passed")
}

func TestOpenApp_InvalidConfig(t *testing.T) {
	cleanup := setupTestServices(t)
	defer cleanup()

	newApp = app.New
	backend = "postgres"

	_, err := runCmd(t, "stats")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMCPCmd_Flags(t *testing.T) {
	flag := mcpCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)

	_, err := runCmd(t, "mcp", "extra")
	assert.Error(t, err)
}
