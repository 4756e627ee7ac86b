// Package cli provides the kimchi command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/config/file"
	"github.com/custodia-labs/kimchi/internal/adapters/driving/cli/render"
	"github.com/custodia-labs/kimchi/internal/app"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
	"github.com/custodia-labs/kimchi/internal/core/services"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// version is set at build time via -ldflags.
var version = "dev"

// Global flags.
var (
	verbose   bool
	configDir string
	indexName string
	dataDir   string
	backend   string
)

// settingsService assembles configuration. Nil means the TOML file store in
// configDir is used.
var settingsService driving.SettingsService

// newApp wires the services for one command. Tests replace it.
var newApp = app.New

var rootCmd = &cobra.Command{
	Use:   "kimchi",
	Short: "Index a code repository and answer questions about it",
	Long: `kimchi walks a repository snapshot, splits every file with a strategy that
fits its format (code, structured text, records or prose), embeds the chunks
and stores them in a vector index. Queries retrieve the closest chunks with
their provenance, and ask synthesizes an answer from them with an LLM.

Configuration is read from ~/.kimchi/config.toml, a .env file and the
environment, in that order. Flags override everything.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		if verbose {
			logger.SetVerbose(true)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "configuration directory (default ~/.kimchi)")
	rootCmd.PersistentFlags().StringVar(&indexName, "index", "", "index name")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "index data directory")
	rootCmd.PersistentFlags().StringVar(&backend, "backend", "", "index backend (sqlite, memory)")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context; indexing stops between batches and prints what it completed.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func settings() (driving.SettingsService, error) {
	if settingsService != nil {
		return settingsService, nil
	}
	store, err := file.NewConfigStore(configDir)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}
	return services.NewSettingsService(store), nil
}

// loadConfig assembles the configuration and applies the global flags.
func loadConfig() (domain.Config, error) {
	s, err := settings()
	if err != nil {
		return domain.Config{}, err
	}
	cfg, err := s.Load()
	if err != nil {
		return cfg, err
	}
	if indexName != "" {
		cfg.Index.Name = indexName
	}
	if dataDir != "" {
		cfg.Index.DataDir = dataDir
	}
	if backend != "" {
		cfg.Index.Backend = domain.IndexBackend(backend)
	}
	if verbose {
		cfg.Verbose = true
	}
	logger.SetVerbose(cfg.Verbose)
	return cfg, nil
}

// openApp loads the configuration, lets the command adjust it, and wires the
// services.
func openApp(adjust func(*domain.Config), opts ...app.Option) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(&cfg)
	}
	opts = append([]app.Option{app.WithConfigDir(configDir)}, opts...)
	a, err := newApp(cfg, opts...)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errors.New("services not configured")
	}
	return a, nil
}

func renderer() *render.Renderer {
	return render.New(nil)
}
