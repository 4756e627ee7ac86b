package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/services"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	Long: `Shows the effective configuration and edits ~/.kimchi/config.toml.

Values are resolved from defaults, the config file, a .env file and the
environment (KIMCHI_<KEY>, for example KIMCHI_INDEX_NAME), lowest to highest.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the value stored in the config file for a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Store a value in the config file",
	Long: `Stores a value in the config file. Lists are comma separated and durations
use Go syntax (10s, 1m30s).

When the value is omitted it is read from stdin; keys holding secrets
(api keys, tokens) are read without echo on a terminal.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a key from the config file so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every configuration key with its environment variable",
	RunE:  runConfigKeys,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configKeysCmd)
	rootCmd.AddCommand(configCmd)
}

//nolint:gocyclo // Flat listing of sections
func runConfigShow(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	cmd.Println("Current Configuration")
	cmd.Println("=====================")
	cmd.Println()

	cmd.Println("[Repository]")
	if cfg.Repo.Path != "" {
		cmd.Printf("  Path: %s\n", cfg.Repo.Path)
	} else {
		cmd.Println("  Path: (not set)")
	}
	cmd.Printf("  Excluded dirs: %s\n", strings.Join(cfg.Repo.ExcludeDirs, ", "))
	if len(cfg.Repo.ExcludeGlobs) > 0 {
		cmd.Printf("  Excluded globs: %s\n", strings.Join(cfg.Repo.ExcludeGlobs, ", "))
	}
	cmd.Printf("  Use .gitignore: %t\n", cfg.Repo.UseGitignore)
	cmd.Printf("  Max file size: %d bytes\n", cfg.Repo.MaxFileSize)
	cmd.Printf("  Fallback encoding: %s\n", cfg.Repo.FallbackEncoding)
	cmd.Println()

	if cfg.GitHub.IsConfigured() {
		cmd.Println("[GitHub]")
		cmd.Printf("  Repository: %s/%s@%s\n", cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch)
		cmd.Printf("  Snapshot: %s\n", cfg.GitHub.LocalPath())
		cmd.Printf("  Token: %s\n", secret(cfg.GitHub.Token))
		cmd.Printf("  Retries: %d, %s apart\n", cfg.GitHub.MaxRetries, cfg.GitHub.RetryDelay)
		cmd.Println()
	}

	cmd.Println("[Chunking]")
	cmd.Printf("  Overlap: %.0f%%\n", cfg.Chunking.Overlap*100)
	for _, s := range domain.AllStrategies() {
		l := cfg.Chunking.LimitsFor(s)
		if l.MaxLines > 0 {
			cmd.Printf("  %s: %d chars, %d lines\n", s, l.MaxChars, l.MaxLines)
		} else {
			cmd.Printf("  %s: %d chars\n", s, l.MaxChars)
		}
	}
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", cfg.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", cfg.Embedding.Model)
	if cfg.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", cfg.Embedding.BaseURL)
	}
	if cfg.Embedding.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", secret(cfg.Embedding.APIKey))
	}
	cmd.Printf("  Batch size: %d, workers: %d\n", cfg.Embedding.BatchSize, cfg.Embedding.Workers)
	cmd.Printf("  Status: %s\n", configured(cfg.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[Index]")
	cmd.Printf("  Name: %s\n", cfg.Index.Name)
	cmd.Printf("  Backend: %s\n", cfg.Index.Backend)
	cmd.Printf("  Data dir: %s\n", cfg.Index.DataDir)
	cmd.Printf("  Batch size: %d\n", cfg.Index.BatchSize)
	cmd.Printf("  Keyword index: %t\n", cfg.Index.Keyword)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Mode: %s\n", cfg.Retrieval.Mode.Description())
	cmd.Printf("  Top-k: %d\n", cfg.Retrieval.TopK)
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", cfg.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", cfg.LLM.Model)
	if cfg.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", cfg.LLM.BaseURL)
	}
	if cfg.LLM.Provider.RequiresAPIKey() {
		cmd.Printf("  API Key: %s\n", secret(cfg.LLM.APIKey))
	}
	cmd.Printf("  Status: %s\n", configured(cfg.LLM.IsConfigured()))
	cmd.Println()

	if err := cfg.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'kimchi config set <key> <value>' to fix it.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	s, err := settings()
	if err != nil {
		return err
	}
	v, ok := s.Get(args[0])
	if !ok {
		return fmt.Errorf("%s is not set in the config file", args[0])
	}
	if isSecretKey(args[0]) {
		cmd.Println(maskAPIKey(fmt.Sprint(v)))
		return nil
	}
	cmd.Println(v)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	s, err := settings()
	if err != nil {
		return err
	}
	key := args[0]

	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		cmd.Printf("Value for %s: ", key)
		if isSecretKey(key) {
			value = readPassword(cmd.InOrStdin())
			cmd.Println()
		} else {
			value = readLine(bufio.NewReader(cmd.InOrStdin()))
		}
		if value == "" {
			return errors.New("no value given")
		}
	}

	if err := s.Set(key, value); err != nil {
		return err
	}
	if isSecretKey(key) {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	s, err := settings()
	if err != nil {
		return err
	}
	if err := s.Unset(args[0]); err != nil {
		return err
	}
	cmd.Printf("Unset %s\n", args[0])
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	s, err := settings()
	if err != nil {
		return err
	}
	for _, key := range s.Keys() {
		cmd.Printf("  %-32s %s\n", key, services.EnvName(key))
	}
	return nil
}

func configured(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func secret(v string) string {
	if v == "" {
		return "(not set)"
	}
	return maskAPIKey(v)
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, ".api_key") || strings.HasSuffix(key, ".token")
}

func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(bufio.NewReader(in))
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
