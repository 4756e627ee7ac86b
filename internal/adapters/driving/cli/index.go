package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/adapters/driven/progress"
	"github.com/custodia-labs/kimchi/internal/app"
	"github.com/custodia-labs/kimchi/internal/core/domain"
)

var (
	indexWatch    bool
	indexRecreate bool
	indexForce    bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index a repository",
	Long: `Walks a repository, chunks every readable file and writes the embedded
chunks to the index. Re-running replaces the chunks of every file it reads.

Without a path, the configured repo.path is used; when that is empty too,
the branch github.owner/github.repo@github.branch is downloaded to
github.base_path first (reused on later runs unless --force is given).

With --watch, kimchi keeps running after the first pass and re-indexes files
as they change.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "re-index files as they change")
	indexCmd.Flags().BoolVar(&indexRecreate, "recreate", false, "drop the index before indexing")
	indexCmd.Flags().BoolVar(&indexForce, "force", false, "download a fresh GitHub snapshot")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var showProgress bool
	bar := progress.New(os.Stderr, false)
	a, err := openApp(func(cfg *domain.Config) {
		if len(args) > 0 {
			cfg.Repo.Path = args[0]
		}
		cfg.Index.Recreate = indexRecreate
		cfg.GitHub.Force = indexForce
		showProgress = cfg.ShowProgress && !cfg.Verbose && progress.IsTerminal(os.Stderr)
	}, app.WithProgress(bar))
	if err != nil {
		return err
	}
	defer a.Close()
	bar.SetEnabled(showProgress)

	r := renderer()
	summary, err := a.Ingest.Run(ctx)
	if summary != nil {
		cmd.Print(r.Summary(summary))
	}
	if err != nil {
		if errors.Is(err, ctx.Err()) {
			return nil
		}
		return fmt.Errorf("indexing failed: %w", err)
	}
	if !indexWatch {
		return nil
	}

	w := a.NewWatcher()
	err = a.Ingest.Watch(ctx, w, func(s *domain.RunSummary) {
		cmd.Printf("Re-indexed %d file(s): %d chunks written, %d failed, %d skipped\n",
			s.DocumentsProcessed, s.ChunksIndexed, s.ChunksFailed, s.DocumentsSkipped)
	})
	if err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}
