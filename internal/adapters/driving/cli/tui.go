package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/adapters/driving/tui"
)

var tuiTopK int

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Explore the index interactively",
	Long: `Opens a terminal UI for running queries against the index, reading the
retrieved passages in full and asking the configured LLM about them.`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().IntVarP(&tuiTopK, "top-k", "k", 0, "number of passages (default retrieval.top_k)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ports := &tui.Ports{
		Retrieval: a.Retrieval,
		K:         topK(tuiTopK, a.Config),
	}
	if a.LLM != nil {
		ports.Answer = a.Answer
	}

	app, err := tui.NewApp(ports)
	if err != nil {
		return err
	}
	return app.WithContext(cmd.Context()).Run()
}
