package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the index schema and record count",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.Retrieval.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index: %w", err)
	}
	cmd.Print(renderer().Stats(a.Config.Index.Name, stats))
	return nil
}
