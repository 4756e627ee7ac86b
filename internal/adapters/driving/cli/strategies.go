package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/postprocessors/chunker"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "Show which chunking strategy applies to each file extension",
	RunE:  runStrategies,
}

func init() {
	rootCmd.AddCommand(strategiesCmd)
}

func runStrategies(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	engine := chunker.FromConfig(cfg.Chunking)
	cmd.Print(renderer().Strategies(domain.ExtensionTable(), engine.Describe(), engine.Overlap()))
	return nil
}
