package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed repository",
	Long: `Retrieves the k closest chunks and asks the configured LLM to answer from
them, citing each passage as path#sequence. When nothing is retrieved the
LLM is not called.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", 0, "number of passages (default retrieval.top_k)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	answer, err := a.Answer.Ask(cmd.Context(), strings.Join(args, " "), topK(askTopK, a.Config))
	if err != nil {
		return fmt.Errorf("ask failed: %w", err)
	}
	cmd.Print(renderer().Answer(answer))
	return nil
}
