package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/evaluation"
)

var (
	evalOut  string
	evalTopK int
)

var evalCmd = &cobra.Command{
	Use:   "eval [questions.yaml]",
	Short: "Answer a question set and write the results as JSON lines",
	Long: `Reads questions from a YAML file:

  questions:
    - id: port
      question: Which port does the server listen on?
      expected_sources: [cmd/server/main.go]

and writes one JSON object per question with the answer and the retrieved
contexts (source_path, sequence_index, score, text). Scoring is left to an
external tool.`,
	Args: cobra.ExactArgs(1),
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalOut, "out", "o", "", "output file (default stdout)")
	evalCmd.Flags().IntVarP(&evalTopK, "top-k", "k", 0, "passages per question (default retrieval.top_k)")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) (err error) {
	questions, err := evaluation.LoadFile(args[0])
	if err != nil {
		return err
	}

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	var w io.Writer = cmd.OutOrStdout()
	if evalOut != "" {
		f, err := os.Create(evalOut)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer func() {
			if cerr := f.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}()
		w = f
	}

	report, err := evaluation.NewRunner(a.Answer, topK(evalTopK, a.Config)).Run(cmd.Context(), questions, w)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}
	cmd.PrintErrf("Answered %d of %d questions (%d failed)\n", report.Answered, len(questions), report.Failed)
	return nil
}
