package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

var (
	queryTopK int
	queryJSON bool
)

var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Retrieve the chunks closest to a question",
	Long: `Embeds the question and returns the k most similar chunks, best first,
with the file and chunk sequence each one came from.

In hybrid mode (retrieval.mode = hybrid) the vector ranking is fused with a
BM25 keyword ranking.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "number of results (default retrieval.top_k)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	k := topK(queryTopK, a.Config)
	hits, err := a.Retrieval.Retrieve(cmd.Context(), strings.Join(args, " "), k)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if queryJSON {
		return outputQueryJSON(cmd, hits)
	}
	cmd.Print(renderer().Results(hits))
	return nil
}

// topK prefers the flag value over the configured default.
func topK(flag int, cfg domain.Config) int {
	if flag != 0 {
		return flag
	}
	return cfg.Retrieval.TopK
}

// queryResult is the JSON shape of one hit.
type queryResult struct {
	ID            string  `json:"id"`
	Score         float64 `json:"score"`
	SourcePath    string  `json:"source_path"`
	SequenceIndex int     `json:"sequence_index"`
	Strategy      string  `json:"strategy"`
	Section       string  `json:"section,omitempty"`
	StartLine     int     `json:"start_line,omitempty"`
	EndLine       int     `json:"end_line,omitempty"`
	Text          string  `json:"text"`
}

func outputQueryJSON(cmd *cobra.Command, hits []domain.ScoredRecord) error {
	results := make([]queryResult, 0, len(hits))
	for _, h := range hits {
		md := h.Record.Metadata
		results = append(results, queryResult{
			ID:            h.Record.ID,
			Score:         h.Score,
			SourcePath:    md.SourcePath,
			SequenceIndex: md.SequenceIndex,
			Strategy:      string(md.Strategy),
			Section:       md.Section,
			StartLine:     md.StartLine,
			EndLine:       md.EndLine,
			Text:          h.Record.Text,
		})
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
