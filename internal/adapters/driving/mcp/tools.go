package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query string `json:"query" jsonschema:"the question or keywords to look up"`
	K     int    `json:"k,omitempty" jsonschema:"maximum number of passages to return (default retrieval.top_k)"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Passages []Passage `json:"passages"`
	Count    int       `json:"count"`
}

// Passage is a retrieved chunk with its provenance.
type Passage struct {
	ID            string  `json:"id"`
	SourcePath    string  `json:"source_path"`
	SequenceIndex int     `json:"sequence_index"`
	Strategy      string  `json:"strategy"`
	Section       string  `json:"section,omitempty"`
	StartLine     int     `json:"start_line,omitempty"`
	EndLine       int     `json:"end_line,omitempty"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the question to answer from the repository"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages to answer from (default retrieval.top_k)"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer  string    `json:"answer"`
	Model   string    `json:"model,omitempty"`
	Sources []Passage `json:"sources"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Retrieve the indexed repository chunks most relevant to a query, best first",
	}, s.handleRetrieve)

	if s.ports.Answer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "ask",
			Description: "Answer a question about the indexed repository, citing the passages used",
		}, s.handleAsk)
	}
}

// handleRetrieve handles the retrieve tool invocation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	hits, err := s.ports.Retrieval.Retrieve(ctx, input.Query, s.ports.k(input.K))
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	return nil, RetrieveOutput{
		Passages: passages(hits),
		Count:    len(hits),
	}, nil
}

// handleAsk handles the ask tool invocation.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Answer.Ask(ctx, input.Question, s.ports.k(input.K))
	if err != nil {
		return nil, AskOutput{}, err
	}

	return nil, AskOutput{
		Answer:  answer.Text,
		Model:   answer.Model,
		Sources: passages(answer.Sources),
	}, nil
}

func passages(hits []domain.ScoredRecord) []Passage {
	out := make([]Passage, len(hits))
	for i, h := range hits {
		md := h.Record.Metadata
		out[i] = Passage{
			ID:            h.Record.ID,
			SourcePath:    md.SourcePath,
			SequenceIndex: md.SequenceIndex,
			Strategy:      string(md.Strategy),
			Section:       md.Section,
			StartLine:     md.StartLine,
			EndLine:       md.EndLine,
			Score:         h.Score,
			Text:          h.Record.Text,
		}
	}
	return out
}
