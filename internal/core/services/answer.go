package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Ensure AnswerService implements the interface.
var _ driving.AnswerService = (*AnswerService)(nil)

// NoContextAnswer is returned when retrieval finds nothing to answer from.
const NoContextAnswer = "No indexed passages match this question."

// Prompt defaults, used when no PromptStore is configured.
const (
	defaultAnswerSystemPrompt = `You answer questions about a source code repository using only the passages provided.
Cite every claim with the passage reference in square brackets, for example [internal/server/http.go#3].
If the passages do not contain the answer, say so plainly instead of guessing.`

	defaultAnswerUserPrompt = "Passages:\n\n%s\n\nQuestion: %s\n\nAnswer:"
)

// AnswerService synthesizes an answer from retrieved passages.
type AnswerService struct {
	retriever driving.RetrievalService
	llm       driven.LLMService
	prompts   driven.PromptStore
	retrier   Retrier
	opts      driven.ChatOptions
}

// NewAnswerService creates an answer service. llm may be nil, in which case
// Ask fails with ErrLLMUnavailable once passages are found.
func NewAnswerService(retriever driving.RetrievalService, llm driven.LLMService) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		llm:       llm,
		retrier:   NewRetrier(domain.DefaultEmbeddingRetries),
		opts:      driven.ChatOptions{Temperature: 0.1},
	}
}

// SetPromptStore sets the source of user-editable prompt templates.
func (s *AnswerService) SetPromptStore(p driven.PromptStore) {
	s.prompts = p
}

// SetRetrier replaces the retry policy for LLM calls.
func (s *AnswerService) SetRetrier(r Retrier) {
	s.retrier = r
}

// Ask retrieves k passages and asks the LLM to answer from them.
func (s *AnswerService) Ask(ctx context.Context, query string, k int) (*domain.Answer, error) {
	passages, err := s.retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{Query: query, Sources: passages}
	if len(passages) == 0 {
		answer.Text = NoContextAnswer
		return answer, nil
	}
	if s.llm == nil {
		return nil, fmt.Errorf("%w: no LLM provider configured", domain.ErrLLMUnavailable)
	}
	answer.Model = s.llm.ModelName()

	messages := []driven.ChatMessage{
		{Role: driven.RoleSystem, Content: s.loadPrompt(driven.PromptAnswerSystem, defaultAnswerSystemPrompt)},
		{Role: driven.RoleUser, Content: fmt.Sprintf(
			s.loadPrompt(driven.PromptAnswerUser, defaultAnswerUserPrompt),
			FormatPassages(passages), strings.TrimSpace(query))},
	}

	logger.Debug("Asking %s with %d passages", answer.Model, len(passages))
	err = s.retrier.Do(ctx, "chat", func(ctx context.Context) error {
		text, err := s.llm.Chat(ctx, messages, s.opts)
		if err != nil {
			return err
		}
		answer.Text = strings.TrimSpace(text)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize answer: %w", err)
	}
	return answer, nil
}

// loadPrompt loads a prompt from the store, falling back to the default if unavailable.
func (s *AnswerService) loadPrompt(name, fallback string) string {
	if s.prompts == nil {
		return fallback
	}
	prompt, err := s.prompts.Load(name)
	if err != nil || prompt == "" {
		return fallback
	}
	return prompt
}

// Reference returns the provenance tag of a record, "path#sequence".
func Reference(r domain.IndexRecord) string {
	return fmt.Sprintf("%s#%d", r.Metadata.SourcePath, r.Metadata.SequenceIndex)
}

// FormatPassages renders passages for a prompt, each headed by its reference.
func FormatPassages(passages []domain.ScoredRecord) string {
	var b strings.Builder
	for i, p := range passages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[%s]", Reference(p.Record))
		if section := p.Record.Metadata.Section; section != "" {
			fmt.Fprintf(&b, " %s", section)
		}
		b.WriteString("\n")
		b.WriteString(p.Record.Text)
	}
	return b.String()
}
