package driving

import (
	"context"

	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// AnswerService answers a question from retrieved passages.
type AnswerService interface {
	// Ask retrieves k passages and synthesizes an answer citing them.
	Ask(ctx context.Context, query string, k int) (*domain.Answer, error)
}
