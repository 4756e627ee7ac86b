// Package messages holds the tea.Msg values the TUI screens exchange.
package messages

import (
	"github.com/custodia-labs/kimchi/internal/core/domain"
)

// ViewType names a screen.
type ViewType int

const (
	ViewSearch ViewType = iota
	ViewPassage
	ViewHelp
)

var viewNames = [...]string{
	ViewSearch:  "search",
	ViewPassage: "passage",
	ViewHelp:    "help",
}

func (v ViewType) String() string {
	if v < 0 || int(v) >= len(viewNames) {
		return "unknown"
	}
	return viewNames[v]
}

// RetrieveCompleted carries the hits for Query, or the retrieval error.
type RetrieveCompleted struct {
	Query string
	Hits  []domain.ScoredRecord
	Err   error
}

// PassageSelected opens Hit on the passage screen.
type PassageSelected struct {
	Hit domain.ScoredRecord
}

// AskRequested asks the model to answer Query from retrieved passages.
type AskRequested struct {
	Query string
}

// AnswerCompleted carries the answer, or why there is none.
type AnswerCompleted struct {
	Answer *domain.Answer
	Err    error
}

// ViewChanged switches to View.
type ViewChanged struct {
	View ViewType
}

type ErrorOccurred struct {
	Err error
}

type Quit struct{}
