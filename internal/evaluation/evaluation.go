// Package evaluation runs a question set through the answer service and
// writes one JSON line per question for an external scorer.
package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driving"
	"github.com/custodia-labs/kimchi/internal/logger"
)

// Question is one entry of a question file.
type Question struct {
	ID              string   `yaml:"id"`
	Question        string   `yaml:"question"`
	ExpectedSources []string `yaml:"expected_sources,omitempty"`
}

type questionFile struct {
	Questions []Question `yaml:"questions"`
}

// Context is a retrieved passage as the scorer sees it.
type Context struct {
	SourcePath    string  `json:"source_path"`
	SequenceIndex int     `json:"sequence_index"`
	Score         float64 `json:"score"`
	Text          string  `json:"text"`
}

// Result is one output line.
type Result struct {
	ID              string    `json:"id"`
	Question        string    `json:"question"`
	Answer          string    `json:"answer"`
	Contexts        []Context `json:"contexts"`
	ExpectedSources []string  `json:"expected_sources,omitempty"`

	// Error is set when the question failed without aborting the run.
	Error string `json:"error,omitempty"`
}

// Report counts the outcome of a run.
type Report struct {
	Answered int
	Failed   int
}

// LoadFile reads a YAML question file.
func LoadFile(path string) ([]Question, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open question file: %v", domain.ErrInvalidInput, err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a question set. Questions without an id are numbered q1, q2...
// in file order.
func Load(r io.Reader) ([]Question, error) {
	var file questionFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: question file is empty", domain.ErrInvalidInput)
		}
		return nil, fmt.Errorf("%w: parse question file: %v", domain.ErrInvalidInput, err)
	}
	if len(file.Questions) == 0 {
		return nil, fmt.Errorf("%w: question file has no questions", domain.ErrInvalidInput)
	}

	seen := make(map[string]bool, len(file.Questions))
	for i := range file.Questions {
		q := &file.Questions[i]
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			return nil, fmt.Errorf("%w: question %d is empty", domain.ErrInvalidInput, i+1)
		}
		if q.ID == "" {
			q.ID = fmt.Sprintf("q%d", i+1)
		}
		if seen[q.ID] {
			return nil, fmt.Errorf("%w: duplicate question id %q", domain.ErrInvalidInput, q.ID)
		}
		seen[q.ID] = true
	}
	return file.Questions, nil
}

// Runner answers questions with k passages each.
type Runner struct {
	answers driving.AnswerService
	k       int
}

// NewRunner creates a runner.
func NewRunner(answers driving.AnswerService, k int) *Runner {
	return &Runner{answers: answers, k: k}
}

// Run answers every question in order and writes a JSON line for each.
// Per-question transient failures are written with their error and the run
// continues; input, consistency and cancellation errors abort it.
func (r *Runner) Run(ctx context.Context, questions []Question, w io.Writer) (Report, error) {
	var report Report
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	for i, q := range questions {
		logger.Debug("Evaluating %s (%d/%d)", q.ID, i+1, len(questions))
		result := Result{
			ID:              q.ID,
			Question:        q.Question,
			Contexts:        []Context{},
			ExpectedSources: q.ExpectedSources,
		}

		answer, err := r.answers.Ask(ctx, q.Question, r.k)
		if err != nil {
			if domain.Classify(err).Fatal() {
				return report, fmt.Errorf("question %s: %w", q.ID, err)
			}
			logger.Warn("question %s failed: %v", q.ID, err)
			result.Error = err.Error()
			report.Failed++
		} else {
			result.Answer = answer.Text
			result.Contexts = contexts(answer.Sources)
			report.Answered++
		}

		if err := enc.Encode(result); err != nil {
			return report, fmt.Errorf("write result %s: %w", q.ID, err)
		}
	}
	return report, nil
}

func contexts(hits []domain.ScoredRecord) []Context {
	out := make([]Context, 0, len(hits))
	for _, h := range hits {
		out = append(out, Context{
			SourcePath:    h.Record.Metadata.SourcePath,
			SequenceIndex: h.Record.Metadata.SequenceIndex,
			Score:         h.Score,
			Text:          h.Record.Text,
		})
	}
	return out
}
