package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/postprocessors/chunker"
)

// maxListed bounds the skipped and failed items printed in a summary.
const maxListed = 10

// Renderer formats values with a set of styles.
type Renderer struct {
	styles *Styles
}

// New creates a renderer. Nil styles select the default theme.
func New(styles *Styles) *Renderer {
	if styles == nil {
		styles = DefaultStyles()
	}
	return &Renderer{styles: styles}
}

func (r *Renderer) table(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(r.styles.Border).
		Headers(headers...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return r.styles.Header
			}
			return r.styles.Cell
		})
}

func (r *Renderer) field(label, value string) string {
	return r.styles.Label.Render(label) + r.styles.Normal.Render(value)
}

// Summary renders an ingestion run.
func (r *Renderer) Summary(s *domain.RunSummary) string {
	var b strings.Builder

	title := "Indexing complete"
	switch {
	case s.Cancelled:
		title = r.styles.Warning.Render("Indexing cancelled")
	case s.HasFailures():
		title = r.styles.Warning.Render("Indexing finished with failures")
	default:
		title = r.styles.Title.Render(title)
	}
	b.WriteString(title + "\n\n")

	b.WriteString(r.field("Index", s.IndexName) + "\n")
	if s.Model != "" {
		b.WriteString(r.field("Model", s.Model) + "\n")
	}
	b.WriteString(r.field("Documents", fmt.Sprintf("%d processed, %d skipped, %d failed",
		s.DocumentsProcessed, s.DocumentsSkipped, s.DocumentsFailed)) + "\n")
	b.WriteString(r.field("Chunks", fmt.Sprintf("%d produced, %d indexed, %d failed",
		s.ChunksProduced, s.ChunksIndexed, s.ChunksFailed)) + "\n")
	b.WriteString(r.field("Duration", s.Duration().Round(time.Millisecond).String()) + "\n")
	if s.RunID != "" {
		b.WriteString(r.field("Run", r.styles.Muted.Render(s.RunID)) + "\n")
	}

	if len(s.Strategies) > 0 {
		b.WriteString("\n" + r.ChunkStats(s.Strategies) + "\n")
	}

	if len(s.Skipped) > 0 {
		b.WriteString("\n" + r.styles.Subtitle.Render("Skipped") + "\n")
		for _, c := range s.SkipReasons() {
			b.WriteString(fmt.Sprintf("  %-12s %d\n", c.Reason, c.Count))
		}
		for i, item := range s.Skipped {
			if i == maxListed {
				b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  ... and %d more", len(s.Skipped)-maxListed)) + "\n")
				break
			}
			b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  %s (%s)", item.Path, item.Reason)) + "\n")
		}
	}

	if len(s.Failed) > 0 {
		b.WriteString("\n" + r.styles.Error.Render("Failed chunks") + "\n")
		for i, f := range s.Failed {
			if i == maxListed {
				b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  ... and %d more", len(s.Failed)-maxListed)) + "\n")
				break
			}
			b.WriteString(r.styles.Error.Render(fmt.Sprintf("  %s#%d: %s", f.SourcePath, f.SequenceIndex, f.Reason)) + "\n")
		}
	}

	return b.String()
}

// ChunkStats renders per-strategy chunk size statistics, flagging strategies
// whose largest chunk exceeds the configured limit.
func (r *Renderer) ChunkStats(stats map[domain.Strategy]*domain.ChunkStats) string {
	t := r.table("Strategy", "Chunks", "Avg", "Min", "Max", "Limit", "Use")
	var over []string
	for _, s := range domain.AllStrategies() {
		st, ok := stats[s]
		if !ok || st.Count == 0 {
			continue
		}
		t.Row(
			string(s),
			strconv.Itoa(st.Count),
			fmt.Sprintf("%.0f", st.Average()),
			strconv.Itoa(st.MinChars),
			strconv.Itoa(st.MaxChars),
			strconv.Itoa(st.Limit),
			fmt.Sprintf("%.0f%%", st.Utilisation()*100),
		)
		if st.Limit > 0 && st.MaxChars > st.Limit {
			over = append(over, fmt.Sprintf("%s chunks reach %d characters, over the %d limit", s, st.MaxChars, st.Limit))
		}
	}

	out := t.Render()
	for _, w := range over {
		out += "\n" + r.styles.Warning.Render("warning: "+w)
	}
	return out
}

// Results renders retrieval hits, best first.
func (r *Renderer) Results(hits []domain.ScoredRecord) string {
	if len(hits) == 0 {
		return r.styles.Muted.Render("No results.") + "\n"
	}
	var b strings.Builder
	for i, h := range hits {
		md := h.Record.Metadata
		head := fmt.Sprintf("%d. %s", i+1, Provenance(md))
		b.WriteString(r.styles.Subtitle.Render(head))
		b.WriteString(r.styles.Muted.Render(fmt.Sprintf("  score %.4f  %s", h.Score, md.Strategy)))
		if md.Section != "" {
			b.WriteString(r.styles.Muted.Render("  " + md.Section))
		}
		b.WriteString("\n")
		b.WriteString(r.styles.Passage.Render(strings.TrimSpace(h.Record.Text)) + "\n\n")
	}
	return b.String()
}

// Answer renders a synthesized answer followed by its sources.
func (r *Renderer) Answer(a *domain.Answer) string {
	var b strings.Builder
	b.WriteString(r.styles.Normal.Render(strings.TrimSpace(a.Text)) + "\n")
	if len(a.Sources) == 0 {
		return b.String()
	}
	b.WriteString("\n" + r.styles.Subtitle.Render("Sources") + "\n")
	for i, s := range a.Sources {
		b.WriteString(fmt.Sprintf("  [%d] %s %s\n", i+1, Provenance(s.Record.Metadata),
			r.styles.Muted.Render(fmt.Sprintf("(%.4f)", s.Score))))
	}
	if a.Model != "" {
		b.WriteString(r.styles.Muted.Render("\nmodel: "+a.Model) + "\n")
	}
	return b.String()
}

// Strategies renders the extension table grouped by strategy together with
// the effective chunk limits.
func (r *Renderer) Strategies(rows []domain.ExtensionMapping, limits []chunker.StrategyLimits, overlap float64) string {
	byStrategy := make(map[domain.Strategy][]string)
	for _, row := range rows {
		byStrategy[row.Strategy] = append(byStrategy[row.Strategy], row.Extension)
	}

	t := r.table("Strategy", "Max chars", "Max lines", "Extensions")
	for _, l := range limits {
		exts := byStrategy[l.Strategy]
		sort.Strings(exts)
		if l.Strategy == domain.DefaultStrategy {
			exts = append(exts, "(default)")
		}
		lines := "-"
		if l.Limits.MaxLines > 0 {
			lines = strconv.Itoa(l.Limits.MaxLines)
		}
		t.Row(string(l.Strategy), strconv.Itoa(l.Limits.MaxChars), lines, wrapList(exts, 48))
	}

	return t.Render() + "\n" + r.styles.Muted.Render(fmt.Sprintf("overlap %.0f%%", overlap*100)) + "\n"
}

// Stats renders the index description.
func (r *Renderer) Stats(name string, stats *domain.IndexStats) string {
	var b strings.Builder
	b.WriteString(r.styles.Title.Render("Index "+name) + "\n\n")
	if stats.Schema == nil {
		b.WriteString(r.styles.Muted.Render("Not created yet. Run `kimchi index` first.") + "\n")
		return b.String()
	}
	b.WriteString(r.field("Records", strconv.Itoa(stats.Records)) + "\n")
	b.WriteString(r.field("Dimensions", strconv.Itoa(stats.Schema.Dimensions)) + "\n")
	b.WriteString(r.field("Model", stats.Schema.Model) + "\n")
	if stats.Mode != "" {
		b.WriteString(r.field("Search", string(stats.Mode)) + "\n")
	}
	return b.String()
}

// Provenance formats where a chunk came from as path#sequence with its line range.
func Provenance(md domain.ChunkMetadata) string {
	s := fmt.Sprintf("%s#%d", md.SourcePath, md.SequenceIndex)
	if md.StartLine > 0 {
		s += fmt.Sprintf(" (lines %d-%d)", md.StartLine, md.EndLine)
	}
	return s
}

// wrapList joins items with ", " and breaks lines at width.
func wrapList(items []string, width int) string {
	var b strings.Builder
	line := 0
	for i, item := range items {
		if i > 0 {
			if line+len(item)+2 > width {
				b.WriteString(",\n")
				line = 0
			} else {
				b.WriteString(", ")
				line += 2
			}
		}
		b.WriteString(item)
		line += len(item)
	}
	return b.String()
}
