package domain

// ScoredRecord is a retrieval hit.
type ScoredRecord struct {
	Record IndexRecord

	// Score is cosine similarity in semantic mode and the fused
	// reciprocal-rank score in hybrid mode. Higher is better.
	Score float64
}

// KeywordHit is a keyword index match, resolved to a record by ID.
type KeywordHit struct {
	ID    string
	Score float64
}

// Answer is the synthesizer's output for one question.
type Answer struct {
	Query   string
	Text    string
	Model   string
	Sources []ScoredRecord
}

// IndexStats describes the current state of an index.
type IndexStats struct {
	// Schema is nil when the index has not been created.
	Schema  *IndexSchema
	Records int
	Mode    SearchMode
}
