package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// Document is one decoded file from a repository snapshot.
// Documents live for a single ingestion run and are discarded after chunking.
type Document struct {
	// Path is relative to the snapshot root, slash-separated, and unique
	// within one ingestion run.
	Path string

	// Extension is the lower-cased file extension including the dot (".go").
	Extension string

	// Text is the decoded file content.
	Text string

	// SizeBytes is the on-disk size before decoding.
	SizeBytes int64

	// CreatedAt is the file creation time where the platform reports one,
	// otherwise the modification time.
	CreatedAt time.Time

	// ModifiedAt is the file modification time.
	ModifiedAt time.Time

	// Encoding names the charset the text was decoded from ("utf-8", "windows-1252").
	Encoding string
}

// Chunk is a contiguous span of a Document selected for independent retrieval.
type Chunk struct {
	// ID is stable for (source path, sequence index, strategy); see ChunkID.
	ID string

	// Text is never empty.
	Text string

	// Metadata is copied from the Document at creation time.
	Metadata ChunkMetadata
}

// SourcePath is a shorthand for c.Metadata.SourcePath.
func (c Chunk) SourcePath() string {
	return c.Metadata.SourcePath
}

// SequenceIndex is a shorthand for c.Metadata.SequenceIndex.
func (c Chunk) SequenceIndex() int {
	return c.Metadata.SequenceIndex
}

// ChunkID derives the record id for a chunk. Re-indexing the same logical
// chunk yields the same id, so an upsert overwrites instead of duplicating.
func ChunkID(sourcePath string, sequenceIndex int, strategy Strategy) string {
	h := sha256.New()
	h.Write([]byte(sourcePath))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(sequenceIndex)))
	h.Write([]byte{0})
	h.Write([]byte(strategy))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// IndexRecord is the persisted unit of the vector index.
// Records are immutable once written; an update replaces the whole record.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata ChunkMetadata

	// Seq is the insertion sequence assigned by the index when the id was
	// first written. Overwriting a record keeps its Seq.
	Seq int64
}

// NewIndexRecord builds the record for an embedded chunk.
func NewIndexRecord(chunk Chunk, vector []float32) IndexRecord {
	return IndexRecord{
		ID:       chunk.ID,
		Vector:   vector,
		Text:     chunk.Text,
		Metadata: chunk.Metadata,
	}
}

// IndexSchema describes a vector index. The dimension and model are fixed
// when the index is created.
type IndexSchema struct {
	Name       string
	Dimensions int
	Model      string
}

// RecordFailure identifies a record that a backend could not write.
type RecordFailure struct {
	ID            string
	SourcePath    string
	SequenceIndex int
	Err           error
}

// ChangeType represents the type of file change seen in watch mode.
type ChangeType int

const (
	// ChangeCreated indicates a new file.
	ChangeCreated ChangeType = iota

	// ChangeUpdated indicates a modified file.
	ChangeUpdated

	// ChangeDeleted indicates a removed or renamed file.
	ChangeDeleted
)

// String returns the change name.
func (c ChangeType) String() string {
	switch c {
	case ChangeCreated:
		return "created"
	case ChangeUpdated:
		return "updated"
	case ChangeDeleted:
		return "deleted"
	default:
		return "unknown"
	}
}

// FileChange is a change event emitted by the watcher.
type FileChange struct {
	Type ChangeType

	// Path is relative to the watched root, slash-separated.
	Path string
}
