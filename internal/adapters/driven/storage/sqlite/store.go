package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/kimchi/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/kimchi/internal/core/domain"
	"github.com/custodia-labs/kimchi/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.VectorIndex = (*Store)(nil)

// metadataColumns are the records columns holding flattened chunk metadata.
// Column names equal the domain.Meta* keys.
var metadataColumns = []string{
	domain.MetaSourcePath,
	domain.MetaExtension,
	domain.MetaSizeBytes,
	domain.MetaCreatedAt,
	domain.MetaModifiedAt,
	domain.MetaSequenceIndex,
	domain.MetaStrategy,
	domain.MetaSection,
	domain.MetaStartLine,
	domain.MetaEndLine,
}

var recordColumns = "id, seq, vector, text, " + strings.Join(metadataColumns, ", ")

// Store is a SQLite-backed vector index.
type Store struct {
	db   *sql.DB
	name string
	path string
}

// pragmas put the database in WAL mode and let writers wait on a lock.
const pragmas = "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// NewStore opens the index database <dataDir>/<name>.db, creating it and
// applying pending migrations. dataDir defaults to ~/.kimchi/data.
func NewStore(dataDir, name string) (*Store, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: invalid index name %q", domain.ErrInvalidInput, name)
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("locate home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".kimchi", "data")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	path := filepath.Join(dataDir, name+".db")
	db, err := sql.Open("sqlite", path+pragmas)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", domain.ErrIndexUnavailable, path, err)
	}
	if err := migrate(db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: migrate %s: %v", domain.ErrIndexUnavailable, path, err)
	}
	return &Store{db: db, name: name, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Path is the database file.
func (s *Store) Path() string {
	return s.path
}

// migrate applies the NNN_*.up.sql files of fsys above the database's
// user_version, each in its own transaction that also bumps user_version.
func migrate(db *sql.DB, fsys fs.FS) error {
	var applied int
	if err := db.QueryRow("PRAGMA user_version").Scan(&applied); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return err
	}
	slices.Sort(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= applied {
			continue
		}
		script, err := fs.ReadFile(fsys, name)
		if err != nil {
			return err
		}
		if err := apply(db, string(script), version); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		applied = version
	}
	return nil
}

func apply(db *sql.DB, script string, version int) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.Exec(script); err != nil {
		return err
	}
	// PRAGMA takes no bind parameters.
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
		return err
	}
	return tx.Commit()
}

// EnsureSchema creates the index schema if absent and verifies it otherwise.
func (s *Store) EnsureSchema(ctx context.Context, schema domain.IndexSchema) error {
	if schema.Name != s.name {
		return fmt.Errorf("%w: schema name %q does not match index %q", domain.ErrInvalidInput, schema.Name, s.name)
	}
	if schema.Dimensions <= 0 {
		return fmt.Errorf("%w: dimensions must be positive, got %d", domain.ErrInvalidInput, schema.Dimensions)
	}

	existing, err := s.Schema(ctx)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO index_meta (name, dimensions, model) VALUES (?, ?, ?)",
			schema.Name, schema.Dimensions, schema.Model)
		if err != nil {
			return fmt.Errorf("%w: creating schema: %v", domain.ErrIndexUnavailable, err)
		}
		return nil
	case err != nil:
		return err
	}

	if existing.Dimensions != schema.Dimensions {
		return fmt.Errorf("%w: index %q has %d dimensions, embedder produces %d",
			domain.ErrDimensionMismatch, s.name, existing.Dimensions, schema.Dimensions)
	}
	if existing.Model != schema.Model {
		return fmt.Errorf("%w: index %q was built with %q, embedder is %q",
			domain.ErrModelMismatch, s.name, existing.Model, schema.Model)
	}
	return nil
}

// Schema returns the stored schema or domain.ErrNotFound.
func (s *Store) Schema(ctx context.Context) (*domain.IndexSchema, error) {
	var schema domain.IndexSchema
	err := s.db.QueryRowContext(ctx,
		"SELECT name, dimensions, model FROM index_meta WHERE name = ?", s.name).
		Scan(&schema.Name, &schema.Dimensions, &schema.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading schema: %v", domain.ErrIndexUnavailable, err)
	}
	return &schema, nil
}

// Upsert writes records in one transaction. A record whose id already exists
// is overwritten in place and keeps its seq.
func (s *Store) Upsert(ctx context.Context, records []domain.IndexRecord) ([]domain.RecordFailure, error) {
	if len(records) == 0 {
		return nil, nil
	}
	schema, err := s.Schema(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if len(r.Vector) != schema.Dimensions {
			return nil, fmt.Errorf("%w: record %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, r.ID, len(r.Vector), schema.Dimensions)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", domain.ErrIndexUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var next int64
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(seq), 0) FROM records").Scan(&next); err != nil {
		return nil, fmt.Errorf("%w: reading sequence: %v", domain.ErrIndexUnavailable, err)
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", 4+len(metadataColumns)), ", ")
	updates := make([]string, 0, 2+len(metadataColumns))
	for _, col := range append([]string{"vector", "text"}, metadataColumns...) {
		updates = append(updates, col+" = excluded."+col)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO records ("+recordColumns+") VALUES ("+placeholders+
		") ON CONFLICT(id) DO UPDATE SET "+strings.Join(updates, ", "))
	if err != nil {
		return nil, fmt.Errorf("%w: prepare upsert: %v", domain.ErrIndexUnavailable, err)
	}
	defer stmt.Close()

	var failures []domain.RecordFailure
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if r.ID == "" || r.Metadata.SourcePath == "" {
			failures = append(failures, recordFailure(r,
				fmt.Errorf("%w: record needs an id and a source path", domain.ErrInvalidInput)))
			continue
		}

		next++
		flat := r.Metadata.Flatten()
		args := []any{r.ID, next, encodeVector(r.Vector), r.Text}
		for _, col := range metadataColumns {
			args = append(args, flat[col])
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			failures = append(failures, recordFailure(r, fmt.Errorf("%w: %v", domain.ErrTransient, err)))
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", domain.ErrIndexUnavailable, err)
	}
	return failures, nil
}

// Search scores every record against query and returns the best k.
func (s *Store) Search(ctx context.Context, query []float32, k int) ([]domain.ScoredRecord, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}
	schema, err := s.Schema(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(query) != schema.Dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), schema.Dimensions)
	}

	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM records")
	if err != nil {
		return nil, fmt.Errorf("%w: scanning records: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	var results []domain.ScoredRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, domain.ScoredRecord{
			Record: rec,
			Score:  domain.CosineSimilarity(query, rec.Vector),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return domain.SortScored(results, k), nil
}

// Get returns records by id in the requested order, skipping unknown ids.
func (s *Store) Get(ctx context.Context, ids []string) ([]domain.IndexRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM records WHERE id IN ("+placeholders+")", args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	byID := make(map[string]domain.IndexRecord, len(ids))
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		byID[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}

	out := make([]domain.IndexRecord, 0, len(byID))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			out = append(out, rec)
			delete(byID, id)
		}
	}
	return out, nil
}

// DeleteBySource removes the records of one source file.
func (s *Store) DeleteBySource(ctx context.Context, sourcePath string) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", domain.ErrIndexUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, "SELECT id FROM records WHERE source_path = ? ORDER BY seq", sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM records WHERE source_path = ?", sourcePath); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", domain.ErrIndexUnavailable, err)
	}
	return ids, nil
}

// deleteChunk bounds the ids bound to one DELETE statement.
const deleteChunk = 500

// Delete removes records by id in one transaction.
func (s *Store) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin: %v", domain.ErrIndexUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var removed int64
	for part := range slices.Chunk(ids, deleteChunk) {
		args := make([]any, len(part))
		for i, id := range part {
			args[i] = id
		}
		marks := strings.TrimSuffix(strings.Repeat("?, ", len(part)), ", ")
		res, err := tx.ExecContext(ctx, "DELETE FROM records WHERE id IN ("+marks+")", args...)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		n, _ := res.RowsAffected()
		removed += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit: %v", domain.ErrIndexUnavailable, err)
	}
	return int(removed), nil
}

// IDsBySource groups record ids by source path, each group in seq order.
func (s *Store) IDsBySource(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT source_path, id FROM records ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var path, id string
		if err := rows.Scan(&path, &id); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
		}
		out[path] = append(out[path], id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return out, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records").Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return n, nil
}

// Drop deletes every record and the schema row.
func (s *Store) Drop(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", domain.ErrIndexUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM records"); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM index_meta"); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrIndexUnavailable, err)
	}
	return tx.Commit()
}

func recordFailure(r domain.IndexRecord, err error) domain.RecordFailure {
	return domain.RecordFailure{
		ID:            r.ID,
		SourcePath:    r.Metadata.SourcePath,
		SequenceIndex: r.Metadata.SequenceIndex,
		Err:           err,
	}
}

// scanRecord reads one row selected with recordColumns.
func scanRecord(rows *sql.Rows) (domain.IndexRecord, error) {
	var (
		rec                         domain.IndexRecord
		blob                        []byte
		sourcePath, ext, created    string
		modified, strategy, section string
		size, seqIndex, start, end  int64
	)
	err := rows.Scan(&rec.ID, &rec.Seq, &blob, &rec.Text,
		&sourcePath, &ext, &size, &created, &modified, &seqIndex, &strategy, &section, &start, &end)
	if err != nil {
		return rec, fmt.Errorf("%w: scanning record: %v", domain.ErrIndexUnavailable, err)
	}

	rec.Metadata, err = domain.MetadataFromMap(map[string]any{
		domain.MetaSourcePath:    sourcePath,
		domain.MetaExtension:     ext,
		domain.MetaSizeBytes:     size,
		domain.MetaCreatedAt:     created,
		domain.MetaModifiedAt:    modified,
		domain.MetaSequenceIndex: seqIndex,
		domain.MetaStrategy:      strategy,
		domain.MetaSection:       section,
		domain.MetaStartLine:     start,
		domain.MetaEndLine:       end,
	})
	if err != nil {
		return rec, fmt.Errorf("record %s: %w", rec.ID, err)
	}
	rec.Vector = decodeVector(blob)
	return rec, nil
}

// encodeVector packs v as little-endian float32s.
func encodeVector(v []float32) []byte {
	blob := make([]byte, 0, 4*len(v))
	for _, f := range v {
		blob = binary.LittleEndian.AppendUint32(blob, math.Float32bits(f))
	}
	return blob
}

func decodeVector(blob []byte) []float32 {
	v := make([]float32, 0, len(blob)/4)
	for ; len(blob) >= 4; blob = blob[4:] {
		v = append(v, math.Float32frombits(binary.LittleEndian.Uint32(blob)))
	}
	return v
}
