// Package sqlitevec provides a SQLite-backed fact store using sqlite-vec for
// the semantic leg and a bleve index for the keyword leg.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/inkwellco/spool/pkg/memory"
	"github.com/inkwellco/spool/pkg/memory/bleveidx"
)

// Store implements memory.Store on SQLite with the sqlite-vec extension.
type Store struct {
	db      *sql.DB
	keyword *bleveidx.Index
	logger  *zap.Logger
}

// Config holds configuration for the SQLite fact store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// IndexPath is the path to the bleve keyword index directory. Empty
	// builds an in-memory index.
	IndexPath string

	// Dimensions is the number of dimensions for fact embeddings. Required.
	Dimensions uint
}

// NewStore creates a fact store backed by SQLite and sqlite-vec.
func NewStore(c Config, logger *zap.Logger) (*Store, error) {
	// enable connection to have sqlite-vec extension
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, fmt.Errorf("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", c.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Verify sqlite-vec is loaded
	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables use integer rowids, so facts carry the mapping
	// from string fact IDs to integer rowids.
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS facts (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			fact_id TEXT NOT NULL UNIQUE,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			confidence REAL NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			last_accessed_at TIMESTAMP NOT NULL
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating facts table: %w", err)
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_facts_owner ON facts(owner_id)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating owner index: %w", err)
	}

	createVec := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS fact_embeddings USING vec0(embedding float[%d])`,
		c.Dimensions,
	)
	if _, err := db.Exec(createVec); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vec0 table: %w", err)
	}

	keyword, err := bleveidx.New(c.IndexPath, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}

	logger.Info("sqlite-vec fact store initialized",
		zap.String("db_path", c.DBPath),
		zap.Uint("dimensions", c.Dimensions),
		zap.String("vec_version", vecVersion),
	)

	return &Store{
		db:      db,
		keyword: keyword,
		logger:  logger,
	}, nil
}

// serializeFloat32 converts a float32 slice to a little-endian byte slice
// suitable for sqlite-vec BLOB format.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 converts a little-endian byte slice back to a float32 slice.
func deserializeFloat32(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Put stores facts, replacing any existing facts with the same IDs.
func (s *Store) Put(ctx context.Context, facts []memory.Fact) error {
	if len(facts) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, fact := range facts {
		createdAt := fact.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		lastAccessed := fact.LastAccessedAt
		if lastAccessed.IsZero() {
			lastAccessed = createdAt
		}

		var rowID int64
		err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM facts WHERE fact_id = ?`, fact.ID,
		).Scan(&rowID)

		switch err {
		case nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE facts SET owner_id = ?, content = ?, category = ?, confidence = ?, created_at = ?, last_accessed_at = ? WHERE rowid = ?`,
				fact.OwnerID, fact.Content, fact.Category, fact.Confidence, createdAt, lastAccessed, rowID,
			); err != nil {
				return fmt.Errorf("updating fact %s: %w", fact.ID, err)
			}

			// vec0 does not support UPDATE, replace via DELETE + INSERT.
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM fact_embeddings WHERE rowid = ?`, rowID,
			); err != nil {
				return fmt.Errorf("deleting old embedding for fact %s: %w", fact.ID, err)
			}
		case sql.ErrNoRows:
			result, err := tx.ExecContext(ctx,
				`INSERT INTO facts(fact_id, owner_id, content, category, confidence, created_at, last_accessed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
				fact.ID, fact.OwnerID, fact.Content, fact.Category, fact.Confidence, createdAt, lastAccessed,
			)
			if err != nil {
				return fmt.Errorf("inserting fact %s: %w", fact.ID, err)
			}
			rowID, err = result.LastInsertId()
			if err != nil {
				return fmt.Errorf("getting rowid for fact %s: %w", fact.ID, err)
			}
		default:
			return fmt.Errorf("checking for existing fact %s: %w", fact.ID, err)
		}

		if len(fact.Embedding) > 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO fact_embeddings(rowid, embedding) VALUES (?, ?)`,
				rowID, serializeFloat32(fact.Embedding),
			); err != nil {
				return fmt.Errorf("inserting embedding for fact %s: %w", fact.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	for _, fact := range facts {
		if err := s.keyword.Put(fact); err != nil {
			return err
		}
	}

	s.logger.Debug("stored facts", zap.Int("count", len(facts)))

	return nil
}

// Get retrieves facts by ID, preserving the order of the IDs that exist.
func (s *Store) Get(ctx context.Context, ids []string) ([]memory.Fact, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT f.fact_id, f.owner_id, f.content, f.category, f.confidence, f.created_at, f.last_accessed_at, f.rowid
		FROM facts f
		WHERE f.fact_id IN (%s)
	`, strings.Join(placeholders, ","))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	// Collect results first so the rows cursor is closed before issuing
	// embedding queries (SQLite uses a single connection).
	type factRow struct {
		fact  memory.Fact
		rowID int64
	}
	byID := make(map[string]factRow, len(ids))

	for rows.Next() {
		var fr factRow
		if err := rows.Scan(
			&fr.fact.ID, &fr.fact.OwnerID, &fr.fact.Content, &fr.fact.Category,
			&fr.fact.Confidence, &fr.fact.CreatedAt, &fr.fact.LastAccessedAt, &fr.rowID,
		); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		byID[fr.fact.ID] = fr
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	rows.Close()

	facts := make([]memory.Fact, 0, len(byID))
	for _, id := range ids {
		fr, ok := byID[id]
		if !ok {
			continue
		}

		var embBlob []byte
		err := s.db.QueryRowContext(ctx,
			`SELECT embedding FROM fact_embeddings WHERE rowid = ?`, fr.rowID,
		).Scan(&embBlob)
		if err == nil && len(embBlob) > 0 {
			fr.fact.Embedding, _ = deserializeFloat32(embBlob)
		}

		facts = append(facts, fr.fact)
	}

	return facts, nil
}

// SemanticSearch returns the topK nearest facts matching the filter.
func (s *Store) SemanticSearch(ctx context.Context, embedding []float32, filter memory.Filter, topK int) ([]memory.SemanticHit, error) {
	if topK <= 0 {
		topK = 10
	}

	// vec0 runs the KNN before the relational filter can apply, so
	// over-fetch candidates and trim after filtering.
	knnK := topK * 8
	if knnK < 50 {
		knnK = 50
	}

	args := []any{serializeFloat32(embedding), knnK, filter.OwnerID, filter.MinConfidence}
	categoryClause := ""
	if filter.Category != "" {
		categoryClause = "AND f.category = ?"
		args = append(args, filter.Category)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
		SELECT f.fact_id, fe.distance
		FROM fact_embeddings fe
		INNER JOIN facts f ON f.rowid = fe.rowid
		WHERE fe.embedding MATCH ?
			AND fe.k = ?
			AND f.owner_id = ?
			AND f.confidence >= ?
			%s
		ORDER BY fe.distance
		LIMIT ?
	`, categoryClause)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var hits []memory.SemanticHit
	for rows.Next() {
		var hit memory.SemanticHit
		if err := rows.Scan(&hit.ID, &hit.Distance); err != nil {
			return nil, fmt.Errorf("scanning semantic hit: %w", err)
		}
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating semantic hits: %w", err)
	}

	s.logger.Debug("semantic search completed", zap.Int("hits", len(hits)))

	return hits, nil
}

// KeywordSearch runs the keyword leg over the bleve index.
func (s *Store) KeywordSearch(ctx context.Context, terms []string, filter memory.Filter, topK int) ([]memory.KeywordHit, error) {
	return s.keyword.Search(ctx, terms, filter, topK)
}

// Touch updates LastAccessedAt for the given facts.
func (s *Store) Touch(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, at)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}

	query := fmt.Sprintf(
		`UPDATE facts SET last_accessed_at = ? WHERE fact_id IN (%s)`,
		strings.Join(placeholders, ","),
	)
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("touching facts: %w", err)
	}

	return nil
}

// Close releases the database and keyword index.
func (s *Store) Close() error {
	if err := s.keyword.Close(); err != nil {
		s.db.Close()
		return err
	}
	return s.db.Close()
}
