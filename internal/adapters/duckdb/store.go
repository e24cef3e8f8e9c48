package duckdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/policyradar/policyradar/internal/core/domain"
	"github.com/policyradar/policyradar/internal/core/ports"
)

// Store is the DuckDB-backed persistence layer: namespaced vector tables for
// retrieval memory plus session and message tables.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database and applies the base schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	s := &Store{db: db}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) init() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS mem_namespaces (
			name VARCHAR PRIMARY KEY,
			dim  INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id           VARCHAR PRIMARY KEY,
			title        VARCHAR,
			created_at   TIMESTAMP,
			last_handle  VARCHAR,
			last_message VARCHAR,
			updated_at   TIMESTAMP
		)`,
		`CREATE SEQUENCE IF NOT EXISTS messages_seq`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         BIGINT PRIMARY KEY,
			session_id VARCHAR NOT NULL,
			role       VARCHAR NOT NULL,
			content    VARCHAR,
			sources    VARCHAR,
			created_at TIMESTAMP
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

var namespacePattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Namespace table names are built from embedding configs; reject anything
// that is not a plain identifier before it reaches SQL.
func validNamespace(name string) error {
	if !namespacePattern.MatchString(name) {
		return fmt.Errorf("invalid namespace: %q", name)
	}
	return nil
}

// EnsureNamespace creates the vector table for a namespace if missing and
// records its dimension.
func (s *Store) EnsureNamespace(ctx context.Context, namespace string, dim int) error {
	if err := validNamespace(namespace); err != nil {
		return err
	}
	if dim <= 0 {
		return fmt.Errorf("invalid embedding dimension: %d", dim)
	}

	var existing int
	err := s.db.QueryRowContext(ctx,
		`SELECT dim FROM mem_namespaces WHERE name = ?`, namespace).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return fmt.Errorf("lookup namespace: %w", err)
	}

	create := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id          VARCHAR PRIMARY KEY,
		session_id  VARCHAR NOT NULL,
		doc_key     VARCHAR NOT NULL,
		chunk_index INTEGER NOT NULL,
		text        VARCHAR,
		doc_hash    VARCHAR NOT NULL,
		metadata    VARCHAR,
		embedding   FLOAT[%d]
	)`, namespace, dim)
	if _, err := s.db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create namespace table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO mem_namespaces (name, dim) VALUES (?, ?)
		 ON CONFLICT (name) DO NOTHING`, namespace, dim); err != nil {
		return fmt.Errorf("record namespace: %w", err)
	}
	return nil
}

// RecreateNamespace drops a namespace's table and rebuilds it for a new
// dimension. Other namespaces are untouched.
func (s *Store) RecreateNamespace(ctx context.Context, namespace string, dim int) error {
	if err := validNamespace(namespace); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, namespace)); err != nil {
		return fmt.Errorf("drop namespace table: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM mem_namespaces WHERE name = ?`, namespace); err != nil {
		return fmt.Errorf("forget namespace: %w", err)
	}
	return s.EnsureNamespace(ctx, namespace, dim)
}

// HasChunkSet reports whether an identical document version is already
// indexed for the session.
func (s *Store) HasChunkSet(ctx context.Context, namespace, sessionID, docKey, docHash string) (bool, error) {
	if err := validNamespace(namespace); err != nil {
		return false, err
	}
	if known, err := s.namespaceExists(ctx, namespace); err != nil || !known {
		return false, err
	}

	var count int
	query := fmt.Sprintf(
		`SELECT count(*) FROM %s WHERE session_id = ? AND doc_key = ? AND doc_hash = ?`, namespace)
	if err := s.db.QueryRowContext(ctx, query, sessionID, docKey, docHash).Scan(&count); err != nil {
		return false, fmt.Errorf("check chunk set: %w", err)
	}
	return count > 0, nil
}

// ReplaceChunks atomically swaps the chunk set for (session, doc_key). A
// vector whose dimension differs from the namespace's yields
// domain.ErrDimensionMismatch without touching any rows.
func (s *Store) ReplaceChunks(ctx context.Context, namespace string, chunks []domain.MemoryChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := validNamespace(namespace); err != nil {
		return err
	}

	var dim int
	err := s.db.QueryRowContext(ctx,
		`SELECT dim FROM mem_namespaces WHERE name = ?`, namespace).Scan(&dim)
	if err == sql.ErrNoRows {
		return fmt.Errorf("namespace not initialized: %s", namespace)
	}
	if err != nil {
		return fmt.Errorf("lookup namespace: %w", err)
	}
	for _, c := range chunks {
		if len(c.Embedding) != dim {
			return fmt.Errorf("namespace %s expects dimension %d, got %d: %w",
				namespace, dim, len(c.Embedding), domain.ErrDimensionMismatch)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	del := fmt.Sprintf(`DELETE FROM %s WHERE session_id = ? AND doc_key = ?`, namespace)
	if _, err := tx.ExecContext(ctx, del, chunks[0].SessionID, chunks[0].DocKey); err != nil {
		return fmt.Errorf("delete prior chunk set: %w", err)
	}

	ins := fmt.Sprintf(`INSERT INTO %s
		(id, session_id, doc_key, chunk_index, text, doc_hash, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, CAST(? AS FLOAT[%d]))`, namespace, dim)
	for _, c := range chunks {
		metaJSON, _ := json.Marshal(c.Metadata)
		_, err := tx.ExecContext(ctx, ins,
			c.ID, c.SessionID, c.DocKey, c.ChunkIndex, c.Text, c.DocHash,
			string(metaJSON), vectorLiteral(c.Embedding))
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
	}
	return tx.Commit()
}

// Query returns the session's top-k chunks ranked by cosine similarity.
func (s *Store) Query(ctx context.Context, namespace, sessionID string, embedding []float32, topK int) ([]domain.MemoryMatch, error) {
	if err := validNamespace(namespace); err != nil {
		return nil, err
	}
	if topK <= 0 {
		topK = 5
	}
	known, err := s.namespaceExists(ctx, namespace)
	if err != nil || !known {
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT text, doc_key, chunk_index, metadata,
		       list_cosine_similarity(embedding, CAST(? AS FLOAT[%d])) AS score
		FROM %s
		WHERE session_id = ?
		ORDER BY score DESC
		LIMIT ?`, len(embedding), namespace)

	rows, err := s.db.QueryContext(ctx, query, vectorLiteral(embedding), sessionID, topK)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.MemoryMatch
	for rows.Next() {
		var m domain.MemoryMatch
		var metaJSON sql.NullString
		var score sql.NullFloat64
		if err := rows.Scan(&m.Text, &m.DocKey, &m.Index, &metaJSON, &score); err != nil {
			return nil, err
		}
		m.Score = score.Float64
		if metaJSON.Valid && metaJSON.String != "" && metaJSON.String != "null" {
			_ = json.Unmarshal([]byte(metaJSON.String), &m.Metadata)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSession purges a session's chunks from every namespace.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM mem_namespaces`)
	if err != nil {
		return fmt.Errorf("list namespaces: %w", err)
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, name := range names {
		if err := validNamespace(name); err != nil {
			continue
		}
		del := fmt.Sprintf(`DELETE FROM %s WHERE session_id = ?`, name)
		if _, err := s.db.ExecContext(ctx, del, sessionID); err != nil {
			return fmt.Errorf("purge session from %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) namespaceExists(ctx context.Context, namespace string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM mem_namespaces WHERE name = ?`, namespace).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup namespace: %w", err)
	}
	return true, nil
}

// vectorLiteral renders a vector as DuckDB list syntax for a FLOAT[] cast.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

var _ ports.VectorStore = (*Store)(nil)
