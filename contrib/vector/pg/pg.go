// Package pg implements the knowledge store on PostgreSQL with the pgvector
// extension. Chunk metadata lives in a JSONB column so category filters run
// inside the similarity query.
package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/triagehq/triage/errors"
	"github.com/triagehq/triage/vector"
)

// Config holds pgvector connection configuration.
type Config struct {
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	SSLMode   string
	Dimension int    // Embedding dimension (default: 1536 for OpenAI)
	TableName string // Table name (default: kb_chunks)
}

// DefaultConfig returns default pgvector configuration.
func DefaultConfig() *Config {
	return &Config{
		Host:      "127.0.0.1",
		Port:      5432,
		User:      "postgres",
		Password:  "postgres",
		DBName:    "triage",
		SSLMode:   "disable",
		Dimension: 1536,
		TableName: "kb_chunks",
	}
}

// Store is a pgvector-backed vector.Store.
type Store struct {
	db        *sql.DB
	dimension int
	tableName string
}

// New connects to PostgreSQL, enables pgvector, and creates the chunk table.
func New(config *Config) (*Store, error) {
	if config == nil {
		config = DefaultConfig()
	}

	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		config.Host, config.Port, config.User, config.Password, config.DBName, config.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping PostgreSQL: %w", err)
	}

	store := &Store{
		db:        db,
		dimension: config.Dimension,
		tableName: config.TableName,
	}
	if err := store.setup(context.Background()); err != nil {
		return nil, fmt.Errorf("setup pgvector: %w", err)
	}
	return store, nil
}

func (s *Store) setup(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	createTableSQL := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(255) PRIMARY KEY,
		text TEXT NOT NULL,
		embedding vector(%d) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, s.tableName, s.dimension)

	if _, err := s.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("create table: %w", err)
	}
	return nil
}

// Dimension returns the fixed embedding dimension.
func (s *Store) Dimension() int {
	return s.dimension
}

// Add inserts or replaces a record.
func (s *Store) Add(ctx context.Context, rec *vector.Record) error {
	if rec == nil {
		return fmt.Errorf("record cannot be nil")
	}
	if rec.ID == "" {
		return fmt.Errorf("record ID cannot be empty")
	}
	if len(rec.Vector) != s.dimension {
		return fmt.Errorf("record %s has dimension %d, store expects %d: %w",
			rec.ID, len(rec.Vector), s.dimension, vector.ErrDimensionMismatch)
	}

	metadata, err := json.Marshal(nonNil(rec.Metadata))
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, text, embedding, metadata)
	VALUES ($1, $2, $3::vector, $4)
	ON CONFLICT (id) DO UPDATE SET
		text = EXCLUDED.text,
		embedding = EXCLUDED.embedding,
		metadata = EXCLUDED.metadata,
		created_at = CURRENT_TIMESTAMP
	`, s.tableName)

	if _, err := s.db.ExecContext(ctx, query, rec.ID, rec.Text, vectorToString(rec.Vector), metadata); err != nil {
		return fmt.Errorf("add record: %w", err)
	}
	return nil
}

// Search runs a cosine-distance query, optionally restricted by metadata.
func (s *Store) Search(ctx context.Context, queryVector []float32, topK int, filter map[string]string) ([]vector.Match, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if len(queryVector) != s.dimension {
		return nil, fmt.Errorf("query has dimension %d, store expects %d: %w",
			len(queryVector), s.dimension, vector.ErrDimensionMismatch)
	}
	if topK <= 0 {
		topK = 10
	}

	args := []any{vectorToString(queryVector)}
	where := ""
	if len(filter) > 0 {
		filterJSON, err := json.Marshal(filter)
		if err != nil {
			return nil, fmt.Errorf("marshal filter: %w", err)
		}
		where = "WHERE metadata @> $2"
		args = append(args, filterJSON)
	}
	args = append(args, topK)

	query := fmt.Sprintf(`
	SELECT id, text, embedding, metadata, 1 - (embedding <=> $1::vector) AS similarity
	FROM %s
	%s
	ORDER BY embedding <=> $1::vector
	LIMIT $%d
	`, s.tableName, where, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search records: %w", err)
	}
	defer rows.Close()

	matches := make([]vector.Match, 0, topK)
	for rows.Next() {
		var id, text, vecStr string
		var metadataRaw []byte
		var similarity float64

		if err := rows.Scan(&id, &text, &vecStr, &metadataRaw, &similarity); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		vec, err := stringToVector(vecStr)
		if err != nil {
			return nil, fmt.Errorf("parse vector for record %s: %w", id, err)
		}
		var metadata map[string]string
		if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
			return nil, fmt.Errorf("parse metadata for record %s: %w", id, err)
		}

		matches = append(matches, vector.Match{
			Record: &vector.Record{ID: id, Text: text, Vector: vec, Metadata: metadata},
			Score:  float32(similarity),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return matches, nil
}

// Delete removes a record by ID.
func (s *Store) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("record %s: %w", id, errors.ErrNotFound)
	}
	return nil
}

// Get retrieves a specific record by ID.
func (s *Store) Get(ctx context.Context, id string) (*vector.Record, error) {
	query := fmt.Sprintf("SELECT id, text, embedding, metadata FROM %s WHERE id = $1", s.tableName)

	var recID, text, vecStr string
	var metadataRaw []byte
	err := s.db.QueryRowContext(ctx, query, id).Scan(&recID, &text, &vecStr, &metadataRaw)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s: %w", id, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}

	vec, err := stringToVector(vecStr)
	if err != nil {
		return nil, fmt.Errorf("parse vector: %w", err)
	}
	var metadata map[string]string
	if err := json.Unmarshal(metadataRaw, &metadata); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &vector.Record{ID: recID, Text: text, Vector: vec, Metadata: metadata}, nil
}

// Clear removes all records.
func (s *Store) Clear(ctx context.Context) error {
	query := fmt.Sprintf("TRUNCATE TABLE %s", s.tableName)
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("clear records: %w", err)
	}
	return nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", s.tableName)
	var count int
	if err := s.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func vectorToString(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'f', -1, 32)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func stringToVector(s string) ([]float32, error) {
	s = strings.Trim(strings.TrimSpace(s), "[]")
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	vec := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse component %d: %w", i, err)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

func nonNil(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
