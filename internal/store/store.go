// Package store persists knowledge bases, documents and the append-only
// interaction log in Postgres.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store wraps the Postgres handle.
type Store struct {
	DB *sql.DB
}

// KnowledgeBase is a named partition of documents and fragments.
type KnowledgeBase struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// Document records one ingested source file or URL.
type Document struct {
	ID              string    `json:"id"`
	KnowledgeBaseID string    `json:"knowledge_base_id"`
	Name            string    `json:"name"`
	Source          string    `json:"source"`
	SizeBytes       int64     `json:"size_bytes"`
	FragmentCount   int       `json:"fragment_count"`
	CreatedAt       time.Time `json:"created_at"`
}

// DashboardStats aggregates counts for the dashboard endpoint.
type DashboardStats struct {
	KnowledgeBases int            `json:"knowledge_bases"`
	Documents      int            `json:"documents"`
	Interactions   map[string]int `json:"interactions"`
}

// NewWithDSN constructs the Store from an explicit Postgres DSN.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// CreateKnowledgeBase inserts a new knowledge base.
func (s *Store) CreateKnowledgeBase(ctx context.Context, kb KnowledgeBase) error {
	if kb.ID == "" {
		return fmt.Errorf("knowledge base id required")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO knowledge_bases (id, name, description, created_at)
VALUES ($1,$2,$3,NOW());
`, kb.ID, kb.Name, kb.Description)
	return err
}

// GetKnowledgeBase looks up one knowledge base by id.
func (s *Store) GetKnowledgeBase(ctx context.Context, id string) (KnowledgeBase, error) {
	var kb KnowledgeBase
	err := s.DB.QueryRowContext(ctx, `
SELECT id, name, description, created_at FROM knowledge_bases WHERE id=$1
`, id).Scan(&kb.ID, &kb.Name, &kb.Description, &kb.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeBase{}, ErrNotFound
	}
	return kb, err
}

// ListKnowledgeBases returns all knowledge bases, newest first.
func (s *Store) ListKnowledgeBases(ctx context.Context) ([]KnowledgeBase, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, name, description, created_at FROM knowledge_bases ORDER BY created_at DESC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []KnowledgeBase
	for rows.Next() {
		var kb KnowledgeBase
		if err := rows.Scan(&kb.ID, &kb.Name, &kb.Description, &kb.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, kb)
	}
	return out, rows.Err()
}

// DeleteKnowledgeBase removes a knowledge base and its document records in
// one transaction. Fragment cleanup in the vector index is the caller's
// responsibility.
func (s *Store) DeleteKnowledgeBase(ctx context.Context, id string) (err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM documents WHERE kb_id=$1`, id); err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `DELETE FROM knowledge_bases WHERE id=$1`, id)
	return err
}

// CreateDocument inserts a document record.
func (s *Store) CreateDocument(ctx context.Context, d Document) error {
	if d.ID == "" || d.KnowledgeBaseID == "" {
		return fmt.Errorf("document id and knowledge base id required")
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO documents (id, kb_id, name, source, size_bytes, fragment_count, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW());
`, d.ID, d.KnowledgeBaseID, d.Name, d.Source, d.SizeBytes, d.FragmentCount)
	return err
}

// GetDocument looks up one document by id.
func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	var d Document
	err := s.DB.QueryRowContext(ctx, `
SELECT id, kb_id, name, source, size_bytes, fragment_count, created_at FROM documents WHERE id=$1
`, id).Scan(&d.ID, &d.KnowledgeBaseID, &d.Name, &d.Source, &d.SizeBytes, &d.FragmentCount, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns a knowledge base's documents, newest first.
func (s *Store) ListDocuments(ctx context.Context, kbID string) ([]Document, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, kb_id, name, source, size_bytes, fragment_count, created_at
FROM documents
WHERE kb_id=$1
ORDER BY created_at DESC
`, kbID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Document
	for rows.Next() {
		var d Document
		if err := rows.Scan(&d.ID, &d.KnowledgeBaseID, &d.Name, &d.Source, &d.SizeBytes, &d.FragmentCount, &d.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteDocument removes a document record.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM documents WHERE id=$1`, id)
	return err
}

// SaveInteraction appends one interaction. Interactions are never updated:
// every query execution writes exactly one new row.
func (s *Store) SaveInteraction(ctx context.Context, in rag.Interaction) error {
	if in.ID == "" {
		return fmt.Errorf("interaction id required")
	}
	citations := in.Citations
	if citations == nil {
		citations = []rag.Citation{}
	}
	citBytes, err := json.Marshal(citations)
	if err != nil {
		return fmt.Errorf("marshal citations: %w", err)
	}
	var answer sql.NullString
	if in.Answer != "" {
		answer = sql.NullString{String: in.Answer, Valid: true}
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO interactions (id, kb_id, question, answer, status, citations, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW());
`, in.ID, in.KnowledgeBaseID, in.Question, answer, string(in.Status), citBytes)
	return err
}

// GetInteraction looks up one interaction by id.
func (s *Store) GetInteraction(ctx context.Context, id string) (rag.Interaction, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, kb_id, question, answer, status, citations, created_at FROM interactions WHERE id=$1
`, id)
	in, err := scanInteraction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return rag.Interaction{}, ErrNotFound
	}
	return in, err
}

// ListInteractions returns interactions most recent first. An empty kbID
// lists across all knowledge bases.
func (s *Store) ListInteractions(ctx context.Context, kbID string, limit, offset int) ([]rag.Interaction, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, kb_id, question, answer, status, citations, created_at
FROM interactions
WHERE ($1 = '' OR kb_id = $1)
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`, kbID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []rag.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// Dashboard aggregates record counts, including interactions per status.
func (s *Store) Dashboard(ctx context.Context) (DashboardStats, error) {
	stats := DashboardStats{Interactions: map[string]int{}}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM knowledge_bases`).Scan(&stats.KnowledgeBases); err != nil {
		return stats, err
	}
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&stats.Documents); err != nil {
		return stats, err
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM interactions GROUP BY status`)
	if err != nil {
		return stats, err
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return stats, err
		}
		stats.Interactions[status] = count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanInteraction(row rowScanner) (rag.Interaction, error) {
	var (
		in       rag.Interaction
		answer   sql.NullString
		status   string
		citBytes []byte
	)
	if err := row.Scan(&in.ID, &in.KnowledgeBaseID, &in.Question, &answer, &status, &citBytes, &in.CreatedAt); err != nil {
		return rag.Interaction{}, err
	}
	in.Answer = answer.String
	in.Status = rag.InteractionStatus(status)
	if len(citBytes) > 0 {
		if err := json.Unmarshal(citBytes, &in.Citations); err != nil {
			return rag.Interaction{}, fmt.Errorf("unmarshal citations: %w", err)
		}
	}
	if in.Citations == nil {
		in.Citations = []rag.Citation{}
	}
	return in, nil
}
