package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// Postgres is the library-backed vector index, storing fragment embeddings
// in a pgvector column. Scope filtering happens in SQL on the denormalized
// kb_id column, so no cross-reference against the document store is needed
// at search time. Deletions are single statements and therefore atomic
// towards concurrent searches.
//
// The fragments table keys rows by an internal sequence, not by fragment id:
// re-storing an id deliberately duplicates the entry, matching the in-memory
// backend.
type Postgres struct {
	db        *sql.DB
	dimension int
}

// NewPostgres wraps an open database handle. The dimension must match the
// vector column declared in the migrations.
func NewPostgres(db *sql.DB, dimension int) (*Postgres, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index: dimension must be positive, got %d", dimension)
	}
	return &Postgres{db: db, dimension: dimension}, nil
}

// Store inserts all fragments carrying an embedding.
func (p *Postgres) Store(ctx context.Context, fragments []rag.Fragment) error {
	accepted := make([]rag.Fragment, 0, len(fragments))
	for _, f := range fragments {
		if f.Embedding == nil {
			continue
		}
		if len(f.Embedding) != p.dimension {
			return fmt.Errorf("index: store fragment %s: %w (got %d, want %d)", f.ID, ErrDimensionMismatch, len(f.Embedding), p.dimension)
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
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

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO fragments (id, document_id, kb_id, content, metadata, embedding, created_at)
VALUES ($1,$2,$3,$4,$5,$6::vector,NOW());
`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, f := range accepted {
		vectorLiteral, verr := encodeVectorLiteral(f.Embedding)
		if verr != nil {
			err = verr
			return err
		}
		meta := f.Metadata
		if meta == nil {
			meta = map[string]interface{}{}
		}
		metaBytes, merr := json.Marshal(meta)
		if merr != nil {
			err = fmt.Errorf("marshal metadata: %w", merr)
			return err
		}
		if _, err = stmt.ExecContext(ctx, f.ID, f.DocumentID, f.KnowledgeBaseID, f.Text, metaBytes, vectorLiteral); err != nil {
			return err
		}
	}
	return nil
}

// Search returns the topK nearest fragments within the knowledge base.
// pgvector's <-> operator orders by Euclidean distance, which yields the
// same ordering as squared Euclidean.
func (p *Postgres) Search(ctx context.Context, vector []float32, kbID string, topK int) ([]rag.Fragment, error) {
	if len(vector) != p.dimension {
		return nil, fmt.Errorf("index: search: %w (got %d, want %d)", ErrDimensionMismatch, len(vector), p.dimension)
	}
	if topK <= 0 {
		return nil, nil
	}
	vectorLiteral, err := encodeVectorLiteral(vector)
	if err != nil {
		return nil, err
	}
	rows, err := p.db.QueryContext(ctx, `
SELECT id, document_id, kb_id, content, metadata
FROM fragments
WHERE kb_id = $2
ORDER BY embedding <-> $1::vector
LIMIT $3
`, vectorLiteral, kbID, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []rag.Fragment
	for rows.Next() {
		var (
			f         rag.Fragment
			metaBytes []byte
		)
		if err := rows.Scan(&f.ID, &f.DocumentID, &f.KnowledgeBaseID, &f.Text, &metaBytes); err != nil {
			return nil, err
		}
		if len(metaBytes) > 0 {
			if err := json.Unmarshal(metaBytes, &f.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		results = append(results, f)
	}
	return results, rows.Err()
}

// DeleteByDocument removes every fragment owned by the document.
func (p *Postgres) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM fragments WHERE document_id=$1`, documentID)
	return err
}

// DeleteByKnowledgeBase removes every fragment scoped to the knowledge base.
func (p *Postgres) DeleteByKnowledgeBase(ctx context.Context, kbID string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM fragments WHERE kb_id=$1`, kbID)
	return err
}

func encodeVectorLiteral(vec []float32) (string, error) {
	if len(vec) == 0 {
		return "", fmt.Errorf("vector must not be empty")
	}
	var builder strings.Builder
	builder.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	builder.WriteByte(']')
	return builder.String(), nil
}

var _ Index = (*Postgres)(nil)
