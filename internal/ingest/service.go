// Package ingest turns uploaded files and fetched URLs into embedded
// fragments in the vector index, with a document record per source.
package ingest

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/grounded/internal/chunker"
	"github.com/mohammad-safakhou/grounded/internal/rag"
	"github.com/mohammad-safakhou/grounded/internal/store"
	"github.com/mohammad-safakhou/grounded/internal/telemetry"
)

// Embedder is the slice of the provider ingestion needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer is the slice of the vector index ingestion needs.
type Indexer interface {
	Store(ctx context.Context, fragments []rag.Fragment) error
	DeleteByDocument(ctx context.Context, documentID string) error
}

// DocumentStore persists document records alongside the index.
type DocumentStore interface {
	CreateDocument(ctx context.Context, d store.Document) error
	GetDocument(ctx context.Context, id string) (store.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Service runs the ingestion pipeline: extract, chunk, embed, index.
type Service struct {
	embedder  Embedder
	index     Indexer
	documents DocumentStore
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	client    *http.Client

	maxWords     int
	overlapWords int
}

// NewService wires the ingestion dependencies. Chunking sizes fall back to
// the package defaults when zero.
func NewService(embedder Embedder, index Indexer, documents DocumentStore, logger *log.Logger, tel *telemetry.Telemetry, maxWords, overlapWords int) *Service {
	if logger == nil {
		logger = log.New(log.Writer(), "[INGEST] ", log.LstdFlags)
	}
	if maxWords <= 0 {
		maxWords = chunker.DefaultMaxWords
	}
	if overlapWords < 0 || overlapWords >= maxWords {
		overlapWords = chunker.DefaultOverlapWords
	}
	return &Service{
		embedder:     embedder,
		index:        index,
		documents:    documents,
		logger:       logger,
		telemetry:    tel,
		client:       &http.Client{Timeout: 30 * time.Second},
		maxWords:     maxWords,
		overlapWords: overlapWords,
	}
}

// IngestFile processes one uploaded file into a knowledge base and returns
// its document record.
func (s *Service) IngestFile(ctx context.Context, kbID, name string, content []byte) (store.Document, error) {
	pages, err := ExtractPages(name, content)
	if err != nil {
		s.telemetry.RecordIngest("failed", 0)
		return store.Document{}, err
	}
	return s.ingest(ctx, kbID, name, "upload", int64(len(content)), pages)
}

// IngestURL fetches a web page into a knowledge base and returns its
// document record.
func (s *Service) IngestURL(ctx context.Context, kbID, link string) (store.Document, error) {
	pages, title, err := FetchURL(ctx, s.client, link)
	if err != nil {
		s.telemetry.RecordIngest("failed", 0)
		return store.Document{}, err
	}
	var size int64
	for _, p := range pages {
		size += int64(len(p.Text))
	}
	return s.ingest(ctx, kbID, title, link, size, pages)
}

func (s *Service) ingest(ctx context.Context, kbID, name, source string, size int64, pages []Page) (store.Document, error) {
	docID := uuid.NewString()

	var fragments []rag.Fragment
	for _, page := range pages {
		chunks, err := chunker.Chunk(page.Text, s.maxWords, s.overlapWords, name, page.Number)
		if err != nil {
			s.telemetry.RecordIngest("failed", 0)
			return store.Document{}, fmt.Errorf("chunk %s: %w", name, err)
		}
		fragments = append(fragments, chunks...)
	}
	if len(fragments) == 0 {
		s.telemetry.RecordIngest("empty", 0)
		return store.Document{}, fmt.Errorf("no extractable text in %s", name)
	}

	texts := make([]string, len(fragments))
	for i := range fragments {
		fragments[i].ID = uuid.NewString()
		fragments[i].DocumentID = docID
		fragments[i].KnowledgeBaseID = kbID
		texts[i] = fragments[i].Text
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		s.telemetry.RecordIngest("failed", 0)
		return store.Document{}, fmt.Errorf("embed fragments: %w", err)
	}
	if len(embeddings) != len(fragments) {
		s.telemetry.RecordIngest("failed", 0)
		return store.Document{}, fmt.Errorf("embedder returned %d vectors for %d fragments", len(embeddings), len(fragments))
	}
	for i := range fragments {
		fragments[i].Embedding = embeddings[i]
	}

	if err := s.index.Store(ctx, fragments); err != nil {
		s.telemetry.RecordIngest("failed", 0)
		return store.Document{}, fmt.Errorf("index fragments: %w", err)
	}

	doc := store.Document{
		ID:              docID,
		KnowledgeBaseID: kbID,
		Name:            name,
		Source:          source,
		SizeBytes:       size,
		FragmentCount:   len(fragments),
	}
	if err := s.documents.CreateDocument(ctx, doc); err != nil {
		// Roll the fragments back so the index never outlives the record.
		if derr := s.index.DeleteByDocument(ctx, docID); derr != nil {
			s.logger.Printf("document %s: rollback after record failure: %v", docID, derr)
		}
		s.telemetry.RecordIngest("failed", 0)
		return store.Document{}, fmt.Errorf("create document record: %w", err)
	}

	s.logger.Printf("document %s: ingested %d fragments from %s", docID, len(fragments), name)
	s.telemetry.RecordIngest("ok", len(fragments))
	return doc, nil
}

// DeleteDocument removes a document record and its fragments from the index.
func (s *Service) DeleteDocument(ctx context.Context, documentID string) error {
	if _, err := s.documents.GetDocument(ctx, documentID); err != nil {
		return err
	}
	if err := s.index.DeleteByDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete fragments: %w", err)
	}
	return s.documents.DeleteDocument(ctx, documentID)
}
