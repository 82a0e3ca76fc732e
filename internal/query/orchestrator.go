// Package query runs the retrieval-augmented question pipeline: embed the
// question, retrieve nearby fragments, generate an answer and verify it is
// grounded before anything is returned to the caller.
package query

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/grounded/internal/grounding"
	"github.com/mohammad-safakhou/grounded/internal/rag"
	"github.com/mohammad-safakhou/grounded/internal/telemetry"
)

// LLM is the slice of the provider the orchestrator needs.
type LLM interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever searches the vector index scoped to one knowledge base.
type Retriever interface {
	Search(ctx context.Context, vector []float32, kbID string, topK int) ([]rag.Fragment, error)
}

// InteractionLog persists the audit record of each execution.
type InteractionLog interface {
	SaveInteraction(ctx context.Context, in rag.Interaction) error
}

// Orchestrator coordinates one query execution end to end.
type Orchestrator struct {
	llm         LLM
	retriever   Retriever
	log         InteractionLog
	logger      *log.Logger
	telemetry   *telemetry.Telemetry
	topK        int
	callTimeout time.Duration
}

// NewOrchestrator wires the pipeline dependencies. topK and callTimeout fall
// back to sane defaults when zero.
func NewOrchestrator(llm LLM, retriever Retriever, interactions InteractionLog, logger *log.Logger, tel *telemetry.Telemetry, topK int, callTimeout time.Duration) *Orchestrator {
	if logger == nil {
		logger = log.New(log.Writer(), "[QUERY] ", log.LstdFlags)
	}
	if topK <= 0 {
		topK = 5
	}
	if callTimeout <= 0 {
		callTimeout = 120 * time.Second
	}
	return &Orchestrator{
		llm:         llm,
		retriever:   retriever,
		log:         interactions,
		logger:      logger,
		telemetry:   tel,
		topK:        topK,
		callTimeout: callTimeout,
	}
}

// Execute answers one question against a knowledge base. Every execution
// that reaches a final status persists exactly one interaction; provider
// failures return an error after a best-effort ERROR record.
func (o *Orchestrator) Execute(ctx context.Context, kbID, question string) (rag.QueryResult, error) {
	id := uuid.NewString()

	embedStart := time.Now()
	vector, err := o.withTimeout(ctx, func(c context.Context) ([]float32, error) {
		return o.llm.Embed(c, question)
	})
	o.telemetry.ObserveStage("embed", time.Since(embedStart))
	if err != nil {
		return o.fail(ctx, id, kbID, question, fmt.Errorf("embed question: %w", err))
	}

	searchStart := time.Now()
	fragments, err := o.retriever.Search(ctx, vector, kbID, o.topK)
	o.telemetry.ObserveStage("search", time.Since(searchStart))
	if err != nil {
		return o.fail(ctx, id, kbID, question, fmt.Errorf("vector search: %w", err))
	}

	if len(fragments) == 0 {
		o.logger.Printf("interaction %s: no fragments retrieved for kb %s", id, kbID)
		return o.finish(ctx, rag.Interaction{
			ID:              id,
			KnowledgeBaseID: kbID,
			Question:        question,
			Answer:          rag.UnknownMessage,
			Status:          rag.StatusUnknown,
			Citations:       []rag.Citation{},
		})
	}

	generateStart := time.Now()
	answer, err := o.withTimeoutString(ctx, func(c context.Context) (string, error) {
		return o.llm.Generate(c, buildPrompt(question, fragments))
	})
	o.telemetry.ObserveStage("generate", time.Since(generateStart))
	if err != nil {
		return o.fail(ctx, id, kbID, question, fmt.Errorf("generate answer: %w", err))
	}

	decision := grounding.Evaluate(question, answer, fragments)
	o.logger.Printf("interaction %s: grounded=%v confidence=%.2f (%s)", id, decision.IsGrounded, decision.Confidence, decision.Reasoning)

	// The generated answer is discarded; the record carries the refusal.
	if !decision.IsGrounded {
		return o.finish(ctx, rag.Interaction{
			ID:              id,
			KnowledgeBaseID: kbID,
			Question:        question,
			Answer:          rag.UnknownMessage,
			Status:          rag.StatusUnknown,
			Citations:       []rag.Citation{},
		})
	}

	citations := make([]rag.Citation, 0, len(fragments))
	for _, f := range fragments {
		if !decision.Supports(f.ID) {
			continue
		}
		citations = append(citations, rag.Citation{
			SourceDocument: f.SourceDocument(),
			Page:           f.Page(),
			FragmentID:     f.ID,
		})
	}

	return o.finish(ctx, rag.Interaction{
		ID:              id,
		KnowledgeBaseID: kbID,
		Question:        question,
		Answer:          answer,
		Status:          rag.StatusAnswered,
		Citations:       citations,
	})
}

// finish persists the interaction and shapes the caller-facing result.
func (o *Orchestrator) finish(ctx context.Context, in rag.Interaction) (rag.QueryResult, error) {
	in.CreatedAt = time.Now().UTC()
	if err := o.log.SaveInteraction(ctx, in); err != nil {
		return rag.QueryResult{}, fmt.Errorf("save interaction: %w", err)
	}
	o.telemetry.RecordQuery(string(in.Status))

	return rag.QueryResult{
		Status:        in.Status,
		Answer:        in.Answer,
		Citations:     in.Citations,
		InteractionID: in.ID,
	}, nil
}

// fail records an ERROR interaction best effort and surfaces the cause. The
// returned result still carries the error status and interaction id so the
// caller can look the record up.
func (o *Orchestrator) fail(ctx context.Context, id, kbID, question string, cause error) (rag.QueryResult, error) {
	o.logger.Printf("interaction %s: %v", id, cause)
	o.telemetry.RecordQuery(string(rag.StatusError))
	in := rag.Interaction{
		ID:              id,
		KnowledgeBaseID: kbID,
		Question:        question,
		Status:          rag.StatusError,
		Citations:       []rag.Citation{},
		CreatedAt:       time.Now().UTC(),
	}
	if err := o.log.SaveInteraction(ctx, in); err != nil {
		o.logger.Printf("interaction %s: persisting error record failed: %v", id, err)
	}
	return rag.QueryResult{
		Status:        rag.StatusError,
		Citations:     []rag.Citation{},
		InteractionID: id,
	}, cause
}

func (o *Orchestrator) withTimeout(ctx context.Context, fn func(context.Context) ([]float32, error)) ([]float32, error) {
	c, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return fn(c)
}

func (o *Orchestrator) withTimeoutString(ctx context.Context, fn func(context.Context) (string, error)) (string, error) {
	c, cancel := context.WithTimeout(ctx, o.callTimeout)
	defer cancel()
	return fn(c)
}

// buildPrompt renders retrieved fragments into the generation prompt.
func buildPrompt(question string, fragments []rag.Fragment) string {
	var sb strings.Builder
	sb.WriteString("Answer the following question based ONLY on the provided context. If the context doesn't contain the answer, say so.\n\nContext:\n")
	for _, f := range fragments {
		sb.WriteString("[Chunk ")
		sb.WriteString(f.ID)
		sb.WriteString("]: ")
		sb.WriteString(f.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
