// Package rag holds the data types shared across the retrieval-augmented
// query pipeline: fragments, grounding decisions, citations and interactions.
package rag

import "time"

// UnknownMessage is the fixed refusal returned whenever the pipeline cannot
// verify an answer against the knowledge base.
const UnknownMessage = "I don't have that information in the provided knowledge base."

// Metadata keys attached to fragments at chunk time.
const (
	MetaSourceDocument = "source_document"
	MetaPage           = "page"
	MetaStartWord      = "start_word"
)

// InteractionStatus is the terminal outcome of one query execution.
type InteractionStatus string

const (
	StatusAnswered InteractionStatus = "answered"
	StatusUnknown  InteractionStatus = "unknown"
	StatusError    InteractionStatus = "error"
)

// Fragment is a bounded slice of document text carrying retrieval metadata
// and, once embedded, its vector representation. Fragments are immutable
// after they reach an index.
type Fragment struct {
	ID              string                 `json:"id"`
	DocumentID      string                 `json:"document_id"`
	KnowledgeBaseID string                 `json:"knowledge_base_id"`
	Text            string                 `json:"text"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
	// Embedding is optional at creation time; fragments without one are
	// skipped by index stores rather than rejected.
	Embedding []float32 `json:"-"`
}

// SourceDocument returns the source_document metadata value, if present.
func (f Fragment) SourceDocument() string {
	if f.Metadata == nil {
		return ""
	}
	if v, ok := f.Metadata[MetaSourceDocument].(string); ok {
		return v
	}
	return ""
}

// Page returns the page metadata value, or 0 when absent.
func (f Fragment) Page() int {
	if f.Metadata == nil {
		return 0
	}
	switch v := f.Metadata[MetaPage].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// GroundingDecision is the result of checking a generated answer against the
// retrieved fragments. It is computed once per query and never persisted on
// its own; only the supporting set is reflected into citations.
type GroundingDecision struct {
	IsGrounded          bool
	Confidence          float64
	Reasoning           string
	SupportingFragments map[string]struct{}
}

// Supports reports whether the fragment id is in the supporting set.
func (d GroundingDecision) Supports(id string) bool {
	_, ok := d.SupportingFragments[id]
	return ok
}

// Citation points an answer back at a supporting fragment.
type Citation struct {
	SourceDocument string  `json:"source_document"`
	Page           int     `json:"page,omitempty"`
	FragmentID     string  `json:"fragment_id"`
	RelevanceScore float64 `json:"relevance_score"`
}

// Interaction is the durable, append-only record of one query execution.
// It is created exactly once per execution and never mutated afterwards.
type Interaction struct {
	ID              string            `json:"id"`
	KnowledgeBaseID string            `json:"knowledge_base_id"`
	Question        string            `json:"question"`
	Answer          string            `json:"answer,omitempty"`
	Status          InteractionStatus `json:"status"`
	Citations       []Citation        `json:"citations"`
	CreatedAt       time.Time         `json:"created_at"`
}

// QueryResult is the caller-facing outcome of one query execution. The
// answered and unknown shapes are deliberately indistinguishable apart from
// their content, so a caller cannot tell retrieval-empty from
// grounding-rejected without inspecting the persisted interaction.
type QueryResult struct {
	Status        InteractionStatus `json:"status"`
	Answer        string            `json:"answer,omitempty"`
	Citations     []Citation        `json:"citations"`
	InteractionID string            `json:"interaction_id"`
}
