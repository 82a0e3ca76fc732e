// Package chunker splits extracted document text into overlapping word
// windows suitable for embedding and retrieval.
package chunker

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// Defaults mirror the ingestion settings the service ships with.
const (
	DefaultMaxWords     = 512
	DefaultOverlapWords = 50
)

// Chunk splits text on whitespace and produces consecutive windows of
// maxWords words, each window starting maxWords-overlapWords after the
// previous one. The last window may be shorter; no empty trailing window is
// emitted. Empty or whitespace-only input yields no fragments.
//
// The returned fragments are candidates only: they carry text and positional
// metadata but no id, document ownership or embedding yet.
func Chunk(text string, maxWords, overlapWords int, sourceDocument string, page int) ([]rag.Fragment, error) {
	if maxWords <= 0 {
		return nil, fmt.Errorf("chunker: max_words must be positive, got %d", maxWords)
	}
	if overlapWords < 0 {
		return nil, fmt.Errorf("chunker: overlap_words must not be negative, got %d", overlapWords)
	}
	// The window must advance every step; an overlap >= window size would
	// loop forever.
	if overlapWords >= maxWords {
		return nil, fmt.Errorf("chunker: overlap_words (%d) must be smaller than max_words (%d)", overlapWords, maxWords)
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}

	var fragments []rag.Fragment
	start := 0
	for start < len(words) {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		fragments = append(fragments, rag.Fragment{
			Text: strings.Join(words[start:end], " "),
			Metadata: map[string]interface{}{
				rag.MetaSourceDocument: sourceDocument,
				rag.MetaPage:           page,
				rag.MetaStartWord:      start,
			},
		})
		if end >= len(words) {
			break
		}
		start = end - overlapWords
	}
	return fragments, nil
}
