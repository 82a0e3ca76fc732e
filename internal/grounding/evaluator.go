// Package grounding decides whether a generated answer is lexically
// supported by the fragments retrieved for a query. Every answer a caller
// ever sees passes through Evaluate; the confidence threshold here is the
// gate for the whole system.
package grounding

import (
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/grounded/internal/rag"
)

// ConfidenceThreshold is the fixed minimum share of meaningful answer words
// that must appear in the retrieved text for the answer to count as grounded.
const ConfidenceThreshold = 0.30

// stopwords are excluded from the meaningful-word comparison: articles,
// common pronouns, auxiliary verbs, conjunctions and frequent prepositions.
var stopwords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"the", "a", "an",
		"i", "you", "he", "she", "it", "we", "they",
		"me", "him", "her", "us", "them",
		"my", "your", "his", "its", "our", "their",
		"this", "that", "these", "those",
		"is", "are", "was", "were", "be", "been", "being",
		"am", "do", "does", "did", "have", "has", "had",
		"will", "would", "can", "could", "should", "shall", "may", "might", "must",
		"and", "or", "but", "nor", "so", "yet",
		"if", "then", "than", "as", "because", "while",
		"in", "on", "at", "to", "of", "for", "with", "by", "from",
		"not", "no",
	} {
		stopwords[w] = struct{}{}
	}
}

// Evaluate scores how much of the answer's meaningful vocabulary occurs in
// the retrieved fragments. It is a pure function: identical inputs always
// produce the identical decision.
//
// Matching is naive substring containment over the lower-cased concatenated
// fragment text. Short meaningful words can therefore match inside unrelated
// longer words ("an" inside "bananas"); that imprecision is part of the
// documented behaviour the 0.30 threshold was tuned against, so it must not
// be tightened to token matching.
func Evaluate(question, answer string, fragments []rag.Fragment) rag.GroundingDecision {
	if len(fragments) == 0 {
		return rag.GroundingDecision{
			IsGrounded: false,
			Confidence: 0.0,
			Reasoning:  "No chunks retrieved",
		}
	}

	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = strings.ToLower(f.Text)
	}
	corpus := strings.Join(texts, " ")

	meaningful := meaningfulWords(answer)
	if len(meaningful) == 0 {
		return rag.GroundingDecision{
			IsGrounded: false,
			Confidence: 0.0,
			Reasoning:  "No meaningful content in answer",
		}
	}

	overlap := 0
	for word := range meaningful {
		if strings.Contains(corpus, word) {
			overlap++
		}
	}
	confidence := float64(overlap) / float64(len(meaningful))

	supporting := make(map[string]struct{})
	for i, f := range fragments {
		for word := range meaningful {
			if strings.Contains(texts[i], word) {
				supporting[f.ID] = struct{}{}
				break
			}
		}
	}

	return rag.GroundingDecision{
		IsGrounded:          confidence >= ConfidenceThreshold,
		Confidence:          confidence,
		Reasoning:           fmt.Sprintf("%d of %d meaningful words found in retrieved chunks", overlap, len(meaningful)),
		SupportingFragments: supporting,
	}
}

// meaningfulWords tokenizes the answer by whitespace, lower-cases and
// deduplicates it, and drops stopwords.
func meaningfulWords(answer string) map[string]struct{} {
	words := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(answer)) {
		if _, stop := stopwords[w]; stop {
			continue
		}
		words[w] = struct{}{}
	}
	return words
}
