// Package analysis implements analyzeText: splitting a passage into literal
// text and phrase tokens that reference the Terms and Translations whose
// lemma index matched them. Text can be analyzed locally against the stored
// index or by a remote analysis service, optionally behind a Redis cache.
package analysis

import (
	"context"
	"slices"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

// TokenType tells literal text apart from a recognized phrase.
type TokenType string

const (
	TokenText   TokenType = "text"
	TokenPhrase TokenType = "phrase"
)

// TextToken is one piece of analyzed text. Concatenating the Text of all
// tokens reproduces the input. Refs is only set on phrases.
type TextToken struct {
	Type TokenType     `json:"type"`
	Text string        `json:"text"`
	Refs []lexicon.Ref `json:"refs,omitempty"`
}

// Analyzer is the analyzeText contract.
type Analyzer interface {
	Analyze(ctx context.Context, text string, lang lexicon.Lang) ([]TextToken, error)
}

// CollectRefs returns the distinct refs of all phrase tokens in order of
// first appearance.
func CollectRefs(tokens []TextToken) []lexicon.Ref {
	var refs []lexicon.Ref
	for _, tok := range tokens {
		for _, ref := range tok.Refs {
			if !slices.Contains(refs, ref) {
				refs = append(refs, ref)
			}
		}
	}
	return refs
}
