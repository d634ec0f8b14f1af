// Package indexer builds and maintains the lemma index of Terms and
// Translations. BuildIndex is pure; Maintainer applies committed entity
// writes to the persisted index.
package indexer

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/variant"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

// SurfaceForms lists the headword, its generated variants and the explicit
// variants, in that order. Two entities with equal surface forms produce
// identical index entries.
func SurfaceForms(e lexicon.Entity) []string {
	generated := variant.ForEntity(e)
	forms := make([]string, 0, 1+len(generated)+len(e.Variants))
	forms = append(forms, e.Value)
	forms = append(forms, generated...)
	forms = append(forms, e.Variants...)
	return forms
}

// BuildIndex splits every surface form into lemmas and orders the sequences
// so that the one with the most fragments comes first; ties go to the longer
// text and then to the earlier surface form.
func BuildIndex(e lexicon.Entity) index.Entry {
	forms := SurfaceForms(e)
	lemmas := make(index.Lemmas, 0, len(forms))
	for _, form := range forms {
		seq := tokenizer.SplitLemmas(form)
		if len(seq) == 0 {
			continue
		}
		lemmas = append(lemmas, seq)
	}
	slices.SortStableFunc(lemmas, func(a, b []string) int {
		if c := cmp.Compare(len(b), len(a)); c != 0 {
			return c
		}
		return cmp.Compare(textLen(b), textLen(a))
	})
	return index.Entry{
		Ref:    e.Ref(),
		Lang:   e.Lang,
		Lemmas: lemmas,
	}
}

func textLen(seq []string) int {
	n := 0
	for _, s := range seq {
		n += utf8.RuneCountInString(s)
	}
	return n
}
