package index

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	quotaRef = lexicon.Ref{Kind: lexicon.KindTerm, ID: "quota", TermID: "quota"}
	pocRef   = lexicon.Ref{Kind: lexicon.KindTerm, ID: "poc", TermID: "poc"}
	colorRef = lexicon.Ref{Kind: lexicon.KindTranslation, ID: "color", TermID: "poc"}
)

func newTestIndex() *MemoryIndex {
	m := NewMemoryIndex()
	m.Add(Entry{Ref: quotaRef, Lang: lexicon.LangGerman, Lemmas: Lemmas{
		{"Quota", "(", "gender", ")"},
		{"Quota"},
		{"Quote"},
	}})
	m.Add(Entry{Ref: pocRef, Lang: lexicon.LangEnglish, Lemmas: Lemmas{
		{"People", "of", "Color"},
		{"PoC"},
	}})
	m.Add(Entry{Ref: colorRef, Lang: lexicon.LangEnglish, Lemmas: Lemmas{
		{"Color"},
	}})
	return m
}

func TestFindPrefersLongestSequence(t *testing.T) {
	m := newTestIndex()
	lemmas := tokenizer.Split("Die Quote für people of color und Color.")

	matches := m.Find(lemmas)
	require.Len(t, matches, 3)

	assert.Equal(t, "Quote", lemmas[matches[0].First].Text)
	assert.Equal(t, []lexicon.Ref{quotaRef}, matches[0].Refs)

	assert.Equal(t, "people", lemmas[matches[1].First].Text)
	assert.Equal(t, "color", lemmas[matches[1].Last].Text)
	assert.Equal(t, []lexicon.Ref{pocRef}, matches[1].Refs)

	assert.Equal(t, []lexicon.Ref{colorRef}, matches[2].Refs)
}

func TestFindFullParentheticalForm(t *testing.T) {
	m := newTestIndex()
	lemmas := tokenizer.Split("Quota (gender) ist gemeint")
	matches := m.Find(lemmas)
	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].First)
	assert.Equal(t, 3, matches[0].Last)
}

func TestFindReportsAllRefsOfEqualLength(t *testing.T) {
	m := newTestIndex()
	other := lexicon.Ref{Kind: lexicon.KindTerm, ID: "quote2", TermID: "quote2"}
	m.Add(Entry{Ref: other, Lemmas: Lemmas{{"quote"}}})

	matches := m.Find(tokenizer.Split("Quote"))
	require.Len(t, matches, 1)
	assert.ElementsMatch(t, []lexicon.Ref{quotaRef, other}, matches[0].Refs)
}

func TestAddReplacesAndRemove(t *testing.T) {
	m := newTestIndex()
	assert.Equal(t, 3, m.Size())

	m.Add(Entry{Ref: quotaRef, Lemmas: Lemmas{{"Kontingent"}}})
	assert.Equal(t, 3, m.Size())
	assert.Empty(t, m.Find(tokenizer.Split("Quota")))
	assert.Len(t, m.Find(tokenizer.Split("Kontingent")), 1)

	m.Remove(quotaRef)
	assert.Equal(t, 2, m.Size())
	assert.Empty(t, m.Find(tokenizer.Split("Kontingent")))

	m.Reset()
	assert.Equal(t, 0, m.Size())
}

func BenchmarkFind(b *testing.B) {
	m := newTestIndex()
	lemmas := tokenizer.Split("Die Quote für people of color und Color, Quota (gender) und PoC.")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = m.Find(lemmas)
	}
}
