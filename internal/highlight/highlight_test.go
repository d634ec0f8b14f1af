package highlight

import (
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func term(id, value string, lang lexicon.Lang) lexicon.Entity {
	return lexicon.Entity{Kind: lexicon.KindTerm, ID: id, Value: value, Lang: lang}
}

func translation(id, termID, value string, lang lexicon.Lang) lexicon.Entity {
	return lexicon.Entity{Kind: lexicon.KindTranslation, ID: id, TermID: termID, Value: value, Lang: lang}
}

func TestLongestEntity(t *testing.T) {
	_, ok := LongestEntity(nil)
	assert.False(t, ok)

	race := translation("x1", "t1", "Race", lexicon.LangEnglish)
	rass := translation("x2", "t1", "Rassifizierung", lexicon.LangGerman)
	got, ok := LongestEntity([]lexicon.Entity{race, rass})
	require.True(t, ok)
	assert.Equal(t, "Rassifizierung", got.Value)

	a := term("a", "abc", lexicon.LangGerman)
	b := term("b", "xyz", lexicon.LangGerman)
	for i := 0; i < 3; i++ {
		got, _ = LongestEntity([]lexicon.Entity{a, b})
		assert.Equal(t, "a", got.ID)
	}
}

func TestLongestEntityCountsRunes(t *testing.T) {
	umlaut := term("u", "Übel", lexicon.LangGerman)
	ascii := term("a", "Ubel", lexicon.LangGerman)
	got, _ := LongestEntity([]lexicon.Entity{ascii, umlaut})
	assert.Equal(t, "a", got.ID)
}

func TestTermOrTranslations(t *testing.T) {
	short := []lexicon.Entity{term("t", "Race", lexicon.LangEnglish)}
	long := []lexicon.Entity{translation("x", "t", "Rassifizierung", lexicon.LangGerman)}
	same := []lexicon.Entity{translation("y", "t", "Rase", lexicon.LangGerman)}

	assert.Equal(t, lexicon.KindTranslation, TermOrTranslations(short, long))
	assert.Equal(t, lexicon.KindTerm, TermOrTranslations(short, same))
	assert.Equal(t, lexicon.KindTerm, TermOrTranslations(short, nil))
	assert.Equal(t, lexicon.KindTranslation, TermOrTranslations(nil, long))
	assert.Equal(t, lexicon.Kind(""), TermOrTranslations(nil, nil))
}

func TestSortEntities(t *testing.T) {
	now := time.Now()
	a := translation("a", "t", "Race", lexicon.LangEnglish)
	a.UpdatedAt = now
	b := translation("b", "t", "Rassifizierung", lexicon.LangGerman)
	c := translation("c", "t", "Rasse", lexicon.LangGerman)
	d := translation("d", "t", "Rade", lexicon.LangGerman)
	d.UpdatedAt = now.Add(time.Hour)
	in := []lexicon.Entity{a, b, c, d}

	ids := func(es []lexicon.Entity) []string {
		var out []string
		for _, e := range es {
			out = append(out, e.ID)
		}
		return out
	}
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(SortEntities(in, nil)))
	assert.Equal(t, []string{"b", "c", "a", "d"}, ids(SortEntities(in, ByValue)))
	assert.Equal(t, []string{"b", "c", "d", "a"}, ids(SortEntities(in, ByNewest)))
	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(in))
}

func TestResolve(t *testing.T) {
	raceTerm := term("t1", "Race", lexicon.LangEnglish)
	rass := translation("x1", "t1", "Rassifizierung", lexicon.LangGerman)
	quote := term("t2", "Quote", lexicon.LangGerman)

	tokens := []analysis.TextToken{
		{Type: analysis.TokenText, Text: "Die "},
		{Type: analysis.TokenPhrase, Text: "Rassifizierung", Refs: []lexicon.Ref{raceTerm.Ref(), rass.Ref()}},
		{Type: analysis.TokenText, Text: " und "},
		{Type: analysis.TokenPhrase, Text: "Quote", Refs: []lexicon.Ref{quote.Ref()}},
		{Type: analysis.TokenPhrase, Text: "gone", Refs: []lexicon.Ref{{Kind: lexicon.KindTerm, ID: "deleted", TermID: "deleted"}}},
	}
	segs := Resolve(tokens, []lexicon.Entity{raceTerm, rass, quote}, "")
	require.Len(t, segs, 5)

	assert.Equal(t, StatusPlain, segs[0].Status)
	assert.Equal(t, StatusMatched, segs[1].Status)
	assert.Equal(t, lexicon.KindTranslation, segs[1].Kind)
	require.NotNil(t, segs[1].Primary)
	assert.Equal(t, "Rassifizierung", segs[1].Primary.Value)
	assert.Equal(t, lexicon.KindTerm, segs[3].Kind)
	assert.Equal(t, StatusPlain, segs[4].Status)
	assert.Equal(t, 0, Ambiguous(segs))
}

func TestResolveAmbiguousWithoutLanguage(t *testing.T) {
	deTerm := term("t1", "Gift", lexicon.LangGerman)
	enTerm := term("t2", "Gift", lexicon.LangEnglish)
	tokens := []analysis.TextToken{{Type: analysis.TokenPhrase, Text: "Gift", Refs: []lexicon.Ref{deTerm.Ref(), enTerm.Ref()}}}
	entities := []lexicon.Entity{deTerm, enTerm}

	segs := Resolve(tokens, entities, "")
	require.Len(t, segs, 1)
	assert.Equal(t, StatusAmbiguous, segs[0].Status)
	assert.Nil(t, segs[0].Primary)
	assert.Equal(t, []string{"t1", "t2"}, segs[0].TermIDs)
	assert.Equal(t, 1, Ambiguous(segs))

	segs = Resolve(tokens, entities, lexicon.LangEnglish)
	assert.Equal(t, StatusMatched, segs[0].Status)
	require.NotNil(t, segs[0].Primary)
	assert.Equal(t, "t2", segs[0].Primary.ID)
}

func TestResolveLanguageFilterFallsBack(t *testing.T) {
	deTerm := term("t1", "Quote", lexicon.LangGerman)
	tokens := []analysis.TextToken{{Type: analysis.TokenPhrase, Text: "Quote", Refs: []lexicon.Ref{deTerm.Ref()}}}

	segs := Resolve(tokens, []lexicon.Entity{deTerm}, lexicon.LangEnglish)
	assert.Equal(t, StatusMatched, segs[0].Status)
	assert.Equal(t, "t1", segs[0].Primary.ID)
}
