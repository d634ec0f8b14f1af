// Package highlight decides how analyzed phrases are presented: which of the
// matching Terms and Translations is the primary definition, whether a
// phrase reads as a Term or a Translation match, and when a phrase is too
// ambiguous to resolve without a language.
package highlight

import (
	"cmp"
	"slices"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/analysis"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

func valueLen(e lexicon.Entity) int {
	return utf8.RuneCountInString(e.Value)
}

// LongestEntity returns the entity with the longest value. Ties go to the
// first one in entities. The boolean is false for an empty slice.
func LongestEntity(entities []lexicon.Entity) (lexicon.Entity, bool) {
	if len(entities) == 0 {
		return lexicon.Entity{}, false
	}
	best := entities[0]
	for _, e := range entities[1:] {
		if valueLen(e) > valueLen(best) {
			best = e
		}
	}
	return best, true
}

// TermOrTranslations classifies a phrase by its longest candidate on each
// side. Terms win ties. It returns "" when both sides are empty.
func TermOrTranslations(terms, translations []lexicon.Entity) lexicon.Kind {
	term, hasTerm := LongestEntity(terms)
	tr, hasTr := LongestEntity(translations)
	switch {
	case hasTerm && hasTr:
		if valueLen(term) >= valueLen(tr) {
			return lexicon.KindTerm
		}
		return lexicon.KindTranslation
	case hasTerm:
		return lexicon.KindTerm
	case hasTr:
		return lexicon.KindTranslation
	}
	return ""
}

// SortEntities returns a copy ordered by descending value length, then by
// secondary. A nil secondary keeps the input order among equal lengths.
func SortEntities(entities []lexicon.Entity, secondary func(a, b lexicon.Entity) int) []lexicon.Entity {
	out := slices.Clone(entities)
	slices.SortStableFunc(out, func(a, b lexicon.Entity) int {
		if c := cmp.Compare(valueLen(b), valueLen(a)); c != 0 {
			return c
		}
		if secondary != nil {
			return secondary(a, b)
		}
		return 0
	})
	return out
}

// ByValue is a SortEntities tie-break on value, then id.
func ByValue(a, b lexicon.Entity) int {
	if c := cmp.Compare(a.Value, b.Value); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// ByNewest is a SortEntities tie-break on most recent update.
func ByNewest(a, b lexicon.Entity) int {
	return b.UpdatedAt.Compare(a.UpdatedAt)
}

// Status describes how a segment is displayed.
type Status string

const (
	StatusPlain     Status = "plain"
	StatusMatched   Status = "matched"
	StatusAmbiguous Status = "ambiguous"
)

// Segment is one resolved piece of the analyzed text.
type Segment struct {
	Text         string           `json:"text"`
	Status       Status           `json:"status"`
	Kind         lexicon.Kind     `json:"kind,omitempty"`
	Primary      *lexicon.Entity  `json:"primary,omitempty"`
	Terms        []lexicon.Entity `json:"terms,omitempty"`
	Translations []lexicon.Entity `json:"translations,omitempty"`
	TermIDs      []string         `json:"term_ids,omitempty"`
}

// Resolve turns analyzed tokens into display segments. entities must hold
// the records referenced by the phrase tokens; refs without a record are
// ignored. With lang set, candidates in that language are preferred; with
// lang empty, a phrase matching more than one Term is reported ambiguous.
func Resolve(tokens []analysis.TextToken, entities []lexicon.Entity, lang lexicon.Lang) []Segment {
	byRef := make(map[lexicon.Ref]lexicon.Entity, len(entities))
	for _, e := range entities {
		byRef[e.Ref()] = e
	}

	segments := make([]Segment, 0, len(tokens))
	for _, tok := range tokens {
		var candidates []lexicon.Entity
		for _, ref := range tok.Refs {
			if e, ok := byRef[ref]; ok {
				candidates = append(candidates, e)
			}
		}
		segments = append(segments, resolvePhrase(tok.Text, candidates, lang))
	}
	return segments
}

func resolvePhrase(text string, candidates []lexicon.Entity, lang lexicon.Lang) Segment {
	if len(candidates) == 0 {
		return Segment{Text: text, Status: StatusPlain}
	}
	if lang != "" {
		inLang := slices.DeleteFunc(slices.Clone(candidates), func(e lexicon.Entity) bool { return e.Lang != lang })
		if len(inLang) > 0 {
			candidates = inLang
		}
	}

	var terms, translations []lexicon.Entity
	var termIDs []string
	for _, e := range candidates {
		if e.Kind == lexicon.KindTerm {
			terms = append(terms, e)
		} else {
			translations = append(translations, e)
		}
		if id := e.Ref().TermID; !slices.Contains(termIDs, id) {
			termIDs = append(termIDs, id)
		}
	}

	seg := Segment{
		Text:         text,
		Terms:        SortEntities(terms, ByValue),
		Translations: SortEntities(translations, ByValue),
	}
	if len(termIDs) > 1 && lang == "" {
		seg.Status = StatusAmbiguous
		seg.TermIDs = termIDs
		return seg
	}

	seg.Status = StatusMatched
	seg.Kind = TermOrTranslations(terms, translations)
	side := terms
	if seg.Kind == lexicon.KindTranslation {
		side = translations
	}
	if primary, ok := LongestEntity(side); ok {
		seg.Primary = &primary
	}
	return seg
}

// Ambiguous counts the segments that need a language to resolve.
func Ambiguous(segments []Segment) int {
	n := 0
	for _, s := range segments {
		if s.Status == StatusAmbiguous {
			n++
		}
	}
	return n
}
