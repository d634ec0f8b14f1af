// Package tokenizer splits text into lemmas: Unicode (UAX#29) word segments,
// further split on ":" so that "Lehrer:innen" yields the same fragments the
// external analysis service produces, trimmed and with blanks dropped.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/blevesearch/segment"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Lemma is one fragment of the input together with its byte span.
type Lemma struct {
	Text  string
	Start int
	End   int
	Word  bool
}

// SplitLemmas returns the ordered lemma strings of text.
func SplitLemmas(text string) []string {
	lemmas := Split(text)
	out := make([]string, 0, len(lemmas))
	for _, l := range lemmas {
		out = append(out, l.Text)
	}
	return out
}

// Split segments text and reports each lemma's position in text.
func Split(text string) []Lemma {
	if text == "" {
		return nil
	}
	buf := []byte(text)
	seg := segment.NewWordSegmenterDirect(buf)
	lemmas := make([]Lemma, 0, len(buf)/4+1)
	offset := 0
	for seg.Segment() {
		b := seg.Bytes()
		word := seg.Type() != segment.None
		lemmas = appendColonSplit(lemmas, string(b), offset, word)
		offset += len(b)
	}
	if seg.Err() != nil || offset < len(buf) {
		// The segmenter stops on invalid UTF-8; keep the rest as one fragment.
		lemmas = appendColonSplit(lemmas, text[offset:], offset, true)
	}
	return lemmas
}

func appendColonSplit(dst []Lemma, fragment string, offset int, word bool) []Lemma {
	for fragment != "" {
		i := strings.IndexByte(fragment, ':')
		if i < 0 {
			return appendTrimmed(dst, fragment, offset, word)
		}
		dst = appendTrimmed(dst, fragment[:i], offset, word)
		dst = append(dst, Lemma{Text: ":", Start: offset + i, End: offset + i + 1})
		fragment = fragment[i+1:]
		offset += i + 1
	}
	return dst
}

func appendTrimmed(dst []Lemma, s string, offset int, word bool) []Lemma {
	left := strings.TrimLeftFunc(s, unicode.IsSpace)
	trimmed := strings.TrimRightFunc(left, unicode.IsSpace)
	if trimmed == "" {
		return dst
	}
	start := offset + len(s) - len(left)
	return append(dst, Lemma{
		Text:  trimmed,
		Start: start,
		End:   start + len(trimmed),
		Word:  word,
	})
}

// Normalize folds case and composes the lemma so that comparisons are
// insensitive to capitalisation and combining-mark encoding.
func Normalize(lemma string) string {
	return cases.Fold().String(norm.NFC.String(lemma))
}
