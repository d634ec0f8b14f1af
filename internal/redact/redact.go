// Package redact masks sensitive words in display text. Matching is on whole
// words and case-insensitive; a multi-word term matches the same words
// separated only by whitespace.
package redact

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var wordPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_]+`)

// Normalize lowercases and trims a word or term the way the set stores it.
func Normalize(s string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(s))
}

// Terms is an immutable set of sensitive words and phrases.
type Terms struct {
	byFirst map[string][][]string
	size    int
}

// NewTerms builds a set from raw input. Blank and duplicate entries are
// dropped; inner whitespace in phrases is collapsed.
func NewTerms(raw ...string) Terms {
	t := Terms{byFirst: make(map[string][][]string)}
	seen := make(map[string]struct{})
	for _, r := range raw {
		words := strings.Fields(Normalize(r))
		if len(words) == 0 {
			continue
		}
		key := strings.Join(words, " ")
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		t.byFirst[words[0]] = append(t.byFirst[words[0]], words)
		t.size++
	}
	for first, seqs := range t.byFirst {
		slices.SortStableFunc(seqs, func(a, b []string) int { return len(b) - len(a) })
		t.byFirst[first] = seqs
	}
	return t
}

func (t Terms) Len() int {
	return t.size
}

// List returns the normalized terms in sorted order.
func (t Terms) List() []string {
	out := make([]string, 0, t.size)
	for _, seqs := range t.byFirst {
		for _, words := range seqs {
			out = append(out, strings.Join(words, " "))
		}
	}
	slices.Sort(out)
	return out
}

// Contains reports whether term is in the set.
func (t Terms) Contains(term string) bool {
	words := strings.Fields(Normalize(term))
	if len(words) == 0 {
		return false
	}
	for _, seq := range t.byFirst[words[0]] {
		if slices.Equal(seq, words) {
			return true
		}
	}
	return false
}

// Redact returns text with every sensitive word masked. Separators and the
// case of unmasked characters are left untouched.
func Redact(text string, terms Terms) string {
	out, _ := RedactCount(text, terms)
	return out
}

// RedactCount is Redact that also reports how many words were masked.
func RedactCount(text string, terms Terms) (string, int) {
	if terms.size == 0 || text == "" {
		return text, 0
	}
	spans := wordPattern.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return text, 0
	}
	words := make([]string, len(spans))
	for i, sp := range spans {
		words[i] = Normalize(text[sp[0]:sp[1]])
	}

	var b strings.Builder
	b.Grow(len(text))
	last, masked := 0, 0
	for i := 0; i < len(spans); {
		n := terms.matchAt(text, spans, words, i)
		if n == 0 {
			i++
			continue
		}
		for j := i; j < i+n; j++ {
			b.WriteString(text[last:spans[j][0]])
			b.WriteString(Mask(text[spans[j][0]:spans[j][1]]))
			last = spans[j][1]
			masked++
		}
		i += n
	}
	b.WriteString(text[last:])
	return b.String(), masked
}

// matchAt returns the word count of the longest term starting at word i,
// or 0.
func (t Terms) matchAt(text string, spans [][]int, words []string, i int) int {
	for _, seq := range t.byFirst[words[i]] {
		if i+len(seq) > len(words) || !slices.Equal(seq, words[i:i+len(seq)]) {
			continue
		}
		if whitespaceBetween(text, spans[i:i+len(seq)]) {
			return len(seq)
		}
	}
	return 0
}

func whitespaceBetween(text string, spans [][]int) bool {
	for k := 1; k < len(spans); k++ {
		gap := text[spans[k-1][1]:spans[k][0]]
		if gap == "" || strings.TrimFunc(gap, unicode.IsSpace) != "" {
			return false
		}
	}
	return true
}

// Mask obscures the interior of a word. The first rune and the last two
// runes stay visible ("Quota" -> "Q**ta"); three-rune words keep first and
// last ("Ass" -> "A*s"); one- and two-rune words are returned unchanged.
func Mask(word string) string {
	n := utf8.RuneCountInString(word)
	if n <= 2 {
		return word
	}
	runes := []rune(word)
	if n == 3 {
		return string(runes[0]) + "*" + string(runes[2])
	}
	return string(runes[0]) + strings.Repeat("*", n-3) + string(runes[n-2:])
}
