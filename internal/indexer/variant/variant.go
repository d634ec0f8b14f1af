// Package variant derives alternate surface forms from a glossary headword.
// Rules are pure and keyed by language: German additionally splits
// gender-neutral forms such as "Lehrer*innen" or "Lehrer:innen".
package variant

import (
	"regexp"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

// Rule turns a value into zero or more candidate variants.
type Rule func(value string) []string

var (
	parentheticalPattern = regexp.MustCompile(`\s*(?:\([^()]*\)\s*)+`)
	genderFormPattern    = regexp.MustCompile(`([^\s*:]+)[*:]([^\s*:]+)`)
)

// rules is applied in order; a third language is a new entry here.
var rules = map[lexicon.Lang][]Rule{
	lexicon.LangGerman:  {SkipParenthetical, SplitGenderForm},
	lexicon.LangEnglish: {SkipParenthetical},
}

// Generate returns the generated variants of value for lang. Outputs equal to
// value or blank are dropped, so the result never contains value itself.
func Generate(value string, lang lexicon.Lang) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, rule := range rules[lang] {
		for _, v := range rule(value) {
			if v == value || strings.TrimSpace(v) == "" {
				continue
			}
			out = append(out, v)
		}
	}
	return out
}

// ForEntity returns the generated variants of an entity's headword.
func ForEntity(e lexicon.Entity) []string {
	return Generate(e.Value, e.Lang)
}

// SkipParenthetical removes every non-nested "( ... )" aside together with
// the whitespace around it: "Quota (gender)" -> "Quota".
func SkipParenthetical(value string) []string {
	stripped := parentheticalPattern.ReplaceAllString(value, " ")
	return []string{strings.TrimSpace(stripped)}
}

// SplitGenderForm handles "<stem>*<suffix>" and "<stem>:<suffix>". Only the
// first occurrence is used; it yields the stem and stem+suffix.
func SplitGenderForm(value string) []string {
	m := genderFormPattern.FindStringSubmatch(value)
	if m == nil {
		return nil
	}
	stem, suffix := m[1], m[2]
	return []string{stem, stem + suffix}
}
