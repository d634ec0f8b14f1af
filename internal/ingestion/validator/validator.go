// Package validator checks and cleans entity write requests.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
)

const (
	maxValueLength = 512
	maxVariants    = 50
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// Entity validates a create request and returns the cleaned value, language
// and variants.
func Entity(req *ingestion.EntityRequest) (string, lexicon.Lang, []string, error) {
	errs := make(map[string]string)
	value := checkValue(req.Value, errs)
	lang, err := lexicon.ParseLang(req.Lang)
	if err != nil {
		errs["lang"] = fmt.Sprintf("must be one of %v", lexicon.Langs)
	}
	variants := checkVariants(req.Variants, errs)
	if len(errs) > 0 {
		return "", "", nil, &ValidationError{Fields: errs}
	}
	return value, lang, variants, nil
}

// Update validates an update request and returns the cleaned value and
// variants.
func Update(req *ingestion.UpdateRequest) (string, []string, error) {
	errs := make(map[string]string)
	value := checkValue(req.Value, errs)
	variants := checkVariants(req.Variants, errs)
	if len(errs) > 0 {
		return "", nil, &ValidationError{Fields: errs}
	}
	return value, variants, nil
}

func checkValue(raw string, errs map[string]string) string {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		errs["value"] = "value is required"
	case utf8.RuneCountInString(value) > maxValueLength:
		errs["value"] = fmt.Sprintf("value must be at most %d characters", maxValueLength)
	}
	return value
}

// CleanVariants trims every variant and drops blanks and repeats, keeping
// the first occurrence order.
func CleanVariants(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func checkVariants(raw []string, errs map[string]string) []string {
	variants := CleanVariants(raw)
	if len(variants) > maxVariants {
		errs["variants"] = fmt.Sprintf("at most %d variants are allowed", maxVariants)
	}
	for _, v := range variants {
		if utf8.RuneCountInString(v) > maxValueLength {
			errs["variants"] = fmt.Sprintf("variants must be at most %d characters", maxValueLength)
			break
		}
	}
	return variants
}
