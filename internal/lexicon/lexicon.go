// Package lexicon defines the glossary records the index is derived from:
// Terms, Translations, the references that point at them, and the change
// events emitted when they are written.
package lexicon

import (
	"fmt"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"golang.org/x/text/language"
)

// Lang is one of the two supported language tags.
type Lang string

const (
	LangGerman  Lang = "de"
	LangEnglish Lang = "en"
)

// Langs lists the supported languages in a stable order.
var Langs = []Lang{LangGerman, LangEnglish}

// ParseLang accepts any BCP 47 tag whose base language is supported
// ("de-AT" -> de, "en_GB" -> en).
func ParseLang(s string) (Lang, error) {
	tag, err := language.Parse(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
	if err != nil {
		return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedLang, s)
	}
	base, _ := tag.Base()
	switch Lang(base.String()) {
	case LangGerman:
		return LangGerman, nil
	case LangEnglish:
		return LangEnglish, nil
	}
	return "", fmt.Errorf("%w: %q", apperrors.ErrUnsupportedLang, s)
}

// Other returns the counterpart language of a bilingual pair.
func (l Lang) Other() Lang {
	if l == LangGerman {
		return LangEnglish
	}
	return LangGerman
}

// Kind distinguishes the two entity collections.
type Kind string

const (
	KindTerm        Kind = "term"
	KindTranslation Kind = "translation"
)

// ParseKind validates a kind taken from a URL or CLI flag.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindTerm, KindTranslation:
		return Kind(s), nil
	}
	return "", fmt.Errorf("%w: unknown kind %q", apperrors.ErrInvalidInput, s)
}

// Ref locates a Term or Translation. TermID is the parent Term for
// translations and equals ID for terms.
type Ref struct {
	Kind   Kind   `json:"kind"`
	ID     string `json:"id"`
	TermID string `json:"term_id,omitempty"`
}

// Key is the stable string form used for Kafka keys and cache lookups.
func (r Ref) Key() string {
	return string(r.Kind) + "/" + r.ID
}

func (r Ref) String() string {
	return r.Key()
}

// Entity is a Term or Translation record.
type Entity struct {
	Kind      Kind      `json:"kind"`
	ID        string    `json:"id"`
	TermID    string    `json:"term_id,omitempty"`
	Value     string    `json:"value"`
	Lang      Lang      `json:"lang"`
	Variants  []string  `json:"variants"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ref returns the entity's document reference.
func (e Entity) Ref() Ref {
	termID := e.TermID
	if e.Kind == KindTerm {
		termID = e.ID
	}
	return Ref{Kind: e.Kind, ID: e.ID, TermID: termID}
}

// Op is the kind of write a ChangeEvent describes.
type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// ChangeEvent describes one committed write. Before is nil on create and
// After is nil on delete.
type ChangeEvent struct {
	Op     Op        `json:"op"`
	Ref    Ref       `json:"ref"`
	Before *Entity   `json:"before,omitempty"`
	After  *Entity   `json:"after,omitempty"`
	At     time.Time `json:"at"`
}

// InvalidateEvent tells readers that the index entry for Ref changed.
type InvalidateEvent struct {
	Ref  Ref       `json:"ref"`
	Lang Lang      `json:"lang"`
	At   time.Time `json:"at"`
}
