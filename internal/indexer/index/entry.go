package index

import (
	"encoding/json"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
)

// Lemmas holds one lemma sequence per surface form, longest first.
type Lemmas [][]string

// Entry is the derived index document for one Term or Translation.
type Entry struct {
	Ref    lexicon.Ref  `json:"ref"`
	Lang   lexicon.Lang `json:"lang"`
	Lemmas Lemmas       `json:"lemmas"`
}

// Serialize encodes lemmas as the opaque string stored next to the entry.
func (l Lemmas) Serialize() (string, error) {
	if l == nil {
		l = Lemmas{}
	}
	data, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("serializing lemmas: %w", err)
	}
	return string(data), nil
}

// Deserialize decodes a stored lemma blob. A blob that is not a JSON array of
// string arrays is reported as ErrCorruptIndex rather than read as empty.
func Deserialize(blob string) (Lemmas, error) {
	if blob == "" {
		return nil, fmt.Errorf("%w: empty blob", apperrors.ErrCorruptIndex)
	}
	var l Lemmas
	if err := json.Unmarshal([]byte(blob), &l); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrCorruptIndex, err)
	}
	if l == nil {
		return nil, fmt.Errorf("%w: null blob", apperrors.ErrCorruptIndex)
	}
	return l, nil
}
