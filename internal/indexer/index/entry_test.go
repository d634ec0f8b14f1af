package index

import (
	"testing"

	apperrors "github.com/Adithya-Monish-Kumar-K/glossary-index/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLemmasRoundTrip(t *testing.T) {
	lemmas := Lemmas{
		{"Quota", "(", "gender", ")"},
		{"Quota"},
		{"Quote"},
	}
	blob, err := lemmas.Serialize()
	require.NoError(t, err)
	assert.Equal(t, `[["Quota","(","gender",")"],["Quota"],["Quote"]]`, blob)

	back, err := Deserialize(blob)
	require.NoError(t, err)
	assert.Equal(t, lemmas, back)
}

func TestSerializeNil(t *testing.T) {
	blob, err := Lemmas(nil).Serialize()
	require.NoError(t, err)
	assert.Equal(t, "[]", blob)

	back, err := Deserialize(blob)
	require.NoError(t, err)
	assert.Empty(t, back)
}

func TestDeserializeCorrupt(t *testing.T) {
	for _, blob := range []string{"", "null", "{", `["flat"]`, `[[1,2]]`} {
		_, err := Deserialize(blob)
		assert.ErrorIs(t, err, apperrors.ErrCorruptIndex, blob)
	}
}
