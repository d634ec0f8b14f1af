package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/glossary-index/internal/lexicon"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntityCleansInput(t *testing.T) {
	value, lang, variants, err := Entity(&ingestion.EntityRequest{
		Value:    "  Quota (gender) ",
		Lang:     "de-AT",
		Variants: []string{" Quote", "", "Quote", "  ", "Quotierung"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Quota (gender)", value)
	assert.Equal(t, lexicon.LangGerman, lang)
	assert.Equal(t, []string{"Quote", "Quotierung"}, variants)
}

func TestEntityReportsEveryField(t *testing.T) {
	_, _, _, err := Entity(&ingestion.EntityRequest{Value: " ", Lang: "fr"})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "value")
	assert.Contains(t, verr.Fields, "lang")
	assert.Equal(t, "lang: must be one of [de en]; value: value is required", err.Error())
}

func TestUpdateLimits(t *testing.T) {
	_, _, err := Update(&ingestion.UpdateRequest{Value: strings.Repeat("a", maxValueLength+1)})
	require.Error(t, err)

	many := make([]string, maxVariants+1)
	for i := range many {
		many[i] = strings.Repeat("v", i+1)
	}
	_, _, err = Update(&ingestion.UpdateRequest{Value: "ok", Variants: many})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "variants")
}

func TestCleanVariantsNil(t *testing.T) {
	assert.Empty(t, CleanVariants(nil))
	assert.NotNil(t, CleanVariants(nil))
}
