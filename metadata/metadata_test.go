package metadata

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlattenNestedMapsAndLists(t *testing.T) {
	raw := map[string]any{
		"title": "donor A islets RNA",
		"extract": map[string]any{
			"name":     "extract 1",
			"protocol": map[string]any{"id": "P-1"},
		},
		"platforms": []any{"GPL570", "GPL96"},
		"age":       54,
		"paired":    true,
		"missing":   nil,
		"complex":   []any{map[string]any{"nested": true}},
	}

	flat := Flatten(raw)

	assert.Equal(t, "donor A islets RNA", flat["title"])
	assert.Equal(t, "extract 1", flat["extract.name"])
	assert.Equal(t, "P-1", flat["extract.protocol.id"])
	assert.Equal(t, "GPL570, GPL96", flat["platforms"])
	assert.Equal(t, float64(54), flat["age"])
	assert.Equal(t, "true", flat["paired"])

	_, hasMissing := flat["missing"]
	assert.False(t, hasMissing)
	_, hasComplex := flat["complex"]
	assert.False(t, hasComplex)
}

func TestPreprocessGEOSampleSplitsCharacteristics(t *testing.T) {
	sample := GEOSample{Metadata: map[string][]string{
		"title":               {"donor A islets RNA"},
		"characteristics_ch1": {"Sex: Female", "age: 54", "malformed line", "empty:"},
		"platform_id":         {"GPL570"},
		"contact_name":        {"Jane", "Doe"},
	}}

	flat := PreprocessGEOSample(sample)

	assert.Equal(t, "donor A islets RNA", flat["title"])
	assert.Equal(t, "Female", flat["characteristics: Sex"])
	assert.Equal(t, "54", flat["characteristics: age"])
	assert.Equal(t, "GPL570", flat["platform_id"])
	assert.Equal(t, "Jane, Doe", flat["contact_name"])

	_, hasMalformed := flat["characteristics: malformed line"]
	assert.False(t, hasMalformed)
	_, hasEmpty := flat["characteristics: empty"]
	assert.False(t, hasEmpty)
}

func TestParseSDRF(t *testing.T) {
	sdrf := strings.Join([]string{
		"Source Name\tCharacteristics [sex]\tCharacteristics [age]",
		"donor A islets RNA\tfemale\t54",
		"donor B islets RNA\tmale\t",
	}, "\n")

	samples, err := ParseSDRF(strings.NewReader(sdrf))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "donor A islets RNA", samples[0]["Source Name"])
	assert.Equal(t, "female", samples[0]["Characteristics [sex]"])
	assert.Equal(t, "54", samples[0]["Characteristics [age]"])

	// Leere Zellen erzeugen keinen Schlüssel.
	_, hasAge := samples[1]["Characteristics [age]"]
	assert.False(t, hasAge)
}

func TestParseSDRFEmptyInput(t *testing.T) {
	samples, err := ParseSDRF(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, samples)
}
