package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sample-scout/metadata"
)

func TestDetermineTitleFieldPrefersHigherPriorityCandidate(t *testing.T) {
	records := []metadata.RawSample{
		{"Source Name": "donor A islets RNA", "Assay Name": "assay 1", "Characteristics [sex]": "female"},
		{"Source Name": "donor B islets RNA", "Assay Name": "assay 2", "Characteristics [sex]": "male"},
	}

	field, err := DetermineTitleField(records, nil)
	require.NoError(t, err)
	assert.Equal(t, "source name", field)
}

func TestDetermineTitleFieldIsOrderIndependent(t *testing.T) {
	a := metadata.RawSample{"Sample Name": "s1", "Source Name": "x1"}
	b := metadata.RawSample{"Source Name": "x2", "Sample Name": "s2"}

	forward, err := DetermineTitleField([]metadata.RawSample{a, b}, nil)
	require.NoError(t, err)
	reversed, err := DetermineTitleField([]metadata.RawSample{b, a}, nil)
	require.NoError(t, err)

	assert.Equal(t, forward, reversed)
	assert.Equal(t, "sample name", forward)
}

func TestDetermineTitleFieldIgnoresFieldsMissingFromSomeRecords(t *testing.T) {
	records := []metadata.RawSample{
		{"Sample Name": "s1", "Source Name": "x1"},
		{"Source Name": "x2"},
	}

	field, err := DetermineTitleField(records, nil)
	require.NoError(t, err)
	assert.Equal(t, "source name", field)
}

func TestDetermineTitleFieldUsesReferenceToBreakAmbiguity(t *testing.T) {
	// "sample name" hat höhere Priorität, aber nur die Werte unter
	// "source name" decken sich mit dem Referenz-Listing.
	records := []metadata.RawSample{
		{"Sample Name": "internal-1", "Source Name": "donor A islets RNA"},
		{"Sample Name": "internal-2", "Source Name": "donor B islets RNA"},
	}
	reference := []metadata.RawSample{
		{"Sample Name": "donor A islets RNA", "Source Name": "donor A islets RNA"},
		{"Sample Name": "donor B islets RNA", "Source Name": "donor B islets RNA"},
	}

	field, err := DetermineTitleField(records, reference)
	require.NoError(t, err)
	assert.Equal(t, "source name", field)
}

func TestDetermineTitleFieldErrors(t *testing.T) {
	_, err := DetermineTitleField(nil, nil)
	assert.Error(t, err)

	_, err = DetermineTitleField([]metadata.RawSample{{"organism": "homo sapiens"}}, nil)
	assert.Error(t, err)
}

func TestExtractTitleNormalizesWhitespace(t *testing.T) {
	record := metadata.RawSample{"Source Name": "  donor A   islets RNA "}
	assert.Equal(t, "donor A islets RNA", ExtractTitle(record, "source name"))
	assert.Equal(t, "", ExtractTitle(record, "sample name"))
}

func TestHarmonizeSampleMapsGEOCharacteristics(t *testing.T) {
	h := NewHarmonizer()
	record := metadata.RawSample{
		"title":                   "donor A islets RNA",
		"characteristics: Sex":    "Female",
		"characteristics: age":    "54",
		"characteristics: tissue": "pancreatic islets",
		"library strategy":        "RNA-Seq",
	}

	sample := h.HarmonizeSample(record, "title")

	assert.Equal(t, "donor A islets RNA", sample.Title)
	assert.Equal(t, "female", sample.Sex)
	require.NotNil(t, sample.Age)
	assert.Equal(t, 54.0, *sample.Age)
	assert.Equal(t, "pancreatic islets", sample.SpecimenPart)
	assert.Equal(t, "RNA-Seq", sample.Passthrough["library strategy"])
}

func TestHarmonizeSampleUnwrapsSDRFAndChannelKeys(t *testing.T) {
	h := NewHarmonizer()
	record := metadata.RawSample{
		"Characteristics [organism part]": "liver",
		"FactorValue [treatment]":         "vehicle",
		"sex ch1":                         "male",
		"Comment [submitted name]":        "raw-1",
	}

	sample := h.HarmonizeSample(record, "")

	assert.Equal(t, "liver", sample.SpecimenPart)
	assert.Equal(t, "vehicle", sample.Treatment)
	assert.Equal(t, "male", sample.Sex)
	assert.Equal(t, "raw-1", sample.Passthrough["submitted name"])
}

func TestHarmonizeSampleNonNumericAgeFallsToPassthrough(t *testing.T) {
	h := NewHarmonizer()
	record := metadata.RawSample{"age": "adult"}

	sample := h.HarmonizeSample(record, "")

	assert.Nil(t, sample.Age)
	assert.Equal(t, "adult", sample.Passthrough["age"])
}

func TestHarmonizeSampleNumericValuesFromJSON(t *testing.T) {
	h := NewHarmonizer()
	// JSON-dekodierte Zahlen kommen als float64 an.
	record := metadata.RawSample{"patient age": float64(54)}

	sample := h.HarmonizeSample(record, "")

	require.NotNil(t, sample.Age)
	assert.Equal(t, 54.0, *sample.Age)
}

func TestHarmonizeSampleSynonymConflictIsDeterministic(t *testing.T) {
	h := NewHarmonizer()
	record := metadata.RawSample{
		"gender": "female",
		"sex":    "male",
	}

	// Sortierte Schlüssel-Reihenfolge: "gender" wird zuerst zugewiesen.
	sample := h.HarmonizeSample(record, "")
	assert.Equal(t, "female", sample.Sex)
}

func TestHarmonizeAllSamplesKeysByTitle(t *testing.T) {
	h := NewHarmonizer()
	records := []metadata.RawSample{
		{"title": "donor A islets RNA", "sex": "female"},
		{"title": "donor B islets RNA", "sex": "male"},
		{"title": "", "sex": "unknown"},
	}

	harmonized, err := h.HarmonizeAllSamples(records, "")
	require.NoError(t, err)

	require.Len(t, harmonized, 2)
	assert.Equal(t, "female", harmonized["donor A islets RNA"].Sex)
	assert.Equal(t, "male", harmonized["donor B islets RNA"].Sex)
}

func TestHarmonizeAllSamplesTitleCollisionLastWriteWins(t *testing.T) {
	h := NewHarmonizer()
	records := []metadata.RawSample{
		{"title": "donor A islets RNA", "sex": "female"},
		{"title": "donor A islets RNA", "sex": "male"},
	}

	harmonized, err := h.HarmonizeAllSamples(records, "title")
	require.NoError(t, err)

	require.Len(t, harmonized, 1)
	assert.Equal(t, "male", harmonized["donor A islets RNA"].Sex)
}

func TestHarmonizeAllSamplesEmptyInput(t *testing.T) {
	h := NewHarmonizer()
	harmonized, err := h.HarmonizeAllSamples(nil, "")
	require.NoError(t, err)
	assert.Empty(t, harmonized)
}

func TestNormalizeFieldName(t *testing.T) {
	cases := map[string]string{
		"Characteristics [sex]":   "sex",
		"characteristics: Age":    "age",
		"FactorValue [dose]":      "dose",
		"Comment[submitted name]": "submitted name",
		"sex_ch1":                 "sex",
		"Tissue  Type":            "tissue type",
		"source_name":             "source name",
	}
	for input, expected := range cases {
		assert.Equal(t, expected, normalizeFieldName(input), "input %q", input)
	}
}
