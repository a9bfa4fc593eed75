package services

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"sample-scout/metadata"
	"sample-scout/models"
)

// titleFieldPriority listet die bekannten Titel-Felder in fester
// Prioritätsreihenfolge. Die Auswahl läuft immer über diese Liste und
// nie über die Map-Iterationsreihenfolge, damit zwei logisch identische
// Eingaben unabhängig von der Schlüssel-Reihenfolge dasselbe Feld ergeben.
var titleFieldPriority = []string{
	"sample name",
	"sample title",
	"title",
	"subject number",
	"labeled extract name",
	"extract name",
	"source name",
	"assay name",
}

// fieldSynonyms bildet normalisierte Roh-Schlüssel auf die kanonischen
// Felder ab. Nicht gelistete Schlüssel landen im Passthrough-Bereich.
var fieldSynonyms = map[string]string{
	"sex":            "sex",
	"gender":         "sex",
	"sample sex":     "sex",
	"sample gender":  "sex",
	"patient gender": "sex",
	"subject gender": "sex",
	"subject sex":    "sex",

	"age":              "age",
	"patient age":      "age",
	"age of patient":   "age",
	"age (years)":      "age",
	"age years":        "age",
	"subject age":      "age",
	"age at diagnosis": "age",

	"tissue":           "specimen_part",
	"tissue type":      "specimen_part",
	"tissue source":    "specimen_part",
	"tissue of origin": "specimen_part",
	"organism part":    "specimen_part",
	"sample type":      "specimen_part",
	"isolation source": "specimen_part",
	"cell type":        "specimen_part",

	"subject":            "subject",
	"subject id":         "subject",
	"patient":            "subject",
	"patient id":         "subject",
	"patient number":     "subject",
	"patient identifier": "subject",
	"individual":         "subject",
	"participant":        "subject",
	"donor":              "subject",
	"donor id":           "subject",

	"developmental stage": "developmental_stage",
	"development stage":   "developmental_stage",
	"dev stage":           "developmental_stage",

	"disease":        "disease",
	"disease state":  "disease",
	"disease status": "disease",
	"diagnosis":      "disease",

	"compound":      "compound",
	"compound name": "compound",
	"drug":          "compound",
	"drugs":         "compound",
	"agent":         "compound",

	"treatment":          "treatment",
	"treatment group":    "treatment",
	"treatment protocol": "treatment",
	"treatment type":     "treatment",
	"treated with":       "treatment",

	"time":                "time",
	"time point":          "time",
	"timepoint":           "time",
	"initial time point":  "time",
	"sampling time point": "time",
	"time post infection": "time",
}

// wrapperRe erkennt SDRF-/GEO-Schlüssel-Wrapper wie "Characteristics [sex]",
// "characteristics: age", "Comment [x]" oder "FactorValue [dose]".
var wrapperRe = regexp.MustCompile(`^(characteristics?|comment|factor\s*value)\s*[\[:]\s*(.+?)\s*\]?$`)

// channelSuffixRe entfernt GEO-Kanal-Suffixe ("sex ch1", "sex_ch1").
var channelSuffixRe = regexp.MustCompile(`[\s_]ch\d+$`)

// normalizeFieldName kanonisiert einen Roh-Schlüssel: Kleinschreibung,
// Whitespace-Normalisierung, Wrapper und Kanal-Suffixe entfernt.
func normalizeFieldName(key string) string {
	name := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(key, "_", " "))), " ")
	if match := wrapperRe.FindStringSubmatch(name); match != nil {
		name = strings.TrimSpace(match[2])
	}
	name = channelSuffixRe.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// normalizeTitle standardisiert Whitespace, damit Titel als exakte
// Join-Schlüssel taugen.
func normalizeTitle(value string) string {
	return strings.Join(strings.Fields(value), " ")
}

// scalarToString rendert einen Roh-Skalar als String.
func scalarToString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// DetermineTitleField bestimmt, welches Roh-Feld den Titel der Proben
// liefert. Entscheidend ist allein die Menge der in allen Datensätzen
// vorhandenen Schlüssel; bei einem Referenz-Listing einer Partnerquelle
// müssen zusätzlich die Titelwerte beider Listings übereinstimmen.
func DetermineTitleField(records []metadata.RawSample, reference []metadata.RawSample) (string, error) {
	if len(records) == 0 {
		return "", fmt.Errorf("no records to determine title field from")
	}

	common := commonFields(records)

	for _, candidate := range titleFieldPriority {
		if !common[candidate] {
			continue
		}
		if len(reference) > 0 && !titleValuesMatch(records, reference, candidate) {
			continue
		}
		return candidate, nil
	}

	return "", fmt.Errorf("no known title field among sample keys")
}

// commonFields liefert die normalisierten Schlüssel, die in jedem
// Datensatz vorkommen.
func commonFields(records []metadata.RawSample) map[string]bool {
	common := make(map[string]bool)
	for _, key := range sortedKeys(records[0]) {
		common[normalizeFieldName(key)] = true
	}
	for _, record := range records[1:] {
		seen := make(map[string]bool, len(record))
		for _, key := range sortedKeys(record) {
			seen[normalizeFieldName(key)] = true
		}
		for field := range common {
			if !seen[field] {
				delete(common, field)
			}
		}
	}
	return common
}

// titleValuesMatch prüft, ob beide Listings unter dem Kandidaten-Feld
// dieselbe Titelmenge tragen.
func titleValuesMatch(records, reference []metadata.RawSample, field string) bool {
	recordTitles := titleSet(records, field)
	referenceTitles := titleSet(reference, field)
	if len(referenceTitles) == 0 {
		return false
	}
	for title := range referenceTitles {
		if !recordTitles[title] {
			return false
		}
	}
	return true
}

func titleSet(records []metadata.RawSample, field string) map[string]bool {
	titles := make(map[string]bool)
	for _, record := range records {
		if title := ExtractTitle(record, field); title != "" {
			titles[title] = true
		}
	}
	return titles
}

// ExtractTitle liest den Titel eines Datensatzes aus dem gewählten Feld,
// mit normalisiertem Whitespace für exakte Lookups.
func ExtractTitle(record metadata.RawSample, field string) string {
	for _, key := range sortedKeys(record) {
		if normalizeFieldName(key) == field {
			return normalizeTitle(scalarToString(record[key]))
		}
	}
	return ""
}

// Harmonizer bildet heterogene Roh-Metadaten auf das kanonische
// Probenschema ab. Er ist zustandslos und darf für verschiedene
// Experimente parallel verwendet werden.
type Harmonizer struct{}

// NewHarmonizer erstellt einen neuen Harmonizer.
func NewHarmonizer() *Harmonizer {
	return &Harmonizer{}
}

// HarmonizeSample bildet einen einzelnen Roh-Datensatz auf das
// kanonische Schema ab. Die Schlüssel werden in sortierter Reihenfolge
// verarbeitet; bei mehreren Synonymen für dasselbe kanonische Feld
// gewinnt deterministisch das erste.
func (h *Harmonizer) HarmonizeSample(record metadata.RawSample, titleField string) models.HarmonizedSample {
	sample := models.HarmonizedSample{}

	if titleField != "" {
		sample.Title = ExtractTitle(record, titleField)
	}

	assigned := make(map[string]bool)
	for _, key := range sortedKeys(record) {
		name := normalizeFieldName(key)
		if name == titleField {
			continue
		}

		// Verschachtelte Werte dürfen hier nicht mehr ankommen; falls
		// doch, werden sie verworfen statt durchgereicht.
		value := strings.TrimSpace(scalarToString(record[key]))
		if value == "" {
			continue
		}

		canonical, known := fieldSynonyms[name]
		if !known {
			if sample.Passthrough == nil {
				sample.Passthrough = make(map[string]string)
			}
			sample.Passthrough[name] = value
			continue
		}
		if assigned[canonical] {
			continue
		}

		if canonical == "age" {
			age, err := strconv.ParseFloat(value, 64)
			if err != nil {
				// Nicht-numerisches Alter bleibt als kategorialer
				// Passthrough-Wert erhalten.
				if sample.Passthrough == nil {
					sample.Passthrough = make(map[string]string)
				}
				sample.Passthrough[name] = value
				continue
			}
			sample.Age = &age
			assigned[canonical] = true
			continue
		}

		switch canonical {
		case "sex":
			sample.Sex = strings.ToLower(value)
		case "specimen_part":
			sample.SpecimenPart = value
		case "subject":
			sample.Subject = value
		case "developmental_stage":
			sample.DevelopmentalStage = value
		case "disease":
			sample.Disease = value
		case "compound":
			sample.Compound = value
		case "treatment":
			sample.Treatment = value
		case "time":
			sample.Time = value
		}
		assigned[canonical] = true
	}

	return sample
}

// HarmonizeAllSamples harmonisiert alle Datensätze und schlüsselt das
// Ergebnis nach dem extrahierten Titel. Wird kein Titel-Feld übergeben,
// wird es aus den Datensätzen bestimmt. Bei Titel-Kollisionen gewinnt
// der spätere Datensatz (last-write-wins).
func (h *Harmonizer) HarmonizeAllSamples(records []metadata.RawSample, titleField string) (map[string]models.HarmonizedSample, error) {
	if len(records) == 0 {
		return map[string]models.HarmonizedSample{}, nil
	}

	if titleField == "" {
		field, err := DetermineTitleField(records, nil)
		if err != nil {
			return nil, err
		}
		titleField = field
	}

	harmonized := make(map[string]models.HarmonizedSample, len(records))
	for _, record := range records {
		sample := h.HarmonizeSample(record, titleField)
		if sample.Title == "" {
			continue
		}
		harmonized[sample.Title] = sample
	}
	return harmonized, nil
}

// sortedKeys liefert die Schlüssel eines Datensatzes in stabiler
// Reihenfolge.
func sortedKeys(record metadata.RawSample) []string {
	keys := make([]string, 0, len(record))
	for key := range record {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
