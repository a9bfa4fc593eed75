package services

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sample-scout/models"
)

// AccessionPattern beschreibt persistierbare Accession-Codes:
// ein nicht-numerisches Präfix gefolgt von einem numerischen Suffix
// (GSE12345, E-MTAB-3050, SRP123456).
var AccessionPattern = regexp.MustCompile(`^(\D+)(\d+)$`)

// AggregateAccessions vereinigt die Einträge aller Agenten, verwirft
// Codes, die nicht zum Muster passen, dedupliziert über den Code und
// sortiert aufsteigend nach (Präfix lexikalisch, Suffix numerisch) —
// GSE9 kommt also vor GSE10. maxCount > 0 begrenzt die Ausgabe.
func AggregateAccessions(entriesPerAgent [][]models.GatheredAccession, maxCount int, pattern *regexp.Regexp) []models.GatheredAccession {
	if pattern == nil {
		pattern = AccessionPattern
	}

	unique := make(map[string]models.GatheredAccession)
	for _, entries := range entriesPerAgent {
		for _, entry := range entries {
			if !pattern.MatchString(entry.AccessionCode) {
				continue
			}
			if _, exists := unique[entry.AccessionCode]; !exists {
				unique[entry.AccessionCode] = entry
			}
		}
	}

	aggregated := make([]models.GatheredAccession, 0, len(unique))
	for _, entry := range unique {
		aggregated = append(aggregated, entry)
	}

	sort.Slice(aggregated, func(i, j int) bool {
		prefixI, suffixI := splitAccession(pattern, aggregated[i].AccessionCode)
		prefixJ, suffixJ := splitAccession(pattern, aggregated[j].AccessionCode)
		if prefixI != prefixJ {
			return prefixI < prefixJ
		}
		return suffixI < suffixJ
	})

	if maxCount > 0 && len(aggregated) > maxCount {
		aggregated = aggregated[:maxCount]
	}
	return aggregated
}

// splitAccession zerlegt einen Code in Präfix und numerisches Suffix.
func splitAccession(pattern *regexp.Regexp, code string) (string, int64) {
	match := pattern.FindStringSubmatch(code)
	if len(match) != 3 {
		return code, 0
	}
	suffix, _ := strconv.ParseInt(match[2], 10, 64)
	return match[1], suffix
}

// RenderAccessions rendert das Dry-Run-Format: ein Code pro Zeile in
// deterministischer Sortierung, oder eine einzelne Hinweiszeile.
func RenderAccessions(entries []models.GatheredAccession) string {
	if len(entries) == 0 {
		return "No accessions found."
	}
	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		lines = append(lines, entry.AccessionCode)
	}
	return strings.Join(lines, "\n")
}

// PersistAccessions schreibt alle Einträge in einer Transaktion.
// Konflikte auf dem Code werden ignoriert, damit wiederholte Läufe mit
// überlappender Eingabe idempotent bleiben.
func PersistAccessions(db *gorm.DB, entries []models.GatheredAccession) error {
	if len(entries) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "accession_code"}},
		DoNothing: true,
	}).Create(&entries).Error
}
