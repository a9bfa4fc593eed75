package services

import (
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sample-scout/models"
)

// GormAccessionLedger ist die GORM-Implementierung des Ledgers.
type GormAccessionLedger struct {
	DB *gorm.DB
}

// FilterSurveyed meldet, welche Codes schon im Ledger stehen.
func (l *GormAccessionLedger) FilterSurveyed(codes []string) (map[string]bool, error) {
	var rows []models.SurveyedAccession
	if err := l.DB.Where("accession_code IN ?", codes).Find(&rows).Error; err != nil {
		return nil, err
	}
	surveyed := make(map[string]bool, len(rows))
	for _, row := range rows {
		surveyed[row.AccessionCode] = true
	}
	return surveyed, nil
}

// AppendSurveyed hängt alle Codes in einem Bulk-Insert an. Konflikte auf
// dem Code werden ignoriert; das Ledger bleibt append-only.
func (l *GormAccessionLedger) AppendSurveyed(codes []string, createdAt time.Time) error {
	rows := make([]models.SurveyedAccession, 0, len(codes))
	for _, code := range codes {
		rows = append(rows, models.SurveyedAccession{AccessionCode: code, CreatedAt: createdAt})
	}
	return l.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "accession_code"}},
		DoNothing: true,
	}).Create(&rows).Error
}

// GormSurveyJobCounter zählt laufende Survey-Jobs über die Job-Tabelle.
type GormSurveyJobCounter struct {
	DB *gorm.DB
}

// CountActive zählt Jobs, die gestartet, noch nicht beendet und nach dem
// Cutoff erzeugt worden sind.
func (c *GormSurveyJobCounter) CountActive(cutoff time.Time) (int64, error) {
	var count int64
	err := c.DB.Model(&models.SurveyJob{}).
		Where("created_at > ?", cutoff).
		Where("start_time IS NOT NULL").
		Where("end_time IS NULL").
		Count(&count).Error
	return count, err
}

// GormSurveyEnqueuer legt für einen Code einen neuen Survey-Job an.
// Doppelte Codes sind unkritisch: die Worker deduplizieren über die
// Experiment-Accession.
type GormSurveyEnqueuer struct {
	DB *gorm.DB
}

// Enqueue reiht einen Survey-Job für die Accession ein.
func (e *GormSurveyEnqueuer) Enqueue(code string) error {
	job := models.SurveyJob{
		AccessionCode: code,
		SourceType:    SourceTypeForAccession(code),
	}
	return e.DB.Create(&job).Error
}

// SourceTypeForAccession leitet den Survey-Typ aus dem Code-Präfix ab.
func SourceTypeForAccession(code string) string {
	switch {
	case strings.HasPrefix(code, "E-"):
		return "ARRAY_EXPRESS"
	case strings.HasPrefix(code, "GSE"):
		return "GEO"
	case strings.HasPrefix(code, "SRP"), strings.HasPrefix(code, "ERP"), strings.HasPrefix(code, "DRP"):
		return "SRA"
	default:
		return "UNKNOWN"
	}
}
