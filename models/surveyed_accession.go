package models

import (
	"time"
)

// SurveyedAccession ist das append-only Ledger bereits eingespeister
// Accession-Codes. Einträge werden nie verändert oder gelöscht; ein
// vorhandener Code darf vom Admission-Controller nicht erneut
// eingespeist werden.
type SurveyedAccession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	AccessionCode string `json:"accession_code" gorm:"uniqueIndex;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SurveyedAccession) TableName() string {
	return "surveyed_accessions"
}
