package models

import (
	"time"
)

// SurveyJob ist der Auftrag, ein Experiment vollständig zu vermessen.
// Angelegt vom Admission-Controller, ausgeführt von externen Workern;
// dieser Kern liest nur Zählerstände (gestartet, noch nicht beendet).
type SurveyJob struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`

	AccessionCode string     `json:"accession_code" gorm:"index;not null"`
	SourceType    string     `json:"source_type,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	EndTime       *time.Time `json:"end_time,omitempty"`
	Success       bool       `json:"success"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SurveyJob) TableName() string {
	return "survey_jobs"
}
