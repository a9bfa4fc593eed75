package models

import (
	"time"
)

// Experiment bündelt die Proben, die zu einer Experiment-Accession gehören.
type Experiment struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AccessionCode string `json:"accession_code" gorm:"uniqueIndex;not null"`
	Title         string `json:"title,omitempty"`
	Source        string `json:"source,omitempty" gorm:"index"`

	Samples []Sample `json:"samples,omitempty" gorm:"many2many:experiment_sample_associations;"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Experiment) TableName() string {
	return "experiments"
}
