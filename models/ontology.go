package models

import (
	"time"
)

// OntologyTerm ist ein Begriff aus einem kontrollierten Vokabular,
// unveränderlich nach dem Anlegen.
type OntologyTerm struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	OntologyTermID    string `json:"ontology_term_id" gorm:"uniqueIndex;not null"` // z.B. "EFO:0002939"
	HumanReadableName string `json:"human_readable_name" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (OntologyTerm) TableName() string {
	return "ontology_terms"
}

// Contribution benennt die Quelle, die ein Keyword beigesteuert hat.
type Contribution struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SourceName string `json:"source_name" gorm:"uniqueIndex;not null"`
	MethodsURL string `json:"methods_url,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Contribution) TableName() string {
	return "contributions"
}

// SampleKeyword verknüpft eine Probe mit einem Ontologie-Begriff und
// trägt die Provenienz der Zuordnung.
type SampleKeyword struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	SampleID uint         `json:"sample_id" gorm:"index;not null"`
	NameID   uint         `json:"name_id" gorm:"not null"`
	Name     OntologyTerm `json:"name" gorm:"foreignKey:NameID"`

	SourceID uint         `json:"source_id"`
	Source   Contribution `json:"source" gorm:"foreignKey:SourceID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SampleKeyword) TableName() string {
	return "sample_keywords"
}
