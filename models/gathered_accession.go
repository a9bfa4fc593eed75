package models

import (
	"time"
)

// Unterstützte Datenquellen für das Accession-Gathering.
const (
	SourceMicroarrayAE  = "microarray-ae"
	SourceMicroarrayGEO = "microarray-geo"
	SourceRNASeq        = "rna-seq"
)

// DataSources listet alle unterstützten Quellen in fester Reihenfolge.
var DataSources = []string{SourceMicroarrayAE, SourceMicroarrayGEO, SourceRNASeq}

// GatheredAccession repräsentiert eine entdeckte Experiment-Accession
// aus einem der öffentlichen Repositories.
type GatheredAccession struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	AccessionCode string     `json:"accession_code" gorm:"uniqueIndex;not null"`
	Source        string     `json:"source" gorm:"index"`
	Organism      string     `json:"organism,omitempty" gorm:"index"`
	PublishedDate *time.Time `json:"published_date,omitempty"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (GatheredAccession) TableName() string {
	return "gathered_accessions"
}
