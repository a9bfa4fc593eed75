package models

import (
	"sort"
	"time"
)

// Sample speichert die kanonischen, harmonisierten Metadaten einer
// biologischen Probe.
type Sample struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	AccessionCode string `json:"accession_code" gorm:"uniqueIndex;not null"`
	Title         string `json:"title" gorm:"index"`

	Sex                string   `json:"sex,omitempty"`
	Age                *float64 `json:"age,omitempty"`
	SpecimenPart       string   `json:"specimen_part,omitempty"`
	Subject            string   `json:"subject,omitempty"`
	DevelopmentalStage string   `json:"developmental_stage,omitempty"`
	Disease            string   `json:"disease,omitempty"`
	Compound           string   `json:"compound,omitempty"`
	Treatment          string   `json:"treatment,omitempty"`
	Time               string   `json:"time,omitempty" gorm:"column:time_point"`

	Keywords []SampleKeyword `json:"keywords,omitempty" gorm:"foreignKey:SampleID"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Sample) TableName() string {
	return "samples"
}

// GetSampleMetadataFields liefert alle Attributnamen, die auf mindestens
// einer der Proben einen nicht-leeren Wert tragen. Identitätsfelder
// (title, accession_code) zählen nicht als Metadaten.
func GetSampleMetadataFields(samples []Sample) []string {
	present := make(map[string]bool)
	for _, sample := range samples {
		if sample.Sex != "" {
			present["sex"] = true
		}
		// age ist numerisch gespeichert; gesetzt heißt vorhanden, auch bei 0.
		if sample.Age != nil {
			present["age"] = true
		}
		if sample.SpecimenPart != "" {
			present["specimen_part"] = true
		}
		if sample.Subject != "" {
			present["subject"] = true
		}
		if sample.DevelopmentalStage != "" {
			present["developmental_stage"] = true
		}
		if sample.Disease != "" {
			present["disease"] = true
		}
		if sample.Compound != "" {
			present["compound"] = true
		}
		if sample.Treatment != "" {
			present["treatment"] = true
		}
		if sample.Time != "" {
			present["time"] = true
		}
	}

	fields := make([]string, 0, len(present))
	for field := range present {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// GetSampleKeywords sammelt die menschenlesbaren Namen aller
// Ontologie-Begriffe, die (über beliebige Contributions) an den Proben
// hängen, dedupliziert und sortiert.
func GetSampleKeywords(samples []Sample) []string {
	seen := make(map[string]bool)
	for _, sample := range samples {
		for _, keyword := range sample.Keywords {
			if keyword.Name.HumanReadableName != "" {
				seen[keyword.Name.HumanReadableName] = true
			}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
