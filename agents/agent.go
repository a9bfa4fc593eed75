package agents

import (
	"fmt"

	"sample-scout/models"
)

// Agent ist das Interface, das jeder Accession-Agent (ArrayExpress, GEO,
// SRA) implementieren muss. Agenten sind untereinander unabhängig und
// liefern Roh-Kandidaten ohne Ordnungsgarantie.
type Agent interface {
	// Collect fragt die externe Quelle mit dem konfigurierten Filter ab
	// und gibt die gefundenen Accession-Einträge zurück. Ein leeres
	// Ergebnis ist kein Fehler; Transport- oder Parse-Fehler werden als
	// SourceUnavailableError gemeldet.
	Collect() ([]models.GatheredAccession, error)

	// Name gibt den eindeutigen Namen des Agenten zurück (z.B. "microarray-geo").
	Name() string
}

// Filter beschreibt die Suchkriterien eines Gather-Laufs. Pro Quelle muss
// genau eines von IDs, Keyword oder Organism gesetzt sein; das erzwingt
// der Aufrufer, nicht der Agent.
type Filter struct {
	Organism string
	Keyword  string
	// Quellenspezifische IDs: ArrayExpress-Accessions, GEO-Plattform-IDs
	// oder Taxon-IDs, je nach Agent.
	IDs []string
	// Datumsfenster im Format YYYY-MM-DD.
	Since string
	Until string
}

// SourceUnavailableError meldet, dass eine einzelne Quelle nicht
// erreichbar oder ihre Antwort nicht auswertbar war. Der Fehler ist pro
// Agent isoliert und verdirbt keine Teilergebnisse anderer Agenten.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}
