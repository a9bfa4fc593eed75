package geo

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"sample-scout/agents"
	"sample-scout/config"
	"sample-scout/models"
)

// Agent sammelt MicroArray-Accessions aus einem lokalen
// GEOmetadb-SQLite-Spiegel (https://www.bioconductor.org/packages/GEOmetadb).
type Agent struct {
	Config *config.Config
	Filter agents.Filter
	Logger *zap.Logger
}

// NewAgent erstellt einen neuen GEO-Agenten.
func NewAgent(cfg *config.Config, filter agents.Filter, logger *zap.Logger) *Agent {
	return &Agent{Config: cfg, Filter: filter, Logger: logger}
}

// Name gibt den Namen des Agenten zurück.
func (a *Agent) Name() string {
	return models.SourceMicroarrayGEO
}

// Collect fragt den GEOmetadb-Spiegel ab. Gefiltert wird wahlweise über
// GEO-Plattform-IDs, den Organismus oder ein Keyword in Titel/Summary,
// jeweils eingeschränkt auf das Submission-Datumsfenster.
func (a *Agent) Collect() ([]models.GatheredAccession, error) {
	log := a.Logger.With(zap.String("agent", a.Name()), zap.String("db", a.Config.GEOMetaDBPath))

	db, err := sql.Open("sqlite", a.Config.GEOMetaDBPath)
	if err != nil {
		return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
	}
	defer db.Close()

	query, args := a.buildQuery()
	log.Debug("Führe GEOmetadb-Abfrage aus", zap.String("query", query))

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
	}
	defer rows.Close()

	var entries []models.GatheredAccession
	for rows.Next() {
		var code string
		var submissionDate sql.NullString
		if err := rows.Scan(&code, &submissionDate); err != nil {
			return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
		}

		entry := models.GatheredAccession{
			AccessionCode: code,
			Source:        models.SourceMicroarrayGEO,
			Organism:      a.Filter.Organism,
		}
		if submissionDate.Valid {
			if submitted, err := time.Parse("2006-01-02", submissionDate.String); err == nil {
				entry.PublishedDate = &submitted
			}
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
	}

	log.Info("GEOmetadb-Abfrage abgeschlossen", zap.Int("count", len(entries)))
	return entries, nil
}

// buildQuery baut die SQL-Abfrage passend zum gesetzten Filter.
func (a *Agent) buildQuery() (string, []any) {
	var conditions []string
	var args []any

	base := "SELECT DISTINCT gse.gse, gse.submission_date FROM gse"

	switch {
	case len(a.Filter.IDs) > 0:
		base += " JOIN gse_gpl ON gse_gpl.gse = gse.gse"
		placeholders := strings.TrimRight(strings.Repeat("?,", len(a.Filter.IDs)), ",")
		conditions = append(conditions, fmt.Sprintf("gse_gpl.gpl IN (%s)", placeholders))
		for _, id := range a.Filter.IDs {
			args = append(args, id)
		}
	case a.Filter.Organism != "":
		base += " JOIN gse_gsm ON gse_gsm.gse = gse.gse JOIN gsm ON gsm.gsm = gse_gsm.gsm"
		conditions = append(conditions, "LOWER(gsm.organism_ch1) = LOWER(?)")
		args = append(args, a.Filter.Organism)
	case a.Filter.Keyword != "":
		conditions = append(conditions, "(LOWER(gse.title) LIKE ? OR LOWER(gse.summary) LIKE ?)")
		keyword := "%" + strings.ToLower(a.Filter.Keyword) + "%"
		args = append(args, keyword, keyword)
	}

	if a.Filter.Since != "" {
		conditions = append(conditions, "gse.submission_date >= ?")
		args = append(args, a.Filter.Since)
	}
	if a.Filter.Until != "" {
		conditions = append(conditions, "gse.submission_date <= ?")
		args = append(args, a.Filter.Until)
	}

	query := base
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	return query, args
}
