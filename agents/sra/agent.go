package sra

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"sample-scout/agents"
	"sample-scout/config"
	"sample-scout/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// studyResult repräsentiert einen Treffer der ENA-Portal-Such-API.
type studyResult struct {
	StudyAccession string `json:"secondary_study_accession"`
	FirstPublic    string `json:"first_public"`
}

// Agent sammelt RNA-Seq-Study-Accessions über die ENA-Portal-API
// (https://www.ebi.ac.uk/ena/portal/api/).
type Agent struct {
	Config *config.Config
	Filter agents.Filter
	Logger *zap.Logger
}

// NewAgent erstellt einen neuen RNA-Seq-Agenten.
func NewAgent(cfg *config.Config, filter agents.Filter, logger *zap.Logger) *Agent {
	return &Agent{Config: cfg, Filter: filter, Logger: logger}
}

// Name gibt den Namen des Agenten zurück.
func (a *Agent) Name() string {
	return models.SourceRNASeq
}

// Collect fragt die ENA-Portal-API nach transkriptomischen Studien ab.
func (a *Agent) Collect() ([]models.GatheredAccession, error) {
	log := a.Logger.With(zap.String("agent", a.Name()))

	searchURL := a.buildSearchURL()
	log.Debug("Rufe ENA-Portal-API auf", zap.String("url", searchURL))

	resp, err := httpClient.Get(searchURL)
	if err != nil {
		return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
	}
	defer resp.Body.Close()

	// Die Portal-API antwortet mit 204, wenn kein Datensatz passt.
	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &agents.SourceUnavailableError{
			Source: a.Name(),
			Err:    fmt.Errorf("ena portal search failed: status %d", resp.StatusCode),
		}
	}

	var results []studyResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
	}

	var entries []models.GatheredAccession
	for _, result := range results {
		if result.StudyAccession == "" {
			continue
		}
		entry := models.GatheredAccession{
			AccessionCode: result.StudyAccession,
			Source:        models.SourceRNASeq,
			Organism:      a.Filter.Organism,
		}
		if published, err := time.Parse("2006-01-02", result.FirstPublic); err == nil {
			entry.PublishedDate = &published
		}
		entries = append(entries, entry)
	}

	log.Info("ENA-Suche abgeschlossen", zap.Int("count", len(entries)))
	return entries, nil
}

// buildSearchURL baut die URL für die Such-Anfrage inklusive der
// ENA-Query-Sprache im query-Parameter.
func (a *Agent) buildSearchURL() string {
	params := url.Values{}
	params.Set("result", "read_study")
	params.Set("fields", "secondary_study_accession,first_public")
	params.Set("format", "json")
	params.Set("limit", "0")
	params.Set("query", a.buildQuery())
	return fmt.Sprintf("%s/search?%s", a.Config.ENAPortalBaseURL, params.Encode())
}

// buildQuery baut den ENA-Query-Ausdruck passend zum gesetzten Filter.
func (a *Agent) buildQuery() string {
	conditions := []string{
		`library_source="TRANSCRIPTOMIC"`,
		`library_strategy="RNA-Seq"`,
		`instrument_platform="ILLUMINA"`,
	}

	switch {
	case len(a.Filter.IDs) > 0:
		taxa := make([]string, 0, len(a.Filter.IDs))
		for _, taxonID := range a.Filter.IDs {
			taxa = append(taxa, fmt.Sprintf("tax_eq(%s)", taxonID))
		}
		conditions = append(conditions, "("+strings.Join(taxa, " OR ")+")")
	case a.Filter.Organism != "":
		conditions = append(conditions, fmt.Sprintf("tax_name(%q)", a.Filter.Organism))
	case a.Filter.Keyword != "":
		conditions = append(conditions, fmt.Sprintf(`study_title="*%s*"`, a.Filter.Keyword))
	}

	if a.Filter.Since != "" {
		conditions = append(conditions, fmt.Sprintf("first_public>=%s", a.Filter.Since))
	}
	if a.Filter.Until != "" {
		conditions = append(conditions, fmt.Sprintf("first_public<=%s", a.Filter.Until))
	}

	return strings.Join(conditions, " AND ")
}
