package arrayexpress

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"sample-scout/agents"
	"sample-scout/config"
	"sample-scout/models"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

// searchResponse repräsentiert die JSON-Antwort der BioStudies-Such-API.
type searchResponse struct {
	Hits []struct {
		Accession   string `json:"accession"`
		Title       string `json:"title"`
		ReleaseDate string `json:"release_date"`
	} `json:"hits"`
	TotalHits int `json:"totalHits"`
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
}

// Agent sammelt MicroArray-Accessions aus der ArrayExpress-Collection
// der BioStudies-Datenbank.
type Agent struct {
	Config *config.Config
	Filter agents.Filter
	Logger *zap.Logger
}

// NewAgent erstellt einen neuen ArrayExpress-Agenten.
func NewAgent(cfg *config.Config, filter agents.Filter, logger *zap.Logger) *Agent {
	return &Agent{Config: cfg, Filter: filter, Logger: logger}
}

// Name gibt den Namen des Agenten zurück.
func (a *Agent) Name() string {
	return models.SourceMicroarrayAE
}

// Collect sammelt Accession-Einträge. Explizit übergebene ArrayExpress-IDs
// werden direkt übernommen, ansonsten wird die Such-API seitenweise
// abgefragt und nach dem Release-Datum gefiltert.
func (a *Agent) Collect() ([]models.GatheredAccession, error) {
	if len(a.Filter.IDs) > 0 {
		entries := make([]models.GatheredAccession, 0, len(a.Filter.IDs))
		for _, id := range a.Filter.IDs {
			entries = append(entries, models.GatheredAccession{
				AccessionCode: id,
				Source:        models.SourceMicroarrayAE,
				Organism:      a.Filter.Organism,
			})
		}
		return entries, nil
	}

	log := a.Logger.With(zap.String("agent", a.Name()))

	query := a.Filter.Keyword
	if query == "" {
		query = a.Filter.Organism
	}

	var entries []models.GatheredAccession
	for page := 1; ; page++ {
		searchURL := a.buildSearchURL(query, page)
		log.Debug("Rufe BioStudies-Such-API auf", zap.String("url", searchURL))

		resp, err := httpClient.Get(searchURL)
		if err != nil {
			return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, &agents.SourceUnavailableError{
				Source: a.Name(),
				Err:    fmt.Errorf("biostudies search failed: status %d", resp.StatusCode),
			}
		}

		var searchResp searchResponse
		err = json.NewDecoder(resp.Body).Decode(&searchResp)
		resp.Body.Close()
		if err != nil {
			return nil, &agents.SourceUnavailableError{Source: a.Name(), Err: err}
		}

		for _, hit := range searchResp.Hits {
			if !a.withinDateWindow(hit.ReleaseDate) {
				continue
			}
			entry := models.GatheredAccession{
				AccessionCode: hit.Accession,
				Source:        models.SourceMicroarrayAE,
				Organism:      a.Filter.Organism,
			}
			if released, err := time.Parse("2006-01-02", hit.ReleaseDate); err == nil {
				entry.PublishedDate = &released
			}
			entries = append(entries, entry)
		}

		if len(searchResp.Hits) < a.Config.SearchPageSize || page*a.Config.SearchPageSize >= searchResp.TotalHits {
			break
		}
	}

	log.Info("BioStudies-Suche abgeschlossen", zap.Int("count", len(entries)))
	return entries, nil
}

// buildSearchURL baut die URL für eine Such-Anfrage.
func (a *Agent) buildSearchURL(query string, page int) string {
	params := url.Values{}
	params.Set("query", query)
	params.Set("type", "study")
	params.Set("collection", "arrayexpress")
	params.Set("pageSize", fmt.Sprintf("%d", a.Config.SearchPageSize))
	params.Set("page", fmt.Sprintf("%d", page))
	return fmt.Sprintf("%s/search?%s", a.Config.BioStudiesBaseURL, params.Encode())
}

// withinDateWindow prüft, ob ein Release-Datum im konfigurierten
// Fenster liegt. YYYY-MM-DD vergleicht lexikalisch korrekt.
func (a *Agent) withinDateWindow(releaseDate string) bool {
	if releaseDate == "" {
		return a.Filter.Since == ""
	}
	if a.Filter.Since != "" && releaseDate < a.Filter.Since {
		return false
	}
	if a.Filter.Until != "" && releaseDate > a.Filter.Until {
		return false
	}
	return true
}
