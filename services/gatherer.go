package services

import (
	"errors"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"sample-scout/agents"
	"sample-scout/config"
	"sample-scout/models"
)

// GatherOptions steuert einen einzelnen Gather-Lauf.
type GatherOptions struct {
	// MaxCount begrenzt die Anzahl der ausgegebenen Accessions (0 = alle).
	MaxCount int
	// DryRun unterdrückt das Persistieren; der Aufrufer rendert das
	// Ergebnis selbst.
	DryRun bool
	// ExcludePrevious filtert Codes heraus, die bereits gesammelt oder
	// vermessen wurden.
	ExcludePrevious bool
	// FailFast bricht den Lauf ab, sobald eine Quelle ausfällt, statt
	// Teilergebnisse zu liefern.
	FailFast bool
}

// GatherService orchestriert die parallelen Agenten-Abfragen und die
// anschließende Aggregation.
type GatherService struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *zap.Logger
	Agents []agents.Agent
}

// NewGatherService erstellt eine neue Instanz des GatherService.
func NewGatherService(cfg *config.Config, db *gorm.DB, logger *zap.Logger, activeAgents []agents.Agent) *GatherService {
	return &GatherService{Config: cfg, DB: db, Logger: logger, Agents: activeAgents}
}

// Run fragt alle Agenten parallel ab, wartet auf sämtliche Antworten
// (die endgültige Sortierung braucht die vollständige Vereinigungsmenge)
// und aggregiert das Ergebnis. Je nach Optionen wird persistiert oder
// nur zurückgegeben.
func (g *GatherService) Run(opts GatherOptions) ([]models.GatheredAccession, error) {
	entriesPerAgent := make([][]models.GatheredAccession, len(g.Agents))
	errorsPerAgent := make([]error, len(g.Agents))

	var wg sync.WaitGroup
	for i, agent := range g.Agents {
		wg.Add(1)
		go func(i int, agent agents.Agent) {
			defer wg.Done()
			entries, err := agent.Collect()
			entriesPerAgent[i] = entries
			errorsPerAgent[i] = err
		}(i, agent)
	}
	wg.Wait()

	for i, err := range errorsPerAgent {
		if err == nil {
			continue
		}
		var unavailable *agents.SourceUnavailableError
		if errors.As(err, &unavailable) {
			if opts.FailFast {
				return nil, err
			}
			// Bewusste Entscheidung: ohne FailFast degradiert der Lauf
			// zu Teilergebnissen, der Ausfall wird aber sichtbar gemacht.
			g.Logger.Warn("Quelle ausgefallen, fahre mit Teilergebnissen fort",
				zap.String("agent", g.Agents[i].Name()), zap.Error(err))
			continue
		}
		return nil, err
	}

	aggregated := AggregateAccessions(entriesPerAgent, 0, AccessionPattern)

	if opts.ExcludePrevious {
		filtered, err := g.excludePrevious(aggregated)
		if err != nil {
			return nil, err
		}
		aggregated = filtered
	}

	// Das Limit greift erst nach dem Previous-Filter, damit ein Lauf mit
	// Count nicht nur bereits bekannte Codes liefert.
	if opts.MaxCount > 0 && len(aggregated) > opts.MaxCount {
		aggregated = aggregated[:opts.MaxCount]
	}

	if opts.DryRun {
		return aggregated, nil
	}
	if err := PersistAccessions(g.DB, aggregated); err != nil {
		return nil, err
	}
	return aggregated, nil
}

// excludePrevious entfernt Codes, die schon in gathered_accessions oder
// im Surveyed-Ledger stehen.
func (g *GatherService) excludePrevious(entries []models.GatheredAccession) ([]models.GatheredAccession, error) {
	if len(entries) == 0 {
		return entries, nil
	}

	codes := make([]string, 0, len(entries))
	for _, entry := range entries {
		codes = append(codes, entry.AccessionCode)
	}

	known := make(map[string]bool)

	var gathered []models.GatheredAccession
	if err := g.DB.Where("accession_code IN ?", codes).Find(&gathered).Error; err != nil {
		return nil, err
	}
	for _, entry := range gathered {
		known[entry.AccessionCode] = true
	}

	var surveyed []models.SurveyedAccession
	if err := g.DB.Where("accession_code IN ?", codes).Find(&surveyed).Error; err != nil {
		return nil, err
	}
	for _, entry := range surveyed {
		known[entry.AccessionCode] = true
	}

	filtered := entries[:0]
	for _, entry := range entries {
		if !known[entry.AccessionCode] {
			filtered = append(filtered, entry)
		}
	}
	return filtered, nil
}
