package main

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"sample-scout/agents"
	"sample-scout/agents/arrayexpress"
	"sample-scout/agents/geo"
	"sample-scout/agents/sra"
	"sample-scout/config"
	"sample-scout/models"
	"sample-scout/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var dateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

type gatherFlags struct {
	Sources  []string
	Organism string
	Keyword  string

	AEIDs        []string
	AEIDsFile    string
	GPLIDs       []string
	GPLIDsFile   string
	TaxonIDs     []string
	TaxonIDsFile string

	Since string
	Until string
	Count int

	DryRun          bool
	ExcludePrevious bool
	Verbose         bool
}

func main() {
	flags := gatherFlags{}

	rootCmd := &cobra.Command{
		Use:   "gather",
		Short: "Sammelt neue Accession-Codes aus ArrayExpress, GEO und SRA",
		Long: `gather fragt die konfigurierten Quellen nach neuen Experiment-Accessions
ab, vereinigt die Ergebnisse deterministisch und schreibt sie in die
Datenbank (oder gibt sie im Dry-Run nur aus).`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGather(&flags)
		},
	}

	rootCmd.Flags().StringSliceVar(&flags.Sources, "source", models.DataSources,
		"Abzufragende Quellen (microarray-ae, microarray-geo, rna-seq)")
	rootCmd.Flags().StringVar(&flags.Organism, "organism", "", "Organismus-Filter (z.B. 'homo sapiens')")
	rootCmd.Flags().StringVar(&flags.Keyword, "keyword", "", "Freitext-Suchbegriff")

	rootCmd.Flags().StringSliceVar(&flags.AEIDs, "ae-id", nil, "Explizite ArrayExpress-Accessions")
	rootCmd.Flags().StringVar(&flags.AEIDsFile, "ae-ids-file", "", "Datei mit ArrayExpress-Accessions (eine pro Zeile)")
	rootCmd.Flags().StringSliceVar(&flags.GPLIDs, "gpl-id", nil, "Explizite GEO-Plattform-IDs")
	rootCmd.Flags().StringVar(&flags.GPLIDsFile, "gpl-ids-file", "", "Datei mit GEO-Plattform-IDs (eine pro Zeile)")
	rootCmd.Flags().StringSliceVar(&flags.TaxonIDs, "taxon-id", nil, "Explizite NCBI-Taxonomie-IDs")
	rootCmd.Flags().StringVar(&flags.TaxonIDsFile, "taxon-ids-file", "", "Datei mit Taxonomie-IDs (eine pro Zeile)")

	rootCmd.Flags().StringVarP(&flags.Since, "since", "s", "", "Untere Datumsgrenze YYYY-MM-DD (Pflicht)")
	rootCmd.Flags().StringVarP(&flags.Until, "until", "u", "", "Obere Datumsgrenze YYYY-MM-DD")
	rootCmd.Flags().IntVarP(&flags.Count, "count", "c", 0, "Maximale Anzahl ausgegebener Accessions (0 = alle)")

	rootCmd.Flags().BoolVarP(&flags.DryRun, "dry-run", "d", false, "Nur ausgeben, nichts persistieren")
	rootCmd.Flags().BoolVar(&flags.ExcludePrevious, "exclude-previous", true,
		"Bereits gesammelte oder vermessene Codes herausfiltern")
	rootCmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Debug-Logging aktivieren")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runGather(flags *gatherFlags) error {
	// Alle Validierungsfehler einsammeln, bevor irgendetwas Netzwerk
	// oder Datenbank berührt.
	if violations := validate(flags); len(violations) > 0 {
		for _, violation := range violations {
			fmt.Fprintln(os.Stderr, violation)
		}
		return fmt.Errorf("%d validation error(s)", len(violations))
	}

	log, err := newLogger(flags.Verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}

	aeIDs, err := mergeIDs(flags.AEIDs, flags.AEIDsFile)
	if err != nil {
		return err
	}
	gplIDs, err := mergeIDs(flags.GPLIDs, flags.GPLIDsFile)
	if err != nil {
		return err
	}
	taxonIDs, err := mergeIDs(flags.TaxonIDs, flags.TaxonIDsFile)
	if err != nil {
		return err
	}

	var active []agents.Agent
	for _, source := range flags.Sources {
		filter := agents.Filter{
			Organism: flags.Organism,
			Keyword:  flags.Keyword,
			Since:    flags.Since,
			Until:    flags.Until,
		}
		switch source {
		case models.SourceMicroarrayAE:
			filter.IDs = aeIDs
			active = append(active, arrayexpress.NewAgent(cfg, filter, log))
		case models.SourceMicroarrayGEO:
			filter.IDs = gplIDs
			active = append(active, geo.NewAgent(cfg, filter, log))
		case models.SourceRNASeq:
			filter.IDs = taxonIDs
			active = append(active, sra.NewAgent(cfg, filter, log))
		}
	}

	// Im reinen Dry-Run ohne Previous-Filter kommt der Lauf ohne
	// Datenbank aus.
	var db *gorm.DB
	if !flags.DryRun || flags.ExcludePrevious {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			return fmt.Errorf("database connection: %w", err)
		}
	}

	gatherService := services.NewGatherService(cfg, db, log, active)
	entries, err := gatherService.Run(services.GatherOptions{
		MaxCount:        flags.Count,
		DryRun:          flags.DryRun,
		ExcludePrevious: flags.ExcludePrevious,
		FailFast:        cfg.GatherFailFast,
	})
	if err != nil {
		return err
	}

	if flags.DryRun {
		fmt.Println(services.RenderAccessions(entries))
		return nil
	}

	log.Info("Gather-Lauf abgeschlossen", zap.Int("new_accessions", len(entries)))
	return nil
}

// validate prüft alle Flags und gibt sämtliche Verstöße auf einmal
// zurück, damit der Aufrufer nicht iterativ nachbessern muss.
func validate(flags *gatherFlags) []string {
	var violations []string

	if flags.Since == "" {
		violations = append(violations, "--since is required (YYYY-MM-DD)")
	} else if !dateRe.MatchString(flags.Since) {
		violations = append(violations, fmt.Sprintf("--since %q is not a valid date (YYYY-MM-DD)", flags.Since))
	}
	if flags.Until != "" && !dateRe.MatchString(flags.Until) {
		violations = append(violations, fmt.Sprintf("--until %q is not a valid date (YYYY-MM-DD)", flags.Until))
	}
	if dateRe.MatchString(flags.Since) && dateRe.MatchString(flags.Until) && flags.Since > flags.Until {
		violations = append(violations, fmt.Sprintf("--since %q must not be after --until %q", flags.Since, flags.Until))
	}

	known := make(map[string]bool, len(models.DataSources))
	for _, source := range models.DataSources {
		known[source] = true
	}
	for _, source := range flags.Sources {
		if !known[source] {
			violations = append(violations, fmt.Sprintf("unknown source %q (expected one of %s)",
				source, strings.Join(models.DataSources, ", ")))
		}
	}

	// Pro Quelle muss genau ein Suchkriterium gesetzt sein: Keyword,
	// Organismus oder explizite IDs.
	idFlags := map[string]bool{
		models.SourceMicroarrayAE:  len(flags.AEIDs) > 0 || flags.AEIDsFile != "",
		models.SourceMicroarrayGEO: len(flags.GPLIDs) > 0 || flags.GPLIDsFile != "",
		models.SourceRNASeq:        len(flags.TaxonIDs) > 0 || flags.TaxonIDsFile != "",
	}
	for _, source := range flags.Sources {
		if !known[source] {
			continue
		}
		criteria := 0
		if flags.Keyword != "" {
			criteria++
		}
		if flags.Organism != "" {
			criteria++
		}
		if idFlags[source] {
			criteria++
		}
		if criteria != 1 {
			violations = append(violations, fmt.Sprintf(
				"source %q needs exactly one of --keyword, --organism or explicit IDs (got %d)", source, criteria))
		}
	}

	return violations
}

// mergeIDs vereinigt Flag-IDs mit den Zeilen einer optionalen Datei.
func mergeIDs(ids []string, path string) ([]string, error) {
	if path == "" {
		return ids, nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading ID file: %w", err)
	}
	defer file.Close()

	merged := append([]string{}, ids...)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			merged = append(merged, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ID file: %w", err)
	}
	return merged, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
