package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"sample-scout/config"
	"sample-scout/models"
	"sample-scout/services"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func main() {
	var verbose bool

	rootCmd := &cobra.Command{
		Use:   "feed <accession-list-file> [more files...]",
		Short: "Spielt einen Backlog bekannter Accessions dosiert ins Survey-System ein",
		Long: `feed liest Accession-Codes (einer pro Zeile) aus den übergebenen Dateien
und reiht sie unter Concurrency-Cap und fester Taktung als Survey-Jobs
ein. Bereits vermessene Codes werden über das Ledger übersprungen.`,
		Args:         cobra.MinimumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFeed(args, verbose)
		},
	}
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Debug-Logging aktivieren")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runFeed(paths []string, verbose bool) error {
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load: %w", err)
	}
	cutoff, err := cfg.JobCutoffTime()
	if err != nil {
		return fmt.Errorf("invalid JOB_CREATED_AT_CUTOFF: %w", err)
	}

	backlog, err := readBacklog(paths)
	if err != nil {
		return err
	}
	if len(backlog) == 0 {
		log.Info("Backlog ist leer, nichts zu tun.")
		return nil
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("database connection: %w", err)
	}
	db.AutoMigrate(&models.SurveyedAccession{}, &models.SurveyJob{})

	controller := &services.AdmissionController{
		Ledger:         &services.GormAccessionLedger{DB: db},
		Jobs:           &services.GormSurveyJobCounter{DB: db},
		Queue:          &services.GormSurveyEnqueuer{DB: db},
		Logger:         log,
		BatchSize:      cfg.FeedBatchSize,
		ConcurrencyCap: cfg.FeedConcurrencyCap,
		PacingDelay:    cfg.FeedPacingDelay,
		Cutoff:         cutoff,
	}

	log.Info("Starte Backlog-Einspeisung",
		zap.Int("backlog_size", len(backlog)),
		zap.Int("batch_size", cfg.FeedBatchSize),
		zap.Int64("concurrency_cap", cfg.FeedConcurrencyCap))

	fed, err := controller.Run(backlog)
	if err != nil {
		return err
	}
	log.Info("Backlog-Einspeisung abgeschlossen", zap.Int("fed", fed))
	return nil
}

// readBacklog liest alle Dateien zeilenweise ein und dedupliziert die
// Codes in Eingabereihenfolge.
func readBacklog(paths []string) ([]string, error) {
	seen := make(map[string]bool)
	var backlog []string

	for _, path := range paths {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("reading backlog file: %w", err)
		}
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			code := strings.TrimSpace(scanner.Text())
			if code == "" || seen[code] {
				continue
			}
			seen[code] = true
			backlog = append(backlog, code)
		}
		err = scanner.Err()
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("reading backlog file: %w", err)
		}
	}
	return backlog, nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
