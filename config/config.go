package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4243"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Quellen für das Accession-Gathering
	BioStudiesBaseURL string `envconfig:"BIOSTUDIES_BASE_URL" default:"https://www.ebi.ac.uk/biostudies/api/v1"`
	ENAPortalBaseURL  string `envconfig:"ENA_PORTAL_BASE_URL" default:"https://www.ebi.ac.uk/ena/portal/api"`
	GEOMetaDBPath     string `envconfig:"GEO_METADB_PATH" default:"data/GEOmetadb.sqlite"`
	SearchPageSize    int    `envconfig:"SEARCH_PAGE_SIZE" default:"100"`

	// Verhalten bei Ausfall einer einzelnen Quelle: true bricht den
	// kompletten Gather-Lauf ab, false liefert Teilergebnisse mit Warnung.
	GatherFailFast bool `envconfig:"GATHER_FAIL_FAST" default:"false"`

	// Admission-Steuerung (feed)
	FeedBatchSize      int           `envconfig:"FEED_BATCH_SIZE" default:"1000"`
	FeedConcurrencyCap int64         `envconfig:"FEED_CONCURRENCY_CAP" default:"15"`
	FeedPacingDelay    time.Duration `envconfig:"FEED_PACING_DELAY" default:"30s"`
	// Survey-Jobs, die vor diesem Datum erzeugt wurden, zählen nicht mehr
	// als "in flight" (Format YYYY-MM-DD).
	JobCreatedAtCutoff string `envconfig:"JOB_CREATED_AT_CUTOFF" default:"2024-01-01"`

	// Cron-gesteuertes Gathering
	CronSchedule   string `envconfig:"CRON_SCHEDULE" default:"0 2 * * *"`
	CronOrganism   string `envconfig:"CRON_ORGANISM" default:"homo sapiens"`
	CronSince      string `envconfig:"CRON_SINCE"`
	EnabledSources string `envconfig:"ENABLED_SOURCES" default:"microarray-ae,microarray-geo,rna-seq"`

	// S3-Archiv für rohe Metadaten-Payloads
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION" default:"eu-central-1"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// JobCutoffTime parst den konfigurierten Cutoff für die Job-Zählung.
func (c *Config) JobCutoffTime() (time.Time, error) {
	return time.Parse("2006-01-02", c.JobCreatedAtCutoff)
}

// ArchiveEnabled meldet, ob das S3-Archiv vollständig konfiguriert ist.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3URL != "" && c.ArchiveS3Bucket != "" && c.ArchiveS3Key != "" && c.ArchiveS3Secret != ""
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
