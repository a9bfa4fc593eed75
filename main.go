package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"sample-scout/agents"
	"sample-scout/agents/arrayexpress"
	"sample-scout/agents/geo"
	"sample-scout/agents/sra"
	"sample-scout/config"
	"sample-scout/metadata"
	"sample-scout/models"
	"sample-scout/services"
	"sample-scout/storage"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	gatheredAccessionsCounter prometheus.Counter
	fedAccessionsCounter      prometheus.Counter
	harmonizedSamplesCounter  prometheus.Counter
)

func init() {
	gatheredAccessionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gathered_accessions_total",
			Help: "Total number of new accessions gathered from all sources.",
		},
	)
	fedAccessionsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fed_accessions_total",
			Help: "Total number of accessions admitted into the survey system.",
		},
	)
	harmonizedSamplesCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "harmonized_samples_total",
			Help: "Total number of samples harmonized into the canonical schema.",
		},
	)
	prometheus.MustRegister(gatheredAccessionsCounter, fedAccessionsCounter, harmonizedSamplesCounter)
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.GatheredAccession{},
		&models.SurveyedAccession{},
		&models.SurveyJob{},
		&models.Experiment{},
		&models.Sample{},
		&models.OntologyTerm{},
		&models.Contribution{},
		&models.SampleKeyword{},
	)

	// Optionales S3-Archiv für rohe Metadaten-Payloads
	var s3Client *awss3.Client
	if cfg.ArchiveEnabled() {
		s3Client, err = storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3 client creation failed", zap.Error(err))
		}
		logging.Info("Metadata archive enabled", zap.String("bucket", cfg.ArchiveS3Bucket))
	}

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupAccessionRoutes(router, db, logging)
	setupGatherRoutes(router, cfg, db, logging)
	setupFeedRoutes(router, cfg, db, logging)
	setupExperimentRoutes(router, cfg, db, s3Client, logging)

	// Setup Cron: regelmäßiges Gathering mit dem konfigurierten Filter
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled gather job...")
		gatherService := services.NewGatherService(cfg, db, logging, cronAgents(cfg, logging))
		entries, err := gatherService.Run(services.GatherOptions{ExcludePrevious: true, FailFast: cfg.GatherFailFast})
		if err != nil {
			logging.Error("Cron gather job failed", zap.Error(err))
		} else {
			logging.Info("Cron gather job completed", zap.Int("new_accessions", len(entries)))
			gatheredAccessionsCounter.Add(float64(len(entries)))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

// cronAgents baut die Agenten für den Cron-Lauf aus der Konfiguration.
func cronAgents(cfg *config.Config, log *zap.Logger) []agents.Agent {
	since := cfg.CronSince
	if since == "" {
		since = time.Now().AddDate(0, 0, -7).Format("2006-01-02")
	}
	filter := agents.Filter{Organism: cfg.CronOrganism, Since: since}

	var active []agents.Agent
	for _, source := range strings.Split(cfg.EnabledSources, ",") {
		switch strings.TrimSpace(source) {
		case models.SourceMicroarrayAE:
			active = append(active, arrayexpress.NewAgent(cfg, filter, log))
		case models.SourceMicroarrayGEO:
			active = append(active, geo.NewAgent(cfg, filter, log))
		case models.SourceRNASeq:
			active = append(active, sra.NewAgent(cfg, filter, log))
		default:
			log.Warn("Unknown source in config", zap.String("source", source))
		}
	}
	return active
}

func setupAccessionRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/accessions")

	// Einfacher GET-Endpunkt für alle gesammelten Accessions
	rg.GET("/", func(c *gin.Context) {
		var entries []models.GatheredAccession
		if err := db.Find(&entries).Error; err != nil {
			log.Error("Database query for accessions failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})

	// Body-gesteuerter Endpunkt für gefilterte Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type AccessionQuery struct {
			Source   string `json:"source"`
			Organism string `json:"organism"`
			Since    string `json:"since"`
			Limit    int    `json:"limit"`
		}

		var req AccessionQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.GatheredAccession{})
		if req.Source != "" {
			query = query.Where("source = ?", req.Source)
		}
		if req.Organism != "" {
			query = query.Where("organism = ?", req.Organism)
		}
		if req.Since != "" {
			query = query.Where("published_date >= ?", req.Since)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var entries []models.GatheredAccession
		if err := query.Order("accession_code asc").Find(&entries).Error; err != nil {
			log.Error("Database query for accessions failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, entries)
	})
}

func setupGatherRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/gather")

	type GatherRequest struct {
		Sources         []string `json:"sources"`
		Organism        string   `json:"organism"`
		Keyword         string   `json:"keyword"`
		AEIDs           []string `json:"ae_ids"`
		GPLIDs          []string `json:"gpl_ids"`
		TaxonIDs        []string `json:"taxon_ids"`
		Since           string   `json:"since"`
		Until           string   `json:"until"`
		Count           int      `json:"count"`
		DryRun          bool     `json:"dry_run"`
		ExcludePrevious bool     `json:"exclude_previous"`
	}

	rg.POST("/run", func(c *gin.Context) {
		var req GatherRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		sources := req.Sources
		if len(sources) == 0 {
			sources = models.DataSources
		}

		var active []agents.Agent
		for _, source := range sources {
			filter := agents.Filter{
				Organism: req.Organism,
				Keyword:  req.Keyword,
				Since:    req.Since,
				Until:    req.Until,
			}
			switch source {
			case models.SourceMicroarrayAE:
				filter.IDs = req.AEIDs
				active = append(active, arrayexpress.NewAgent(cfg, filter, log))
			case models.SourceMicroarrayGEO:
				filter.IDs = req.GPLIDs
				active = append(active, geo.NewAgent(cfg, filter, log))
			case models.SourceRNASeq:
				filter.IDs = req.TaxonIDs
				active = append(active, sra.NewAgent(cfg, filter, log))
			default:
				c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown source: %s", source)})
				return
			}
		}

		gatherService := services.NewGatherService(cfg, db, log, active)
		opts := services.GatherOptions{
			MaxCount:        req.Count,
			DryRun:          req.DryRun,
			ExcludePrevious: req.ExcludePrevious,
			FailFast:        cfg.GatherFailFast,
		}

		// Dry-Runs antworten synchron mit der deterministischen Liste.
		if req.DryRun {
			entries, err := gatherService.Run(opts)
			if err != nil {
				log.Error("Gather dry run failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "gather failed"})
				return
			}
			c.JSON(http.StatusOK, gin.H{
				"output": services.RenderAccessions(entries),
				"count":  len(entries),
			})
			return
		}

		go func() {
			entries, err := gatherService.Run(opts)
			if err != nil {
				log.Error("Async gather failed", zap.Error(err))
			} else {
				gatheredAccessionsCounter.Add(float64(len(entries)))
				log.Info("Async gather completed", zap.Int("new_accessions", len(entries)))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Gather run triggered."})
	})
}

func setupFeedRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/feed")

	// POST - Backlog asynchron ins Survey-System einspeisen
	rg.POST("/run", func(c *gin.Context) {
		var req struct {
			Accessions []string `json:"accessions" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'accessions' field is required."})
			return
		}

		cutoff, err := cfg.JobCutoffTime()
		if err != nil {
			log.Error("Invalid job cutoff configuration", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid cutoff configuration"})
			return
		}

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

		go func() {
			fed, err := controller.Run(req.Accessions)
			if err != nil {
				log.Error("Async feed failed", zap.Error(err))
			}
			fedAccessionsCounter.Add(float64(fed))
			log.Info("Async feed completed", zap.Int("fed", fed))
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Feed run triggered.", "backlog_size": len(req.Accessions)})
	})
}

func setupExperimentRoutes(router *gin.Engine, cfg *config.Config, db *gorm.DB, s3Client *awss3.Client, log *zap.Logger) {
	harmonizer := services.NewHarmonizer()
	rg := router.Group("/experiments")

	// POST - Rohe Proben-Metadaten harmonisieren
	rg.POST("/:code/harmonize", func(c *gin.Context) {
		code := c.Param("code")

		var req struct {
			Samples    []map[string]any `json:"samples" binding:"required"`
			Reference  []map[string]any `json:"reference"`
			TitleField string           `json:"title_field"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'samples' field is required."})
			return
		}

		records := make([]metadata.RawSample, 0, len(req.Samples))
		for _, raw := range req.Samples {
			records = append(records, metadata.Flatten(raw))
		}

		titleField := req.TitleField
		if titleField == "" {
			reference := make([]metadata.RawSample, 0, len(req.Reference))
			for _, raw := range req.Reference {
				reference = append(reference, metadata.Flatten(raw))
			}
			field, err := services.DetermineTitleField(records, reference)
			if err != nil {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			titleField = field
		}

		harmonized, err := harmonizer.HarmonizeAllSamples(records, titleField)
		if err != nil {
			log.Error("Harmonization failed", zap.String("accession_code", code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "harmonization failed"})
			return
		}
		harmonizedSamplesCounter.Add(float64(len(harmonized)))

		// Rohe Payload als Audit-Trail ins Archiv legen
		var archiveLink string
		if s3Client != nil {
			payload, _ := json.Marshal(req.Samples)
			key := fmt.Sprintf("metadata/%s/%s.json", code, time.Now().UTC().Format("2006-01-02T15-04-05Z"))
			link, err := storage.ArchivePayload(s3Client, cfg.ArchiveS3Bucket, key, payload, cfg)
			if err != nil {
				log.Warn("Failed to archive raw metadata payload",
					zap.String("accession_code", code), zap.Error(err))
			} else {
				archiveLink = link
			}
		}

		c.JSON(http.StatusOK, gin.H{
			"title_field":  titleField,
			"samples":      harmonized,
			"archive_link": archiveLink,
		})
	})

	// POST - Harmonisierte Proben einem Experiment zuordnen
	rg.POST("/:code/samples", func(c *gin.Context) {
		code := c.Param("code")

		type SampleInput struct {
			AccessionCode string `json:"accession_code" binding:"required"`
			models.HarmonizedSample
		}
		var req struct {
			Samples []SampleInput `json:"samples" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'samples' field is required."})
			return
		}

		experiment := models.Experiment{AccessionCode: code}
		if err := db.Where("accession_code = ?", code).FirstOrCreate(&experiment).Error; err != nil {
			log.Error("Failed to create experiment", zap.String("accession_code", code), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		for _, input := range req.Samples {
			sample := input.ToSample(input.AccessionCode)
			err := db.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "accession_code"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"title", "sex", "age", "specimen_part", "subject",
					"developmental_stage", "disease", "compound", "treatment", "time_point",
				}),
			}).Create(&sample).Error
			if err != nil {
				log.Error("Failed to save sample",
					zap.String("sample_accession", input.AccessionCode), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save sample"})
				return
			}
			if err := db.Model(&experiment).Association("Samples").Append(&sample); err != nil {
				log.Error("Failed to associate sample",
					zap.String("sample_accession", input.AccessionCode), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to associate sample"})
				return
			}
		}

		c.JSON(http.StatusOK, gin.H{"experiment": code, "samples_saved": len(req.Samples)})
	})

	// GET - Metadaten-Felder, die auf mindestens einer Probe belegt sind
	rg.GET("/:code/metadata-fields", func(c *gin.Context) {
		experiment, ok := loadExperiment(c, db, log, "Samples")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"metadata_fields": models.GetSampleMetadataFields(experiment.Samples)})
	})

	// GET - Ontologie-Keywords über alle Proben des Experiments
	rg.GET("/:code/keywords", func(c *gin.Context) {
		experiment, ok := loadExperiment(c, db, log, "Samples.Keywords.Name")
		if !ok {
			return
		}
		c.JSON(http.StatusOK, gin.H{"keywords": models.GetSampleKeywords(experiment.Samples)})
	})
}

// loadExperiment lädt ein Experiment samt Preloads oder beantwortet den
// Request mit dem passenden Fehlerstatus.
func loadExperiment(c *gin.Context, db *gorm.DB, log *zap.Logger, preload string) (models.Experiment, bool) {
	code := c.Param("code")
	var experiment models.Experiment
	err := db.Preload(preload).Where("accession_code = ?", code).First(&experiment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "experiment not found"})
			return experiment, false
		}
		log.Error("Database error while fetching experiment", zap.String("accession_code", code), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
		return experiment, false
	}
	return experiment, true
}
