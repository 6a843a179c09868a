package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/reconhub/reconhub/internal/api"
	"github.com/reconhub/reconhub/internal/auth"
	"github.com/reconhub/reconhub/internal/cloudsql"
	"github.com/reconhub/reconhub/internal/config"
	"github.com/reconhub/reconhub/internal/database"
	"github.com/reconhub/reconhub/internal/ingestion"
	"github.com/reconhub/reconhub/internal/kgclient"
	"github.com/reconhub/reconhub/internal/logging"
	"github.com/reconhub/reconhub/internal/metrics"
	"github.com/reconhub/reconhub/internal/models"
	"github.com/reconhub/reconhub/internal/scheduler"
	"github.com/reconhub/reconhub/internal/server"
	_ "github.com/lib/pq"
	"log/slog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stdout, nil)).Error("failed to init logger", "error", err)
		os.Exit(1)
	}

	logger.Info("starting recon-hub")

	// Connect to database (supports both local DATABASE_URL and Cloud SQL)
	dbURL := cfg.Database.URL
	if dbURL == "" {
		dbURL, err = cloudsql.BuildDatabaseURL()
		if err != nil {
			logger.Error("failed to build database URL", "error", err)
			os.Exit(1)
		}
	}

	// Log connection config (without sensitive data)
	logger.Info("database configuration", "config", cloudsql.GetConnectionConfig())

	dbCfg := database.DefaultConfig()
	dbCfg.URL = dbURL
	db, err := database.Connect(context.Background(), dbCfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	logger.Info("database connected")

	// Run pending migrations (non-fatal to allow app to start even if migrations fail)
	if err := database.RunMigrations(db, cfg.Database.MigrationsDir, logger); err != nil {
		logger.Warn("failed to run migrations, continuing anyway", "error", err)
	}

	// Create repositories
	spyReportRepo := database.NewPostgresSpyReportRepository(db)
	attackReportRepo := database.NewPostgresAttackReportRepository(db)
	knownHitRepo := database.NewPostgresKnownHitRepository(db)
	settlementRepo := database.NewPostgresSettlementRepository(db)
	rankingRepo := database.NewPostgresRankingRepository(db)
	allianceRepo := database.NewPostgresAllianceRepository(db)
	userRepo := database.NewPostgresUserRepository(db)
	noteRepo := database.NewPostgresNoteRepository(db)

	collector, err := metrics.NewCollector()
	if err != nil {
		logger.Error("failed to init metrics", "error", err)
		os.Exit(1)
	}

	// Game API client
	gameCfg := kgclient.DefaultConfig()
	gameCfg.BaseURL = cfg.Game.BaseURL
	gameCfg.RankingsURL = cfg.Game.RankingsURL
	gameCfg.WorldID = cfg.Game.WorldID
	gameClient := kgclient.New(gameCfg, logger)

	// Ingestion service
	ingestService := ingestion.NewService(spyReportRepo, attackReportRepo, knownHitRepo, settlementRepo, collector, logger)

	// Auth configuration
	jwtSecret := cfg.Auth.JWTSecret
	if jwtSecret == "" {
		jwtSecret = "change-this-secret"
		logger.Warn("JWT_SECRET not set, using insecure default")
	}
	authConfig := auth.Config{
		JWTSecret:    jwtSecret,
		SessionTTL:   cfg.Auth.SessionTTL,
		AdminUserIDs: cfg.Auth.AdminUserIDs,
		SecureCookie: strings.EqualFold(os.Getenv("APP_ENV"), "production"),
	}

	var tokenCipher *auth.TokenCipher
	if cfg.Auth.TokenEncryptionKey != "" {
		tokenCipher, err = auth.NewTokenCipher(cfg.Auth.TokenEncryptionKey)
		if err != nil {
			logger.Error("invalid KG_TOKEN_ENCRYPTION_KEY", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("KG_TOKEN_ENCRYPTION_KEY not set, game connections will not be stored")
	}

	// Setup HTTP routes
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := database.HealthCheck(r.Context(), db); err != nil {
			logger.Error("health check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unhealthy"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Service info endpoint
	mux.HandleFunc("/api/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"service":"recon-hub","status":"ready","version":"0.1.0"}`))
	})

	mux.Handle("/metrics", collector.Handler())

	logger.Info("setting up REST API")
	api.SetupRoutes(mux, api.Deps{
		Ingestor:      ingestService,
		SpyReports:    spyReportRepo,
		AttackReports: attackReportRepo,
		KnownHits:     knownHitRepo,
		Observations:  settlementRepo,
		Rankings:      rankingRepo,
		SpyCounter:    spyReportRepo,
		AttackCounter: attackReportRepo,
		HitCounter:    knownHitRepo,
		ObsCounter:    settlementRepo,
		Connections:   userRepo,
		ConnCounter:   userRepo,
		Freshness:     rankingRepo,
		Alliances:     allianceRepo,
		Backfiller:    ingestService,
		Notes:         noteRepo,
		Game:          gameClient,
		Settlements:   gameClient,
		TokenCipher:   tokenCipher,
		AuthConfig:    authConfig,
		Logger:        logger,
	})

	// Start pollers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger.Info("starting rankings poller", "interval", cfg.Game.RankingsInterval)
	rankingsPoller := scheduler.NewRankingsPoller(gameClient, rankingRepo, collector, logger, cfg.Game.RankingsInterval, cfg.Game.Token)
	go rankingsPoller.Start(ctx)

	tracked := parseTrackedKingdoms(cfg.Game.TrackedKingdoms, logger)
	logger.Info("starting networth poller", "interval", cfg.Game.NetworthInterval, "tracked", len(tracked))
	networthPoller := scheduler.NewNetworthPoller(gameClient, rankingRepo, collector, logger, cfg.Game.NetworthInterval, cfg.Game.Token, tracked)
	go networthPoller.Start(ctx)

	handler := collector.InstrumentHandler(mux)
	if cfg.Server.StaticDir != "" {
		logger.Info("serving static frontend", "dir", cfg.Server.StaticDir)
		handler = server.SPAMiddleware(handler, cfg.Server.StaticDir, cfg.Server.StaticDir+"/index.html")
	}

	// Start server
	srv := server.New(cfg.Server, logger, handler)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("recon-hub started successfully")
	logger.Info("API available", "url", fmt.Sprintf("http://localhost:%s", cfg.Server.Port))

	waitForSignal(logger)

	logger.Info("shutting down")
	rankingsPoller.Stop()
	networthPoller.Stop()
	cancel()
	if err := srv.Shutdown(context.Background()); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}

// parseTrackedKingdoms turns "Name:ID" entries into tracked kingdoms.
// Malformed entries are skipped with a warning. An empty list falls back to
// the default track.
func parseTrackedKingdoms(entries []string, logger *slog.Logger) []models.TrackedKingdom {
	var tracked []models.TrackedKingdom
	for _, entry := range entries {
		name, idStr, ok := strings.Cut(entry, ":")
		if !ok {
			logger.Warn("skipping malformed tracked kingdom, want Name:ID", "entry", entry)
			continue
		}
		id, err := strconv.ParseInt(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			logger.Warn("skipping tracked kingdom with bad id", "entry", entry)
			continue
		}
		tracked = append(tracked, models.TrackedKingdom{Name: strings.TrimSpace(name), KingdomID: id})
	}
	if len(tracked) == 0 {
		tracked = []models.TrackedKingdom{{Name: "Galileo", KingdomID: 3334}}
	}
	return tracked
}

func waitForSignal(logger *slog.Logger) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	sig := <-c
	logger.Info("received signal", "signal", sig.String())
	signal.Stop(c)
	close(c)
}
