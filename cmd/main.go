package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/yungbote/clipcut-backend/internal/config"
	"github.com/yungbote/clipcut-backend/internal/db"
	"github.com/yungbote/clipcut-backend/internal/handlers"
	"github.com/yungbote/clipcut-backend/internal/observability"
	"github.com/yungbote/clipcut-backend/internal/pipeline"
	"github.com/yungbote/clipcut-backend/internal/platform/gcs"
	"github.com/yungbote/clipcut-backend/internal/platform/llm"
	"github.com/yungbote/clipcut-backend/internal/platform/localmedia"
	"github.com/yungbote/clipcut-backend/internal/platform/logger"
	"github.com/yungbote/clipcut-backend/internal/platform/telegram"
	"github.com/yungbote/clipcut-backend/internal/platform/ytdlp"
	"github.com/yungbote/clipcut-backend/internal/repos"
	"github.com/yungbote/clipcut-backend/internal/server"
	"github.com/yungbote/clipcut-backend/internal/services"
)

func main() {
	_ = godotenv.Load()

	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration from main...")
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Config load failed", "error", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal("Storage directories unavailable", "error", err)
	}

	// Tracing
	ctx := context.Background()
	otelShutdown := observability.InitOTel(ctx, log, observability.OtelConfig{
		ServiceName: cfg.AppName,
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if otelShutdown != nil {
		defer func() { _ = otelShutdown(context.Background()) }()
	}

	// Database
	dbService, err := db.New(cfg, log)
	if err != nil {
		log.Fatal("Database init failed", "error", err)
	}
	if err := dbService.AutoMigrateAll(); err != nil {
		log.Fatal("Auto migration failed", "error", err)
	}
	gdb := dbService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	videoRepo := repos.NewVideoRepo(gdb, log)
	jobRepo := repos.NewJobRepo(gdb, log)
	clipRepo := repos.NewClipRepo(gdb, log)

	// Platform clients
	log.Info("Setting up platform clients from main...")
	tools := localmedia.New(log)
	if err := tools.AssertReady(ctx); err != nil {
		log.Warn("Media tools unavailable, pipeline runs will fail", "error", err)
	}
	downloader := ytdlp.New(log, ytdlp.Options{
		Binary:         cfg.YTDLP.Binary,
		CookiesBrowser: cfg.YTDLP.CookiesBrowser,
		CookiesFile:    cfg.YTDLP.CookiesFile,
	})
	llmClient, err := llm.New(cfg.LLM, log)
	if err != nil {
		log.Warn("LLM client init failed, refinement disabled", "error", err)
	}

	var bucket gcs.Bucket
	if cfg.Speech.GCSBucket != "" || cfg.Scenes.GCSBucket != "" || cfg.Upload.GCSBucket != "" {
		bucket, err = gcs.New(log)
		if err != nil {
			log.Warn("GCS client init failed, cloud providers and uploads disabled", "error", err)
			bucket = nil
		} else {
			defer bucket.Close()
		}
	}
	tg := telegram.New(cfg.Telegram, log)

	// Services
	log.Info("Setting up services from main...")
	transcriber, err := services.NewTranscriber(cfg, log, bucket)
	if err != nil {
		log.Fatal("Transcriber init failed", "error", err)
	}
	scenes, err := services.NewSceneDetector(cfg, log, tools, bucket)
	if err != nil {
		log.Fatal("Scene detector init failed", "error", err)
	}
	captioner := services.NewCaptioner(llmClient, log)
	notifier := services.NewClipNotifier(tg, bucket, cfg.Upload, log)

	// Pipeline
	log.Info("Setting up pipeline from main...")
	downloadStage := pipeline.NewDownloadStage(videoRepo, jobRepo, downloader, log)
	ingestStage := pipeline.NewIngestStage(videoRepo, jobRepo, tools, cfg.AudioDir(), log)
	transcribeStage := pipeline.NewTranscribeStage(videoRepo, jobRepo, transcriber, log)
	analyzeStage := pipeline.NewAnalyzeStage(videoRepo, jobRepo, clipRepo, tools, scenes, llmClient, cfg.HeatmapDir(), log)
	renderStage := pipeline.NewRenderStage(cfg, videoRepo, jobRepo, clipRepo, tools, captioner, notifier, log)
	orchestrator := pipeline.NewOrchestrator(jobRepo, downloadStage, ingestStage, transcribeStage, analyzeStage, renderStage, cfg.RetryAttempts, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	videosHandler := handlers.NewVideosHandler(cfg, videoRepo, jobRepo, clipRepo, orchestrator, ingestStage, analyzeStage, renderStage, log)
	clipsHandler := handlers.NewClipsHandler(clipRepo, videoRepo, log)
	jobsHandler := handlers.NewJobsHandler(jobRepo, log)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AppName:       cfg.AppName,
		VideosHandler: videosHandler,
		ClipsHandler:  clipsHandler,
		JobsHandler:   jobsHandler,
	})

	fmt.Printf("Server listening on :%s\n", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
