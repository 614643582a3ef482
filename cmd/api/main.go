package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/bobarin/reelsmith/internal/api"
	"github.com/bobarin/reelsmith/internal/config"
	"github.com/bobarin/reelsmith/internal/db"
	"github.com/bobarin/reelsmith/internal/logging"
	"github.com/bobarin/reelsmith/internal/metrics"
	"github.com/bobarin/reelsmith/internal/progress"
	"github.com/bobarin/reelsmith/internal/queue"
	"github.com/bobarin/reelsmith/internal/render"
	"github.com/bobarin/reelsmith/internal/services"
	"github.com/bobarin/reelsmith/internal/storage"
	"github.com/bobarin/reelsmith/internal/templates"
	"github.com/bobarin/reelsmith/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting reelsmith")

	// Catalog: Postgres when configured, otherwise JSON files
	var repo db.Repository
	if cfg.DatabaseURL != "" {
		database, err := db.New(cfg.DatabaseURL)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to database")
		}
		repo = database
		logger.Info("connected to database")
	} else {
		files, err := db.NewFileStore(cfg.DataDir)
		if err != nil {
			logger.WithError(err).Fatal("failed to open file store")
		}
		repo = files
		logger.WithField("dir", cfg.DataDir).Info("using file store")
	}
	defer repo.Close()

	var q queue.Queue
	if cfg.RedisURL != "" {
		rq, err := queue.NewRedis(cfg.RedisURL, cfg.RedisQueueKey)
		if err != nil {
			logger.WithError(err).Fatal("failed to connect to queue")
		}
		q = rq
		logger.Info("connected to Redis queue")
	} else {
		q = queue.NewMemory()
		logger.Info("using in-process queue")
	}
	defer q.Close()

	catalog, err := templates.Load(cfg.TemplatesPath)
	if err != nil {
		logger.WithError(err).Fatal("failed to load templates")
	}

	for _, dir := range []string{cfg.AssetsDir, filepath.Join(cfg.AssetsDir, "images"), cfg.RenderDir, cfg.WorkDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			logger.WithError(err).WithField("dir", dir).Fatal("failed to create directory")
		}
	}

	ffmpegSvc := services.NewFFmpegService(logger)

	// Narration is optional; segments render silent without it
	var narrator render.Narrator
	switch cfg.TTSProvider {
	case "elevenlabs":
		tts := services.NewElevenLabsService(cfg.ElevenLabsKey, cfg.ElevenLabsVoiceID, cfg.CollaboratorTimeout, logger)
		narrator = services.NewNarrationWriter(tts, ffmpegSvc, cfg.CollaboratorTimeout, logger)
	case "openai":
		tts := services.NewOpenAITTSService(openai.DefaultConfig(cfg.OpenAIKey), cfg.DefaultVoice, logger)
		narrator = services.NewNarrationWriter(tts, ffmpegSvc, cfg.CollaboratorTimeout, logger)
	}
	if cfg.NarrationEnabled() {
		logger.WithField("provider", cfg.TTSProvider).Info("narration enabled")
	} else {
		logger.Warn("no TTS provider configured, renders will be silent")
	}

	renderMetrics := metrics.New()

	pipeline := render.NewPipeline(
		render.NewResolver(cfg.AssetsDir, narrator, logger),
		render.NewComposer(ffmpegSvc, services.ASSCaptionWriter{}, cfg.NarrationTruncate, logger),
		render.NewAssembler(ffmpegSvc, cfg.AssetsDir, cfg.RenderDir, logger),
		render.PipelineConfig{WorkDir: cfg.WorkDir, PrepareConcurrency: cfg.RenderPrepareConcurrency},
		logger,
	)
	pipeline.OnSegment(func(clip *render.SegmentClip) {
		renderMetrics.SegmentComposed(string(clip.Visual))
	})

	store := progress.NewStore()
	scheduler := worker.New(repo, q, store, pipeline, logger).WithMetrics(renderMetrics)
	if cfg.PublishEnabled() {
		scheduler.WithPublisher(storage.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, cfg.SupabaseStorageBucket, logger))
		logger.WithField("bucket", cfg.SupabaseStorageBucket).Info("publishing renders to Supabase")
	}

	// Seed progress records so restarts report the persisted state
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	videos, err := repo.ListVideos(seedCtx)
	seedCancel()
	if err != nil {
		logger.WithError(err).Fatal("failed to list videos")
	}
	for _, v := range videos {
		store.Seed(v)
	}
	logger.WithField("videos", len(videos)).Info("progress store seeded")

	deps := api.Deps{
		Repo:         repo,
		Scheduler:    scheduler,
		Templates:    catalog,
		DefaultVoice: cfg.DefaultVoice,
	}
	if cfg.OpenAIKey != "" {
		deps.Drafter = services.NewOpenAIService(cfg.OpenAIKey, cfg.OpenAIModel, cfg.CollaboratorTimeout, catalog, logger)
	} else {
		logger.Warn("OPENAI_API_KEY not set, script drafting disabled")
	}
	if cfg.GeminiKey != "" {
		gemini, err := services.NewGeminiService(context.Background(), cfg.GeminiKey, cfg.ImagenModel, cfg.AssetsDir, cfg.CollaboratorTimeout, logger)
		if err != nil {
			logger.WithError(err).Fatal("failed to create Gemini client")
		}
		deps.Images = gemini
	} else {
		logger.Warn("GEMINI_API_KEY not set, image generation disabled")
	}

	router := api.NewRouter(api.NewHandler(deps, logger), api.RouterConfig{
		BackendAPIKey:      cfg.BackendAPIKey,
		CorsAllowedOrigins: cfg.CorsAllowedOrigins,
		ImagesDir:          filepath.Join(cfg.AssetsDir, "images"),
		Metrics:            renderMetrics.Handler(),
		Logger:             logger,
	})

	if cfg.BackendAPIKey != "" {
		logger.Info("API key authentication enabled")
	} else {
		logger.Warn("no BACKEND_API_KEY set, API is unprotected (dev mode)")
	}

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: router,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})
	if cfg.WorkerEnabled {
		go func() {
			defer close(workerDone)
			scheduler.Run(workerCtx)
		}()
	} else {
		close(workerDone)
		logger.Info("worker disabled, renders will stay queued")
	}

	go func() {
		logger.WithField("port", cfg.APIPort).Info("API server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}

	// The active render is cancelled; its video is marked as failed
	workerCancel()
	select {
	case <-workerDone:
	case <-ctx.Done():
		logger.Warn("worker did not stop in time")
	}

	logger.Info("server exited")
}
