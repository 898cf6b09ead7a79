package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/api"
	"github.com/avatarstudio/avatar-studio/internal/composite"
	"github.com/avatarstudio/avatar-studio/internal/config"
	"github.com/avatarstudio/avatar-studio/internal/db"
	"github.com/avatarstudio/avatar-studio/internal/generation"
	"github.com/avatarstudio/avatar-studio/internal/lipsync"
	"github.com/avatarstudio/avatar-studio/internal/logging"
	"github.com/avatarstudio/avatar-studio/internal/media"
	"github.com/avatarstudio/avatar-studio/internal/playback"
	"github.com/avatarstudio/avatar-studio/internal/storage"
	"github.com/avatarstudio/avatar-studio/internal/tts"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting avatar studio", "version", config.Version, "commit", config.GitCommit, "data_dir", cfg.DataDir())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Blob storage: Supabase when configured, local files otherwise.
	var store storage.Store
	var mediaServer *playback.Server
	if cfg.RemoteStorageEnabled() {
		remote, err := storage.NewSupabaseStore(cfg.SupabaseURL(), cfg.SupabaseKey(), cfg.SupabaseBucket(),
			logging.WithComponent(logger, "storage"))
		if err != nil {
			return fmt.Errorf("failed to initialize supabase storage: %w", err)
		}
		store = remote
		logger.Info("using supabase storage", "bucket", cfg.SupabaseBucket(), "key", logging.SanitizeToken(cfg.SupabaseKey()))
	} else {
		database, err := db.New(cfg.DBPath(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer database.Close()

		local, err := storage.NewLocalStore(cfg.MediaDir(), cfg.PublicBaseURL(),
			storage.NewBlobRepository(database.Conn()), logging.WithComponent(logger, "storage"))
		if err != nil {
			return fmt.Errorf("failed to initialize local storage: %w", err)
		}
		store = local
		mediaServer = playback.NewServer(local, logging.WithComponent(logger, "playback"))
		logger.Info("using local storage", "dir", cfg.MediaDir(), "base_url", cfg.PublicBaseURL())
	}

	synthesizer := tts.NewSynthesizer(
		tts.NewElevenLabsProvider(cfg.ElevenLabsKey(), ""),
		tts.NewOpenAIProvider(cfg.OpenAIKey(), ""),
		store,
		logging.WithComponent(logger, "tts"),
	)
	providers := synthesizer.ConfiguredProviders()
	if len(providers) == 0 {
		logger.Warn("no TTS provider configured; text-driven generation disabled")
	}

	var runner lipsync.ModelRunner = lipsync.UnconfiguredRunner{}
	if cfg.ReplicateToken() != "" {
		rr, err := lipsync.NewReplicateRunner(cfg.ReplicateToken(), "")
		if err != nil {
			return err
		}
		runner = rr
	} else {
		logger.Warn("REPLICATE_API_TOKEN not set; lip-sync generation disabled")
	}
	generator := lipsync.NewGenerator(runner, lipsync.Models{
		Primary:   cfg.PrimaryModel(),
		Secondary: cfg.SecondaryModel(),
	}, logging.WithComponent(logger, "lipsync"))

	mediaLogger := logging.WithComponent(logger, "media")
	pipeline, err := media.NewFFmpegPipeline(media.FFmpegConfig{
		FFmpegPath:  cfg.FFmpegPath(),
		FFprobePath: cfg.FFprobePath(),
		WorkDir:     filepath.Join(cfg.DataDir(), "work"),
		Logger:      mediaLogger,
	}, media.NewSubprocessExecutor(mediaLogger))
	if err != nil {
		return fmt.Errorf("failed to initialize media pipeline: %w", err)
	}

	capabilities := media.NewCachedCapabilities(pipeline, mediaLogger)
	probeCtx, probeCancel := context.WithTimeout(ctx, 15*time.Second)
	if caps, err := capabilities.Refresh(probeCtx); err != nil {
		logger.Warn("ffmpeg unavailable; extraction and export will fail", "error", err)
	} else {
		logger.Info("media capabilities detected", "ffmpeg", caps.FFmpeg.Version, "ffprobe", caps.FFprobe.Version)
	}
	probeCancel()

	extractor := media.NewExtractor(pipeline, store, mediaLogger)
	exporter := composite.NewExporter(pipeline, store, logging.WithComponent(logger, "composite"))

	hub := generation.NewHub()
	broadcaster := newBroadcaster(ctx, cfg, logger)
	defer broadcaster.Close()

	orchestrator := generation.NewOrchestrator(synthesizer, extractor, generator, cfg.Timeouts(), hub, broadcaster,
		logging.WithComponent(logger, "generation"))
	go func() {
		if err := orchestrator.Listen(ctx); err != nil {
			logger.Error("run cancellation listener stopped", "error", err)
		}
	}()

	apiServer := api.NewServer(api.ServerConfig{
		Addr:           cfg.Addr(),
		Synthesizer:    synthesizer,
		LipSync:        generator,
		Extractor:      extractor,
		Exporter:       exporter,
		Runner:         orchestrator,
		Store:          store,
		Events:         hub,
		Media:          mediaServer,
		Capabilities:   capabilities,
		Providers:      providers,
		LipSyncReady:   cfg.ReplicateToken() != "",
		Timeouts:       cfg.Timeouts(),
		MaxUploadBytes: cfg.MaxUploadBytes(),
		AllowedOrigins: cfg.AllowedOrigins(),
		Logger:         logger,
		StartTime:      startTime,
		Version:        config.Version,
	})

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- apiServer.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("received shutdown signal", "signal", sig)
	case err := <-serverErr:
		if err != nil {
			logger.Error("HTTP server error", "error", err)
			return err
		}
	}

	logger.Info("initiating graceful shutdown")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// newBroadcaster connects to Redis when configured. An unreachable Redis
// degrades to single-instance cancellation instead of failing startup.
func newBroadcaster(ctx context.Context, cfg config.Config, logger *slog.Logger) generation.Broadcaster {
	if cfg.RedisURL() == "" {
		return generation.NoopBroadcaster{}
	}
	b, err := generation.NewRedisBroadcaster(ctx, cfg.RedisURL(), logging.WithComponent(logger, "broadcast"))
	if err != nil {
		logger.Warn("redis unavailable; run cancellation is local to this instance", "error", err)
		return generation.NoopBroadcaster{}
	}
	logger.Info("cross-instance run cancellation enabled", "redis", logging.SanitizeURL(cfg.RedisURL()))
	return b
}
