// Package api exposes the avatar studio over HTTP: the individual stages as
// JSON endpoints, the full pipeline, a websocket progress stream, and
// playback of locally stored media.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/composite"
	"github.com/avatarstudio/avatar-studio/internal/config"
	"github.com/avatarstudio/avatar-studio/internal/generation"
	"github.com/avatarstudio/avatar-studio/internal/media"
	"github.com/avatarstudio/avatar-studio/internal/playback"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

// CompositeExporter renders a generated video into the final export.
type CompositeExporter interface {
	ExportComposite(ctx context.Context, generatedVideoURL string, spec avatar.CompositeSpec) (composite.ExportResult, error)
}

// PipelineRunner executes a full generation for a session.
type PipelineRunner interface {
	Run(ctx context.Context, sessionID string, req avatar.GenerationRequest) (generation.RunResult, error)
}

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

type ServerConfig struct {
	Addr           string
	Synthesizer    generation.Synthesizer
	LipSync        generation.LipSyncer
	Extractor      generation.AudioExtractor
	Exporter       CompositeExporter
	Runner         PipelineRunner
	Store          storage.Store
	Events         *generation.Hub
	Media          *playback.Server // nil when media lives in remote storage
	Capabilities   *media.CachedCapabilities
	Providers      []avatar.TTSProvider
	LipSyncReady   bool
	Timeouts       config.StageTimeouts
	MaxUploadBytes int64
	AllowedOrigins []string
	Logger         *slog.Logger
	StartTime      time.Time
	Version        string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           router,
			ReadHeaderTimeout: 15 * time.Second,
			// Generation and export can legitimately take minutes.
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
