package api

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/composite"
	"github.com/avatarstudio/avatar-studio/internal/generation"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

const maxJSONBody = 1 << 20

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist(cfg.AllowedOrigins))

	r.Get("/health", healthHandler(cfg))

	r.Post("/synthesize", synthesizeHandler(cfg))
	r.Post("/generate-lipsync", lipSyncHandler(cfg))
	r.Post("/upload", uploadHandler(cfg))
	r.Post("/extract-audio", extractAudioHandler(cfg))
	r.Post("/export", exportHandler(cfg))
	r.Post("/generate", generateHandler(cfg))
	r.Get("/runs/{session}/events", eventsHandler(cfg))

	if cfg.Media != nil {
		r.Get("/media/{name}", mediaHandler(cfg))
		r.Head("/media/{name}", mediaHandler(cfg))
	}

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		resp := HealthResponse{
			Status:    "ok",
			Version:   cfg.Version,
			UptimeS:   uptime,
			Providers: cfg.Providers,
			LipSync:   cfg.LipSyncReady,
		}
		if resp.Providers == nil {
			resp.Providers = []avatar.TTSProvider{}
		}

		if cfg.Capabilities != nil {
			caps, err := cfg.Capabilities.Get(r.Context())
			if caps != nil {
				resp.Media = &MediaStatusResponse{
					CanCapture: caps.CanCapture(),
					FFmpeg:     caps.FFmpeg,
					FFprobe:    caps.FFprobe,
				}
				if !caps.ProbedAt.IsZero() {
					resp.Media.LastProbeAt = caps.ProbedAt.Format(time.RFC3339)
				}
			}
			if err != nil {
				resp.Status = "degraded"
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func synthesizeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SynthesizeRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			WriteError(w, http.StatusBadRequest, "text is required", "BAD_REQUEST")
			return
		}

		res, err := generation.Bounded(r.Context(), generation.StageSynthesis, cfg.Timeouts.Synthesis,
			func(ctx context.Context) (avatar.SynthesisResult, error) {
				return cfg.Synthesizer.Synthesize(ctx, req.Text, req.VoiceSelector)
			})
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, SynthesizeResponse{AudioURL: res.AudioURL, Provider: res.Provider})
	}
}

func lipSyncHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req LipSyncRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.FaceImageURL) == "" || strings.TrimSpace(req.DrivingAudioURL) == "" {
			WriteError(w, http.StatusBadRequest, "faceImageUrl and drivingAudioUrl are required", "BAD_REQUEST")
			return
		}
		choice, err := avatar.ParseModelChoice(req.ModelChoice)
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}
		angle, err := avatar.ParseCameraAngle(req.CameraAngle)
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}
		emotion := avatar.EmotionFromMap(req.EmotionParams)

		res, err := generation.Bounded(r.Context(), generation.StageGeneration, cfg.Timeouts.Generation,
			func(ctx context.Context) (avatar.LipSyncResult, error) {
				return cfg.LipSync.Generate(ctx, req.FaceImageURL, req.DrivingAudioURL, choice, emotion, angle)
			})
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, LipSyncResponse{VideoURL: res.VideoURL, ModelUsed: res.ModelUsed})
	}
}

func uploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.MaxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadBytes)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				WriteError(w, http.StatusRequestEntityTooLarge, "file too large", "TOO_LARGE")
				return
			}
			WriteError(w, http.StatusBadRequest, "no file uploaded", "BAD_REQUEST")
			return
		}
		defer file.Close()

		contentType := header.Header.Get("Content-Type")
		if contentType == "" || contentType == "application/octet-stream" {
			if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(header.Filename))); byExt != "" {
				contentType = byExt
			}
		}

		name := storage.UploadName(header.Filename, time.Now())
		url, err := generation.Bounded(r.Context(), generation.StageUpload, cfg.Timeouts.Upload,
			func(ctx context.Context) (string, error) {
				return cfg.Store.Put(ctx, name, file, storage.Options{
					ContentType:     contentType,
					Public:          true,
					CollisionSuffix: true,
				})
			})
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, UploadResponse{URL: url})
	}
}

func extractAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExtractAudioRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.SourceVideoURL) == "" {
			WriteError(w, http.StatusBadRequest, "sourceVideoUrl is required", "BAD_REQUEST")
			return
		}

		audioURL, err := generation.Bounded(r.Context(), generation.StageExtraction, cfg.Timeouts.Extraction,
			func(ctx context.Context) (string, error) {
				return cfg.Extractor.ExtractAudio(ctx, req.SourceVideoURL)
			})
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, ExtractAudioResponse{AudioURL: audioURL})
	}
}

func exportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ExportRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if strings.TrimSpace(req.VideoURL) == "" {
			WriteError(w, http.StatusBadRequest, "videoUrl is required", "BAD_REQUEST")
			return
		}
		bg, err := avatar.ParseBackground(req.BackgroundID)
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}
		angle, err := avatar.ParseCameraAngle(req.CameraAngle)
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}
		spec := avatar.CompositeSpec{
			Background:  bg,
			CameraAngle: angle,
			Movement:    avatar.MovementFromMap(req.MovementParams),
		}

		res, err := generation.Bounded(r.Context(), generation.StageExport, cfg.Timeouts.Export,
			func(ctx context.Context) (composite.ExportResult, error) {
				return cfg.Exporter.ExportComposite(ctx, req.VideoURL, spec)
			})
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, res)
	}
}

func generateHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body GenerateRequest
		if !decodeBody(w, r, &body) {
			return
		}
		req, err := body.ToGenerationRequest()
		if err != nil {
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		sessionID := strings.TrimSpace(r.Header.Get("X-Session-ID"))
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		w.Header().Set("X-Session-ID", sessionID)

		res, err := cfg.Runner.Run(r.Context(), sessionID, req)
		if err != nil {
			if errors.Is(err, generation.ErrSuperseded) {
				WriteError(w, http.StatusConflict, err.Error(), "SUPERSEDED")
				return
			}
			writeServiceError(w, r, cfg.Logger, err)
			return
		}

		WriteJSON(w, http.StatusOK, res)
	}
}

func mediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if name == "" {
			WriteError(w, http.StatusBadRequest, "name is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Media.ServeBlob(w, r, name, r.URL.Query().Get("download")); err != nil {
			cfg.Logger.Error("playback error", "error", err, "name", name)
		}
	}
}

// decodeBody reads a JSON body into dst and writes a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}
