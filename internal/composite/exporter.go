package composite

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/media"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

// ExportResult is a finished export.
type ExportResult struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	FileName    string `json:"fileName"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	HasAudio    bool   `json:"hasAudio"`
}

type Exporter struct {
	pipeline media.Pipeline
	store    storage.Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewExporter(pipeline media.Pipeline, store storage.Store, logger *slog.Logger) *Exporter {
	return &Exporter{pipeline: pipeline, store: store, logger: logger, now: time.Now}
}

// ExportComposite renders generatedVideoURL onto the canvas and stores the
// result. A source without audio exports as a silent video.
func (e *Exporter) ExportComposite(ctx context.Context, generatedVideoURL string, spec avatar.CompositeSpec) (ExportResult, error) {
	generatedVideoURL = strings.TrimSpace(generatedVideoURL)
	if generatedVideoURL == "" {
		return ExportResult{}, avatar.Invalidf("videoUrl required")
	}

	sess, err := e.pipeline.AttachSource(ctx, generatedVideoURL)
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to attach source: %w", err)
	}
	defer sess.Close()

	src := sess.Source()
	if src.VideoTracks == 0 {
		return ExportResult{}, avatar.Invalidf("source has no video track")
	}
	if !src.HasAudio() {
		e.logger.Warn("export source has no audio track, exporting silent video")
	}

	layout := ComputeLayout(spec)
	capture := media.CaptureSpec{
		FilterGraph:  layout.FilterGraph("vout"),
		VideoLabel:   "vout",
		KeepAudio:    true,
		FrameRate:    FrameRate,
		VideoCodec:   "libvpx-vp9",
		VideoBitrate: VideoBitrate,
		AudioCodec:   "libopus",
		Container:    "webm",
		ContentType:  "video/webm",
	}
	if err := sess.StartCapture(capture); err != nil {
		return ExportResult{}, fmt.Errorf("failed to start render: %w", err)
	}
	if err := sess.StopOnSourceEnd(ctx); err != nil {
		return ExportResult{}, fmt.Errorf("render failed: %w", err)
	}

	rec, err := sess.FlushToContainer()
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to flush render: %w", err)
	}
	f, err := rec.Open()
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to open render: %w", err)
	}
	defer f.Close()

	fileName := storage.TimestampName("avatar", ".webm", e.now())
	storedURL, err := e.store.Put(ctx, fileName, f, storage.Options{
		ContentType:     rec.ContentType,
		Public:          true,
		CollisionSuffix: true,
	})
	if err != nil {
		return ExportResult{}, fmt.Errorf("failed to store export: %w", err)
	}

	e.logger.Info("exported composite",
		"background", spec.Background,
		"camera_angle", spec.CameraAngle,
		"bytes", rec.Size,
		"has_audio", src.HasAudio(),
	)

	return ExportResult{
		URL:         storedURL,
		DownloadURL: DownloadURL(storedURL, fileName),
		FileName:    fileName,
		Width:       layout.CanvasWidth,
		Height:      layout.CanvasHeight,
		HasAudio:    src.HasAudio(),
	}, nil
}

// DownloadURL adds the attachment hint understood by the /media route and by
// Supabase public object URLs. fileName becomes the suggested save name.
func DownloadURL(rawURL, fileName string) string {
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + "download=" + url.QueryEscape(fileName)
}
