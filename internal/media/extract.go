package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

// Extractor pulls the first audio track out of a video and stores it.
type Extractor struct {
	pipeline Pipeline
	store    storage.Store
	logger   *slog.Logger
	now      func() time.Time
}

func NewExtractor(pipeline Pipeline, store storage.Store, logger *slog.Logger) *Extractor {
	return &Extractor{pipeline: pipeline, store: store, logger: logger, now: time.Now}
}

// ExtractAudio records the source's first audio track from its beginning to
// its end into an Opus WebM file and returns the stored URL. A source without
// audio fails with avatar.ErrNoAudioTrack.
func (e *Extractor) ExtractAudio(ctx context.Context, sourceVideoURL string) (string, error) {
	sourceVideoURL = strings.TrimSpace(sourceVideoURL)
	if sourceVideoURL == "" {
		return "", avatar.Invalidf("sourceVideoUrl required")
	}

	sess, err := e.pipeline.AttachSource(ctx, sourceVideoURL)
	if err != nil {
		return "", fmt.Errorf("failed to attach source: %w", err)
	}
	defer sess.Close()

	if !sess.Source().HasAudio() {
		return "", avatar.ErrNoAudioTrack
	}

	spec := CaptureSpec{
		AudioOnly:   true,
		AudioTrack:  0,
		AudioCodec:  "libopus",
		Container:   "webm",
		ContentType: "audio/webm",
	}
	if err := sess.StartCapture(spec); err != nil {
		return "", fmt.Errorf("failed to start audio capture: %w", err)
	}
	if err := sess.StopOnSourceEnd(ctx); err != nil {
		return "", fmt.Errorf("audio capture failed: %w", err)
	}

	rec, err := sess.FlushToContainer()
	if err != nil {
		return "", fmt.Errorf("failed to flush audio capture: %w", err)
	}

	f, err := rec.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open recording: %w", err)
	}
	defer f.Close()

	url, err := e.store.Put(ctx, storage.TimestampName("extracted", ".webm", e.now()), f, storage.Options{
		ContentType:     rec.ContentType,
		Public:          true,
		CollisionSuffix: true,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store extracted audio: %w", err)
	}

	e.logger.Info("extracted audio", "bytes", rec.Size, "duration", sess.Source().Duration)
	return url, nil
}
