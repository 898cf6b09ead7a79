package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/composite"
	"github.com/avatarstudio/avatar-studio/internal/config"
	"github.com/avatarstudio/avatar-studio/internal/generation"
	"github.com/avatarstudio/avatar-studio/internal/logging"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

type fakeSynth struct {
	err   error
	block bool
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) (avatar.SynthesisResult, error) {
	if f.block {
		<-ctx.Done()
		return avatar.SynthesisResult{}, ctx.Err()
	}
	if f.err != nil {
		return avatar.SynthesisResult{}, f.err
	}
	return avatar.SynthesisResult{AudioURL: "https://cdn.test/tts.mp3", Provider: avatar.ProviderElevenLabs}, nil
}

type fakeLipSync struct {
	err        error
	gotChoice  avatar.ModelChoice
	gotEmotion avatar.EmotionParams
	gotAngle   avatar.CameraAngle
}

func (f *fakeLipSync) Generate(ctx context.Context, face, audio string, choice avatar.ModelChoice, emotion avatar.EmotionParams, angle avatar.CameraAngle) (avatar.LipSyncResult, error) {
	f.gotChoice, f.gotEmotion, f.gotAngle = choice, emotion, angle
	if f.err != nil {
		return avatar.LipSyncResult{}, f.err
	}
	return avatar.LipSyncResult{VideoURL: "https://replicate.test/out.mp4", ModelUsed: choice}, nil
}

type fakeExtractor struct{ err error }

func (f *fakeExtractor) ExtractAudio(ctx context.Context, url string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/extracted.webm", nil
}

type fakeExporter struct {
	gotSpec avatar.CompositeSpec
}

func (f *fakeExporter) ExportComposite(ctx context.Context, url string, spec avatar.CompositeSpec) (composite.ExportResult, error) {
	f.gotSpec = spec
	return composite.ExportResult{
		URL:         "https://cdn.test/avatar-1.webm",
		DownloadURL: "https://cdn.test/avatar-1.webm?download=avatar-1.webm",
		FileName:    "avatar-1.webm",
		Width:       composite.CanvasWidth,
		Height:      composite.CanvasHeight,
		HasAudio:    true,
	}, nil
}

type fakeRunner struct {
	err        error
	gotSession string
	gotReq     avatar.GenerationRequest
}

func (f *fakeRunner) Run(ctx context.Context, sessionID string, req avatar.GenerationRequest) (generation.RunResult, error) {
	f.gotSession, f.gotReq = sessionID, req
	if f.err != nil {
		return generation.RunResult{}, f.err
	}
	return generation.RunResult{
		RunID:       "run-1",
		AudioURL:    "https://cdn.test/tts.mp3",
		AudioSource: generation.AudioFromText,
		VideoURL:    "https://replicate.test/out.mp4",
		ModelUsed:   string(avatar.ModelPrimary),
	}, nil
}

type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
	types map[string]string
	// stall delays Put without watching ctx.
	stall time.Duration
}

func (s *memoryStore) Put(ctx context.Context, name string, data io.Reader, opts storage.Options) (string, error) {
	if s.stall > 0 {
		time.Sleep(s.stall)
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs == nil {
		s.blobs = make(map[string][]byte)
		s.types = make(map[string]string)
	}
	s.blobs[name] = b
	s.types[name] = opts.ContentType
	return "https://cdn.test/" + name, nil
}

func testConfig() ServerConfig {
	return ServerConfig{
		Synthesizer: &fakeSynth{},
		LipSync:     &fakeLipSync{},
		Extractor:   &fakeExtractor{},
		Exporter:    &fakeExporter{},
		Runner:      &fakeRunner{},
		Store:       &memoryStore{},
		Events:      generation.NewHub(),
		Providers:   []avatar.TTSProvider{avatar.ProviderElevenLabs},
		Timeouts: config.StageTimeouts{
			Synthesis:  time.Second,
			Extraction: time.Second,
			Generation: time.Second,
			Export:     time.Second,
			Upload:     time.Second,
		},
		MaxUploadBytes: 1 << 20,
		Logger:         logging.Discard(),
		StartTime:      time.Now(),
		Version:        "test",
	}
}

func decodeJSONBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}
