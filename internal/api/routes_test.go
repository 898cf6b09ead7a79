package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/db"
	"github.com/avatarstudio/avatar-studio/internal/generation"
	"github.com/avatarstudio/avatar-studio/internal/logging"
	"github.com/avatarstudio/avatar-studio/internal/playback"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("json.Marshal error: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func assertError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rr.Code, status, rr.Body.String())
	}
	body := decodeJSONBody(t, rr)
	if body["code"] != code {
		t.Errorf("code = %v, want %s", body["code"], code)
	}
	if msg, _ := body["error"].(string); msg == "" {
		t.Error("error message missing")
	}
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("synthesis: %w", avatar.ErrTimeout), http.StatusGatewayTimeout, "TIMEOUT"},
		{avatar.Invalidf("missing text"), http.StatusBadRequest, "BAD_REQUEST"},
		{avatar.ErrNoAudioTrack, http.StatusUnprocessableEntity, "NO_AUDIO_TRACK"},
		{avatar.ErrNoProviderConfigured, http.StatusInternalServerError, "NO_PROVIDER"},
		{fmt.Errorf("replicate: %w", avatar.ErrProviderUnconfigured), http.StatusInternalServerError, "NO_PROVIDER"},
		{&avatar.ProviderError{Provider: "openai", Status: 429}, http.StatusInternalServerError, "PROVIDER_ERROR"},
		{fmt.Errorf("%w: sadtalker: %w", avatar.ErrNoOutputProduced, &avatar.ProviderError{Provider: "replicate", Status: 500}), http.StatusInternalServerError, "NO_OUTPUT"},
		{errors.New("disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tt := range tests {
		status, code := classifyError(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("classifyError(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}

func TestHealth(t *testing.T) {
	rr := httptest.NewRecorder()
	NewRouter(testConfig()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("body = %v", body)
	}
	providers, _ := body["tts_providers"].([]interface{})
	if len(providers) != 1 || providers[0] != "elevenlabs" {
		t.Errorf("tts_providers = %v", body["tts_providers"])
	}
	if _, ok := body["media"]; ok {
		t.Error("media should be omitted without a capability cache")
	}
}

func TestSynthesize(t *testing.T) {
	cfg := testConfig()
	rr := postJSON(t, NewRouter(cfg), "/synthesize", SynthesizeRequest{Text: "Hello world"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeJSONBody(t, rr)
	if body["audioUrl"] != "https://cdn.test/tts.mp3" || body["provider"] != "elevenlabs" {
		t.Errorf("body = %v", body)
	}
}

func TestSynthesize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		synth  *fakeSynth
		body   any
		status int
		code   string
	}{
		{"empty text", &fakeSynth{}, SynthesizeRequest{Text: "  "}, http.StatusBadRequest, "BAD_REQUEST"},
		{"no provider", &fakeSynth{err: avatar.ErrNoProviderConfigured}, SynthesizeRequest{Text: "hi"}, http.StatusInternalServerError, "NO_PROVIDER"},
		{"provider error", &fakeSynth{err: &avatar.ProviderError{Provider: "openai", Status: 401, Body: "bad key"}}, SynthesizeRequest{Text: "hi"}, http.StatusInternalServerError, "PROVIDER_ERROR"},
		{"timeout", &fakeSynth{block: true}, SynthesizeRequest{Text: "hi"}, http.StatusGatewayTimeout, "TIMEOUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Synthesizer = tt.synth
			cfg.Timeouts.Synthesis = 20 * time.Millisecond
			assertError(t, postJSON(t, NewRouter(cfg), "/synthesize", tt.body), tt.status, tt.code)
		})
	}
}

func TestSynthesize_MalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/synthesize", strings.NewReader("{"))
	rr := httptest.NewRecorder()
	NewRouter(testConfig()).ServeHTTP(rr, req)
	assertError(t, rr, http.StatusBadRequest, "BAD_REQUEST")
}

func TestGenerateLipSync(t *testing.T) {
	cfg := testConfig()
	ls := &fakeLipSync{}
	cfg.LipSync = ls

	rr := postJSON(t, NewRouter(cfg), "/generate-lipsync", LipSyncRequest{
		FaceImageURL:    "https://cdn.test/face.png",
		DrivingAudioURL: "https://cdn.test/a.mp3",
		ModelChoice:     "sadtalker",
		EmotionParams:   map[string]int{"happy": 80},
		CameraAngle:     "close",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if ls.gotChoice != avatar.ModelSecondary || ls.gotAngle != avatar.AngleClose {
		t.Errorf("choice = %s, angle = %s", ls.gotChoice, ls.gotAngle)
	}
	if ls.gotEmotion.Happy != 80 || ls.gotEmotion.Neutral != 50 {
		t.Errorf("emotion = %+v, want happy 80 and defaults elsewhere", ls.gotEmotion)
	}
	if body := decodeJSONBody(t, rr); body["modelUsed"] != "sadtalker" {
		t.Errorf("modelUsed = %v", body["modelUsed"])
	}
}

func TestGenerateLipSync_Errors(t *testing.T) {
	tests := []struct {
		name   string
		ls     *fakeLipSync
		body   LipSyncRequest
		status int
		code   string
	}{
		{"missing audio", &fakeLipSync{}, LipSyncRequest{FaceImageURL: "f"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown model", &fakeLipSync{}, LipSyncRequest{FaceImageURL: "f", DrivingAudioURL: "a", ModelChoice: "musetalk"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"unknown angle", &fakeLipSync{}, LipSyncRequest{FaceImageURL: "f", DrivingAudioURL: "a", CameraAngle: "drone"}, http.StatusBadRequest, "BAD_REQUEST"},
		{"no output", &fakeLipSync{err: avatar.ErrNoOutputProduced}, LipSyncRequest{FaceImageURL: "f", DrivingAudioURL: "a"}, http.StatusInternalServerError, "NO_OUTPUT"},
		{"unconfigured", &fakeLipSync{err: avatar.ErrProviderUnconfigured}, LipSyncRequest{FaceImageURL: "f", DrivingAudioURL: "a"}, http.StatusInternalServerError, "NO_PROVIDER"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.LipSync = tt.ls
			assertError(t, postJSON(t, NewRouter(cfg), "/generate-lipsync", tt.body), tt.status, tt.code)
		})
	}
}

func multipartRequest(t *testing.T, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		h := make(map[string][]string)
		h["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
		if contentType != "" {
			h["Content-Type"] = []string{contentType}
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatal(err)
		}
		part.Write(data)
	} else {
		mw.WriteField("note", "nothing attached")
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	cfg := testConfig()
	store := &memoryStore{}
	cfg.Store = store

	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, multipartRequest(t, "file", "my face.png", "", []byte("\x89PNG")))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	url, _ := decodeJSONBody(t, rr)["url"].(string)
	if !strings.HasPrefix(url, "https://cdn.test/") || !strings.HasSuffix(url, "-my_face.png") {
		t.Errorf("url = %q", url)
	}
	for name, ct := range store.types {
		if ct != "image/png" {
			t.Errorf("%s stored as %q, want image/png", name, ct)
		}
	}
}

func TestUpload_MissingFile(t *testing.T) {
	rr := httptest.NewRecorder()
	NewRouter(testConfig()).ServeHTTP(rr, multipartRequest(t, "", "", "", nil))
	assertError(t, rr, http.StatusBadRequest, "BAD_REQUEST")
}

func TestUpload_TooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.MaxUploadBytes = 64

	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, multipartRequest(t, "file", "big.mp4", "video/mp4", bytes.Repeat([]byte("x"), 4096)))
	if rr.Code == http.StatusOK {
		t.Fatal("oversized upload should be rejected")
	}
}

func TestUpload_SlowStoreTimesOut(t *testing.T) {
	cfg := testConfig()
	cfg.Store = &memoryStore{stall: time.Second}
	cfg.Timeouts.Upload = 20 * time.Millisecond

	start := time.Now()
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, multipartRequest(t, "file", "clip.mp4", "video/mp4", []byte("mp4-bytes")))
	elapsed := time.Since(start)

	assertError(t, rr, http.StatusGatewayTimeout, "TIMEOUT")
	if elapsed >= 500*time.Millisecond {
		t.Errorf("upload answered after %s, want close to the 20ms upload deadline", elapsed)
	}
}

func TestExtractAudio(t *testing.T) {
	cfg := testConfig()
	rr := postJSON(t, NewRouter(cfg), "/extract-audio", ExtractAudioRequest{SourceVideoURL: "https://cdn.test/v.mp4"})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if body := decodeJSONBody(t, rr); body["audioUrl"] != "https://cdn.test/extracted.webm" {
		t.Errorf("body = %v", body)
	}

	cfg.Extractor = &fakeExtractor{err: avatar.ErrNoAudioTrack}
	rr = postJSON(t, NewRouter(cfg), "/extract-audio", ExtractAudioRequest{SourceVideoURL: "https://cdn.test/v.mp4"})
	assertError(t, rr, http.StatusUnprocessableEntity, "NO_AUDIO_TRACK")

	rr = postJSON(t, NewRouter(cfg), "/extract-audio", ExtractAudioRequest{})
	assertError(t, rr, http.StatusBadRequest, "BAD_REQUEST")
}

func TestExport(t *testing.T) {
	cfg := testConfig()
	exp := &fakeExporter{}
	cfg.Exporter = exp

	rr := postJSON(t, NewRouter(cfg), "/export", ExportRequest{
		VideoURL:       "https://replicate.test/out.mp4",
		BackgroundID:   "night",
		CameraAngle:    "wide",
		MovementParams: map[string]int{"head": 90},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if exp.gotSpec.Background != avatar.BackgroundNight || exp.gotSpec.CameraAngle != avatar.AngleWide || exp.gotSpec.Movement.Head != 90 {
		t.Errorf("spec = %+v", exp.gotSpec)
	}
	body := decodeJSONBody(t, rr)
	if body["width"] != float64(1920) || body["height"] != float64(1080) {
		t.Errorf("dimensions = %v x %v", body["width"], body["height"])
	}
	if body["downloadUrl"] == "" {
		t.Error("downloadUrl missing")
	}

	rr = postJSON(t, NewRouter(cfg), "/export", ExportRequest{VideoURL: "v", BackgroundID: "beach"})
	assertError(t, rr, http.StatusBadRequest, "BAD_REQUEST")
}

func TestGenerate(t *testing.T) {
	cfg := testConfig()
	runner := &fakeRunner{}
	cfg.Runner = runner

	data, _ := json.Marshal(GenerateRequest{FaceImageURL: "https://cdn.test/face.png", SourceText: "Hello world"})
	req := httptest.NewRequest(http.MethodPost, "/generate", bytes.NewReader(data))
	req.Header.Set("X-Session-ID", "session-42")
	rr := httptest.NewRecorder()
	NewRouter(cfg).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d (%s)", rr.Code, rr.Body.String())
	}
	if runner.gotSession != "session-42" || rr.Header().Get("X-Session-ID") != "session-42" {
		t.Errorf("session = %q, header = %q", runner.gotSession, rr.Header().Get("X-Session-ID"))
	}
	if runner.gotReq.ModelChoice != avatar.ModelPrimary || runner.gotReq.Emotion != avatar.DefaultEmotion() {
		t.Errorf("request defaults not applied: %+v", runner.gotReq)
	}
	body := decodeJSONBody(t, rr)
	if body["runId"] != "run-1" || body["audioSource"] != "text" || body["modelUsed"] != "wav2lip" {
		t.Errorf("body = %v", body)
	}
}

func TestGenerate_AssignsSessionAndMapsErrors(t *testing.T) {
	cfg := testConfig()
	runner := &fakeRunner{err: fmt.Errorf("%w: generation: context canceled", generation.ErrSuperseded)}
	cfg.Runner = runner

	rr := postJSON(t, NewRouter(cfg), "/generate", GenerateRequest{FaceImageURL: "f", SourceText: "hi"})
	assertError(t, rr, http.StatusConflict, "SUPERSEDED")
	if runner.gotSession == "" || rr.Header().Get("X-Session-ID") != runner.gotSession {
		t.Errorf("generated session id not echoed: %q vs %q", runner.gotSession, rr.Header().Get("X-Session-ID"))
	}

	runner.err = fmt.Errorf("generation: %w", avatar.ErrTimeout)
	assertError(t, postJSON(t, NewRouter(cfg), "/generate", GenerateRequest{FaceImageURL: "f", SourceText: "hi"}), http.StatusGatewayTimeout, "TIMEOUT")
}

func TestMediaRoute(t *testing.T) {
	dir := t.TempDir()
	database, err := db.New(filepath.Join(dir, "studio.db"), nil)
	if err != nil {
		t.Fatalf("db.New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })

	local, err := storage.NewLocalStore(filepath.Join(dir, "media"), "http://localhost:8787", storage.NewBlobRepository(database.Conn()), logging.Discard())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	url, err := local.Put(context.Background(), "clip.webm", strings.NewReader("webm-bytes"), storage.Options{ContentType: "video/webm"})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if url != "http://localhost:8787/media/clip.webm" {
		t.Fatalf("url = %q", url)
	}

	cfg := testConfig()
	cfg.Media = playback.NewServer(local, logging.Discard())
	router := NewRouter(cfg)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/clip.webm?download=1", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "webm-bytes" {
		t.Fatalf("status = %d, body = %q", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Disposition"); got != "attachment; filename=clip.webm" {
		t.Errorf("Content-Disposition = %q", got)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodHead, "/media/clip.webm", nil))
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 {
		t.Errorf("HEAD status = %d, body len = %d", rr.Code, rr.Body.Len())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/missing.webm", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing status = %d", rr.Code)
	}
}

func TestMediaRoute_AbsentForRemoteStorage(t *testing.T) {
	rr := httptest.NewRecorder()
	NewRouter(testConfig()).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/media/clip.webm", nil))
	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}
