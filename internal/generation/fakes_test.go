package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

type fakeSynth struct {
	calls int
	err   error
	block bool
	// stall sleeps without watching ctx, like a client with no context support.
	stall time.Duration
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, voice string) (avatar.SynthesisResult, error) {
	f.calls++
	if f.block {
		<-ctx.Done()
		return avatar.SynthesisResult{}, ctx.Err()
	}
	if f.stall > 0 {
		time.Sleep(f.stall)
	}
	if f.err != nil {
		return avatar.SynthesisResult{}, f.err
	}
	return avatar.SynthesisResult{AudioURL: "https://cdn.test/tts.mp3", Provider: avatar.ProviderOpenAI}, nil
}

type fakeExtractor struct {
	calls int
	err   error
}

func (f *fakeExtractor) ExtractAudio(ctx context.Context, url string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.test/extracted.webm", nil
}

type fakeLipSync struct {
	mu        sync.Mutex
	calls     int
	audioURLs []string
	started   chan struct{}
}

func (f *fakeLipSync) Generate(ctx context.Context, face, audio string, choice avatar.ModelChoice, emotion avatar.EmotionParams, angle avatar.CameraAngle) (avatar.LipSyncResult, error) {
	f.mu.Lock()
	f.calls++
	f.audioURLs = append(f.audioURLs, audio)
	started := f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
		<-ctx.Done()
		return avatar.LipSyncResult{}, ctx.Err()
	}
	return avatar.LipSyncResult{VideoURL: "https://cdn.test/out.mp4", ModelUsed: avatar.ModelPrimary}, nil
}

// scriptedTTS implements tts.Provider.
type scriptedTTS struct {
	name       avatar.TTSProvider
	configured bool
	err        error
}

func (p *scriptedTTS) Name() avatar.TTSProvider { return p.name }
func (p *scriptedTTS) Configured() bool         { return p.configured }
func (p *scriptedTTS) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if p.err != nil {
		return nil, p.err
	}
	return []byte("ID3" + text), nil
}

// scriptedRunner implements lipsync.ModelRunner.
type scriptedRunner struct {
	mu      sync.Mutex
	outputs map[string]any
	errs    map[string]error
	inputs  map[string]map[string]any
}

func (r *scriptedRunner) Run(ctx context.Context, model string, input map[string]any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inputs == nil {
		r.inputs = make(map[string]map[string]any)
	}
	r.inputs[model] = input
	if err := r.errs[model]; err != nil {
		return nil, err
	}
	return r.outputs[model], nil
}

type memoryStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func (s *memoryStore) Put(ctx context.Context, name string, data io.Reader, opts storage.Options) (string, error) {
	b, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blobs == nil {
		s.blobs = make(map[string][]byte)
	}
	s.blobs[name] = b
	return fmt.Sprintf("https://cdn.test/%s", name), nil
}

var errBoom = errors.New("boom")
