package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/storage"
)

// Synthesizer runs the two-provider fallback and stores the resulting audio.
type Synthesizer struct {
	primary   Provider
	secondary Provider
	store     storage.Store
	logger    *slog.Logger
	now       func() time.Time
}

func NewSynthesizer(primary, secondary Provider, store storage.Store, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		primary:   primary,
		secondary: secondary,
		store:     store,
		logger:    logger,
		now:       time.Now,
	}
}

// Synthesize converts text to speech and returns the stored audio URL with
// the provider that produced it.
func (s *Synthesizer) Synthesize(ctx context.Context, text, voiceSelector string) (avatar.SynthesisResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return avatar.SynthesisResult{}, avatar.Invalidf("missing text")
	}

	audio, provider, err := s.speak(ctx, text, voiceSelector)
	if err != nil {
		return avatar.SynthesisResult{}, err
	}

	name := storage.TimestampName("tts", ".mp3", s.now())
	url, err := s.store.Put(ctx, name, bytes.NewReader(audio), storage.Options{
		ContentType:     "audio/mpeg",
		Public:          true,
		CollisionSuffix: true,
	})
	if err != nil {
		return avatar.SynthesisResult{}, fmt.Errorf("failed to store synthesized audio: %w", err)
	}

	s.logger.Info("synthesized speech", "provider", provider, "bytes", len(audio), "chars", len(text))
	return avatar.SynthesisResult{AudioURL: url, Provider: provider}, nil
}

func (s *Synthesizer) speak(ctx context.Context, text, voiceSelector string) ([]byte, avatar.TTSProvider, error) {
	audio, primaryErr := s.primary.Synthesize(ctx, text, voiceSelector)
	if primaryErr == nil {
		return audio, s.primary.Name(), nil
	}
	if ctx.Err() != nil {
		return nil, "", ctx.Err()
	}
	if !errors.Is(primaryErr, avatar.ErrProviderUnconfigured) {
		s.logger.Warn("primary tts provider failed, falling back",
			"provider", s.primary.Name(), "fallback", s.secondary.Name(), "error", primaryErr)
	}

	audio, err := s.secondary.Synthesize(ctx, text, voiceSelector)
	switch {
	case err == nil:
		return audio, s.secondary.Name(), nil
	case errors.Is(err, avatar.ErrProviderUnconfigured):
		if errors.Is(primaryErr, avatar.ErrProviderUnconfigured) {
			return nil, "", avatar.ErrNoProviderConfigured
		}
		// No fallback exists, so the primary failure is the answer.
		return nil, "", primaryErr
	default:
		return nil, "", err
	}
}

// ConfiguredProviders lists providers that have credentials, in fallback order.
func (s *Synthesizer) ConfiguredProviders() []avatar.TTSProvider {
	var out []avatar.TTSProvider
	for _, p := range []Provider{s.primary, s.secondary} {
		if p.Configured() {
			out = append(out, p.Name())
		}
	}
	return out
}
