// Package tts turns text into speech audio. ElevenLabs is tried first for its
// richer voices; OpenAI speech is the fallback.
package tts

import (
	"context"
	"fmt"
	"io"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

// Provider synthesizes speech. Implementations return
// avatar.ErrProviderUnconfigured when their credential is absent and
// *avatar.ProviderError when the provider answers with a non-2xx status.
type Provider interface {
	Name() avatar.TTSProvider
	Configured() bool
	Synthesize(ctx context.Context, text, voiceSelector string) ([]byte, error)
}

// maxErrorBody caps how much of a provider error response is kept.
const maxErrorBody = 512

// DefaultMaxAudioBytes caps a synthesized clip. Narration within the text
// length limit is far below this.
const DefaultMaxAudioBytes = 32 << 20

// readAudio reads a provider's audio body, failing once it exceeds limit.
func readAudio(provider avatar.TTSProvider, r io.Reader, limit int64) ([]byte, error) {
	audio, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s audio: %w", provider, err)
	}
	if int64(len(audio)) > limit {
		return nil, fmt.Errorf("%s audio exceeds %d bytes", provider, limit)
	}
	return audio, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}
