package avatar

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrProviderUnconfigured = errors.New("provider not configured")
	ErrNoProviderConfigured = errors.New("no TTS provider configured (set ELEVENLABS_API_KEY or OPENAI_API_KEY)")
	ErrNoOutputProduced     = errors.New("no video output from model")
	ErrNoAudioTrack         = errors.New("no audio track found in video")
	ErrTimeout              = errors.New("stage timed out")
)

// ProviderError is returned when a configured external provider answers with
// a non-success status.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed: HTTP %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s failed: HTTP %d: %s", e.Provider, e.Status, e.Body)
}

// IsRetryable reports whether the status is a server-side failure.
func (e *ProviderError) IsRetryable() bool {
	return e.Status >= 500
}

// Invalidf builds an ErrInvalidInput with a human-readable message.
func Invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
