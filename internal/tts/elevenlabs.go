package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

const DefaultElevenLabsBaseURL = "https://api.elevenlabs.io"

type ElevenLabsProvider struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	maxAudioBytes int64
}

// NewElevenLabsProvider creates the provider. An empty apiKey yields a
// provider that always reports ErrProviderUnconfigured.
func NewElevenLabsProvider(apiKey, baseURL string) *ElevenLabsProvider {
	if baseURL == "" {
		baseURL = DefaultElevenLabsBaseURL
	}
	return &ElevenLabsProvider{
		apiKey:        apiKey,
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 60 * time.Second},
		maxAudioBytes: DefaultMaxAudioBytes,
	}
}

func (p *ElevenLabsProvider) Name() avatar.TTSProvider { return avatar.ProviderElevenLabs }

func (p *ElevenLabsProvider) Configured() bool { return p.apiKey != "" }

func (p *ElevenLabsProvider) Synthesize(ctx context.Context, text, voiceSelector string) ([]byte, error) {
	if !p.Configured() {
		return nil, avatar.ErrProviderUnconfigured
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	endpoint := p.baseURL + "/v1/text-to-speech/" + url.PathEscape(ElevenLabsVoiceID(voiceSelector))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("xi-api-key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody*2))
		return nil, &avatar.ProviderError{
			Provider: string(avatar.ProviderElevenLabs),
			Status:   resp.StatusCode,
			Body:     truncate(string(respBody), maxErrorBody),
		}
	}

	return readAudio(avatar.ProviderElevenLabs, resp.Body, p.maxAudioBytes)
}
