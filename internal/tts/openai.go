package tts

import (
	"context"
	"errors"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

type OpenAIProvider struct {
	client        *openai.Client
	configured    bool
	maxAudioBytes int64
}

// NewOpenAIProvider creates the provider. baseURL overrides the API origin
// (including the /v1 suffix) and is empty in production.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:        openai.NewClientWithConfig(cfg),
		configured:    apiKey != "",
		maxAudioBytes: DefaultMaxAudioBytes,
	}
}

func (p *OpenAIProvider) Name() avatar.TTSProvider { return avatar.ProviderOpenAI }

func (p *OpenAIProvider) Configured() bool { return p.configured }

func (p *OpenAIProvider) Synthesize(ctx context.Context, text, voiceSelector string) ([]byte, error) {
	if !p.configured {
		return nil, avatar.ErrProviderUnconfigured
	}

	resp, err := p.client.CreateSpeech(ctx, openai.CreateSpeechRequest{
		Model:          openai.TTSModel1,
		Input:          text,
		Voice:          openai.SpeechVoice(OpenAIVoice(voiceSelector)),
		ResponseFormat: openai.SpeechResponseFormatMp3,
	})
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	defer resp.Close()

	return readAudio(avatar.ProviderOpenAI, resp, p.maxAudioBytes)
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &avatar.ProviderError{
			Provider: string(avatar.ProviderOpenAI),
			Status:   apiErr.HTTPStatusCode,
			Body:     truncate(apiErr.Message, maxErrorBody),
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &avatar.ProviderError{
			Provider: string(avatar.ProviderOpenAI),
			Status:   reqErr.HTTPStatusCode,
			Body:     truncate(reqErr.Error(), maxErrorBody),
		}
	}
	return fmt.Errorf("openai request failed: %w", err)
}
