// Package lipsync drives the hosted lip-sync models: wav2lip first, with
// sadtalker as the fallback.
package lipsync

import (
	"context"
	"errors"
	"fmt"

	"github.com/replicate/replicate-go"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

// ModelRunner runs one hosted model to completion and returns its decoded
// output.
type ModelRunner interface {
	Run(ctx context.Context, model string, input map[string]any) (any, error)
}

// ReplicateRunner runs models through the Replicate predictions API.
type ReplicateRunner struct {
	client *replicate.Client
}

// NewReplicateRunner creates a runner. baseURL is empty in production.
func NewReplicateRunner(token, baseURL string) (*ReplicateRunner, error) {
	opts := []replicate.ClientOption{replicate.WithToken(token)}
	if baseURL != "" {
		opts = append(opts, replicate.WithBaseURL(baseURL))
	}
	client, err := replicate.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create replicate client: %w", err)
	}
	return &ReplicateRunner{client: client}, nil
}

func (r *ReplicateRunner) Run(ctx context.Context, model string, input map[string]any) (any, error) {
	out, err := r.client.Run(ctx, model, replicate.PredictionInput(input), nil)
	if err != nil {
		var apiErr *replicate.APIError
		if errors.As(err, &apiErr) && apiErr.Status != 0 {
			return nil, &avatar.ProviderError{
				Provider: "replicate",
				Status:   apiErr.Status,
				Body:     apiErr.Detail,
			}
		}
		return nil, fmt.Errorf("replicate run %s: %w", model, err)
	}
	return out, nil
}

// UnconfiguredRunner stands in when REPLICATE_API_TOKEN is absent.
type UnconfiguredRunner struct{}

func (UnconfiguredRunner) Run(context.Context, string, map[string]any) (any, error) {
	return nil, fmt.Errorf("%w: set REPLICATE_API_TOKEN", avatar.ErrProviderUnconfigured)
}
