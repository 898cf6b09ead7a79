package lipsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

// Models maps each model choice to a provider model identifier.
type Models struct {
	Primary   string
	Secondary string
}

type Generator struct {
	runner ModelRunner
	models Models
	logger *slog.Logger
}

func NewGenerator(runner ModelRunner, models Models, logger *slog.Logger) *Generator {
	return &Generator{runner: runner, models: models, logger: logger}
}

// Generate animates the face with the driving audio. When the primary model
// was chosen and fails or returns nothing, the secondary model runs instead;
// ModelUsed reports which one produced the video.
//
// Movement parameters are not accepted here; they only shape the composite
// export.
func (g *Generator) Generate(ctx context.Context, faceImageURL, drivingAudioURL string, choice avatar.ModelChoice, emotion avatar.EmotionParams, angle avatar.CameraAngle) (avatar.LipSyncResult, error) {
	faceImageURL = strings.TrimSpace(faceImageURL)
	drivingAudioURL = strings.TrimSpace(drivingAudioURL)
	if faceImageURL == "" || drivingAudioURL == "" {
		return avatar.LipSyncResult{}, avatar.Invalidf("faceImageUrl and drivingAudioUrl required")
	}
	if choice == "" {
		choice = avatar.ModelPrimary
	}

	if choice == avatar.ModelPrimary {
		url, err := g.run(ctx, g.models.Primary, primaryInput(faceImageURL, drivingAudioURL))
		if err == nil {
			return avatar.LipSyncResult{VideoURL: url, ModelUsed: avatar.ModelPrimary}, nil
		}
		if ctx.Err() != nil {
			return avatar.LipSyncResult{}, ctx.Err()
		}
		if errors.Is(err, avatar.ErrProviderUnconfigured) {
			return avatar.LipSyncResult{}, err
		}
		g.logger.Warn("primary lip-sync model failed, falling back",
			"model", avatar.ModelPrimary, "fallback", avatar.ModelSecondary, "error", err)
	}

	url, err := g.run(ctx, g.models.Secondary, secondaryInput(faceImageURL, drivingAudioURL, emotion, angle))
	if err != nil {
		if ctx.Err() != nil {
			return avatar.LipSyncResult{}, ctx.Err()
		}
		if errors.Is(err, avatar.ErrProviderUnconfigured) || errors.Is(err, avatar.ErrNoOutputProduced) {
			return avatar.LipSyncResult{}, err
		}
		return avatar.LipSyncResult{}, fmt.Errorf("%w: %s: %w", avatar.ErrNoOutputProduced, avatar.ModelSecondary, err)
	}
	return avatar.LipSyncResult{VideoURL: url, ModelUsed: avatar.ModelSecondary}, nil
}

// run executes one model and resolves its output to a single URL.
func (g *Generator) run(ctx context.Context, model string, input map[string]any) (string, error) {
	raw, err := g.runner.Run(ctx, model, input)
	if err != nil {
		return "", err
	}
	out, err := Normalize(raw)
	if err != nil {
		return "", err
	}
	url, ok := LastOf(out)
	if !ok {
		return "", avatar.ErrNoOutputProduced
	}
	g.logger.Debug("model produced output", "model", model, "sequence", out.IsSequence())
	return url, nil
}
