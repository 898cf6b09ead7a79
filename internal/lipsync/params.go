package lipsync

import (
	"github.com/avatarstudio/avatar-studio/internal/avatar"
)

// ExpressionScale maps the happy slider onto the secondary model's
// expressiveness factor: happy/50 clamped to [0.5, 2.0].
func ExpressionScale(happy int) float64 {
	scale := float64(happy) / 50
	if scale < 0.5 {
		return 0.5
	}
	if scale > 2.0 {
		return 2.0
	}
	return scale
}

// PoseString is the secondary model's pose hint for a camera angle.
func PoseString(angle avatar.CameraAngle) string {
	switch angle {
	case avatar.AngleClose:
		return "yaw=0,pitch=0,roll=0,scale=1.1"
	case avatar.AngleWide:
		return "scale=0.9"
	default:
		return ""
	}
}

func primaryInput(faceImageURL, drivingAudioURL string) map[string]any {
	return map[string]any{
		"face":     faceImageURL,
		"audio":    drivingAudioURL,
		"pads":     0,
		"nosmooth": false,
	}
}

func secondaryInput(faceImageURL, drivingAudioURL string, emotion avatar.EmotionParams, angle avatar.CameraAngle) map[string]any {
	return map[string]any{
		"source_image":     faceImageURL,
		"driven_audio":     drivingAudioURL,
		"preprocess":       "full",
		"enhancer":         false,
		"expression_scale": ExpressionScale(emotion.Happy),
		"pose":             PoseString(angle),
		"batch_size":       1,
		"still_mode":       false,
	}
}
