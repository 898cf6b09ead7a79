// Package avatar holds the transient data model of one talking-avatar
// generation session: request knobs, stage results and the error taxonomy
// shared by every adapter.
package avatar

import (
	"fmt"
	"strings"
)

type ModelChoice string

const (
	ModelPrimary   ModelChoice = "wav2lip"
	ModelSecondary ModelChoice = "sadtalker"
)

// ParseModelChoice maps a user-facing model name to a ModelChoice. Empty input
// selects the primary model.
func ParseModelChoice(s string) (ModelChoice, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModelPrimary), "primary":
		return ModelPrimary, nil
	case string(ModelSecondary), "secondary":
		return ModelSecondary, nil
	}
	return "", fmt.Errorf("%w: unknown model %q", ErrInvalidInput, s)
}

type CameraAngle string

const (
	AngleCenter CameraAngle = "center"
	AngleClose  CameraAngle = "close"
	AngleWide   CameraAngle = "wide"
)

func ParseCameraAngle(s string) (CameraAngle, error) {
	switch CameraAngle(strings.ToLower(strings.TrimSpace(s))) {
	case "", AngleCenter:
		return AngleCenter, nil
	case AngleClose:
		return AngleClose, nil
	case AngleWide:
		return AngleWide, nil
	}
	return "", fmt.Errorf("%w: unknown camera angle %q", ErrInvalidInput, s)
}

type Background string

const (
	BackgroundStudio   Background = "studio"
	BackgroundGradient Background = "gradient"
	BackgroundNight    Background = "night"
)

func ParseBackground(s string) (Background, error) {
	switch Background(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackgroundStudio:
		return BackgroundStudio, nil
	case BackgroundGradient:
		return BackgroundGradient, nil
	case BackgroundNight:
		return BackgroundNight, nil
	}
	return "", fmt.Errorf("%w: unknown background %q", ErrInvalidInput, s)
}

// EmotionParams are the 0-100 emotion sliders. Only Happy influences
// generation today.
type EmotionParams struct {
	Happy     int `json:"happy"`
	Sad       int `json:"sad"`
	Angry     int `json:"angry"`
	Surprised int `json:"surprised"`
	Neutral   int `json:"neutral"`
}

func DefaultEmotion() EmotionParams {
	return EmotionParams{Happy: 50, Neutral: 50}
}

// EmotionFromMap overlays the keys present in m onto the defaults, so an
// absent "happy" keeps its default of 50.
func EmotionFromMap(m map[string]int) EmotionParams {
	e := DefaultEmotion()
	for k, v := range m {
		switch strings.ToLower(k) {
		case "happy":
			e.Happy = v
		case "sad":
			e.Sad = v
		case "angry":
			e.Angry = v
		case "surprised":
			e.Surprised = v
		case "neutral":
			e.Neutral = v
		}
	}
	return e
}

// MovementParams are the 0-100 movement sliders. They only drive the
// decorative overlay of the composite export; generation ignores them.
type MovementParams struct {
	Head  int `json:"head"`
	Eyes  int `json:"eyes"`
	Hands int `json:"hands"`
}

func DefaultMovement() MovementParams {
	return MovementParams{Head: 50, Eyes: 50, Hands: 20}
}

func MovementFromMap(m map[string]int) MovementParams {
	mv := DefaultMovement()
	for k, v := range m {
		switch strings.ToLower(k) {
		case "head":
			mv.Head = v
		case "eyes":
			mv.Eyes = v
		case "hands":
			mv.Hands = v
		}
	}
	return mv
}

type GenerationRequest struct {
	FaceImageURL    string
	DrivingAudioURL string
	SourceText      string
	SourceVideoURL  string
	VoiceSelector   string
	ModelChoice     ModelChoice
	Emotion         EmotionParams
	Movement        MovementParams
	CameraAngle     CameraAngle
}

type TTSProvider string

const (
	ProviderElevenLabs TTSProvider = "elevenlabs"
	ProviderOpenAI     TTSProvider = "openai"
)

type SynthesisResult struct {
	AudioURL string      `json:"audioUrl"`
	Provider TTSProvider `json:"provider"`
}

type LipSyncResult struct {
	VideoURL  string      `json:"videoUrl"`
	ModelUsed ModelChoice `json:"modelUsed"`
}

type CompositeSpec struct {
	Background  Background
	CameraAngle CameraAngle
	Movement    MovementParams
}
