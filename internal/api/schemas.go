package api

import (
	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/media"
)

type HealthResponse struct {
	Status    string               `json:"status"`
	Version   string               `json:"version"`
	UptimeS   int64                `json:"uptime_s"`
	Providers []avatar.TTSProvider `json:"tts_providers"`
	LipSync   bool                 `json:"lipsync_configured"`
	Media     *MediaStatusResponse `json:"media,omitempty"`
}

type MediaStatusResponse struct {
	CanCapture  bool          `json:"can_capture"`
	FFmpeg      media.DepInfo `json:"ffmpeg"`
	FFprobe     media.DepInfo `json:"ffprobe"`
	LastProbeAt string        `json:"last_probe_at,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type SynthesizeRequest struct {
	Text          string `json:"text"`
	VoiceSelector string `json:"voiceSelector"`
}

type SynthesizeResponse struct {
	AudioURL string             `json:"audioUrl"`
	Provider avatar.TTSProvider `json:"provider"`
}

type LipSyncRequest struct {
	FaceImageURL    string         `json:"faceImageUrl"`
	DrivingAudioURL string         `json:"drivingAudioUrl"`
	ModelChoice     string         `json:"modelChoice"`
	EmotionParams   map[string]int `json:"emotionParams"`
	MovementParams  map[string]int `json:"movementParams"`
	CameraAngle     string         `json:"cameraAngle"`
}

type LipSyncResponse struct {
	VideoURL  string             `json:"videoUrl"`
	ModelUsed avatar.ModelChoice `json:"modelUsed"`
}

type UploadResponse struct {
	URL string `json:"url"`
}

type ExtractAudioRequest struct {
	SourceVideoURL string `json:"sourceVideoUrl"`
}

type ExtractAudioResponse struct {
	AudioURL string `json:"audioUrl"`
}

type ExportRequest struct {
	VideoURL       string         `json:"videoUrl"`
	BackgroundID   string         `json:"backgroundId"`
	CameraAngle    string         `json:"cameraAngle"`
	MovementParams map[string]int `json:"movementParams"`
}

// GenerateRequest drives the whole pipeline. Driving audio is taken from
// DrivingAudioURL, else SourceText, else SourceVideoURL.
type GenerateRequest struct {
	FaceImageURL    string         `json:"faceImageUrl"`
	DrivingAudioURL string         `json:"drivingAudioUrl"`
	SourceText      string         `json:"sourceText"`
	SourceVideoURL  string         `json:"sourceVideoUrl"`
	VoiceSelector   string         `json:"voiceSelector"`
	ModelChoice     string         `json:"modelChoice"`
	EmotionParams   map[string]int `json:"emotionParams"`
	MovementParams  map[string]int `json:"movementParams"`
	CameraAngle     string         `json:"cameraAngle"`
}

// ToGenerationRequest validates enumerations and fills slider defaults.
func (g GenerateRequest) ToGenerationRequest() (avatar.GenerationRequest, error) {
	choice, err := avatar.ParseModelChoice(g.ModelChoice)
	if err != nil {
		return avatar.GenerationRequest{}, err
	}
	angle, err := avatar.ParseCameraAngle(g.CameraAngle)
	if err != nil {
		return avatar.GenerationRequest{}, err
	}
	return avatar.GenerationRequest{
		FaceImageURL:    g.FaceImageURL,
		DrivingAudioURL: g.DrivingAudioURL,
		SourceText:      g.SourceText,
		SourceVideoURL:  g.SourceVideoURL,
		VoiceSelector:   g.VoiceSelector,
		ModelChoice:     choice,
		Emotion:         avatar.EmotionFromMap(g.EmotionParams),
		Movement:        avatar.MovementFromMap(g.MovementParams),
		CameraAngle:     angle,
	}, nil
}
