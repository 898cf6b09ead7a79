package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/avatarstudio/avatar-studio/internal/avatar"
	"github.com/avatarstudio/avatar-studio/internal/config"
	"github.com/avatarstudio/avatar-studio/internal/logging"
)

// Synthesizer turns text into a stored audio clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceSelector string) (avatar.SynthesisResult, error)
}

// AudioExtractor pulls the audio track of a video into a stored clip.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, sourceVideoURL string) (string, error)
}

// LipSyncer animates a face image against driving audio.
type LipSyncer interface {
	Generate(ctx context.Context, faceImageURL, drivingAudioURL string, choice avatar.ModelChoice, emotion avatar.EmotionParams, angle avatar.CameraAngle) (avatar.LipSyncResult, error)
}

type AudioSource string

const (
	AudioFromURL   AudioSource = "url"
	AudioFromText  AudioSource = "text"
	AudioFromVideo AudioSource = "video"
)

type RunResult struct {
	RunID       string      `json:"runId"`
	AudioURL    string      `json:"audioUrl"`
	AudioSource AudioSource `json:"audioSource"`
	TTSProvider string      `json:"ttsProvider,omitempty"`
	VideoURL    string      `json:"videoUrl"`
	ModelUsed   string      `json:"modelUsed"`
}

type Orchestrator struct {
	synth       Synthesizer
	extractor   AudioExtractor
	lipsync     LipSyncer
	timeouts    config.StageTimeouts
	registry    *Registry
	hub         *Hub
	broadcaster Broadcaster
	logger      *slog.Logger
}

func NewOrchestrator(synth Synthesizer, extractor AudioExtractor, lipsync LipSyncer, timeouts config.StageTimeouts, hub *Hub, broadcaster Broadcaster, logger *slog.Logger) *Orchestrator {
	if broadcaster == nil {
		broadcaster = NoopBroadcaster{}
	}
	return &Orchestrator{
		synth:       synth,
		extractor:   extractor,
		lipsync:     lipsync,
		timeouts:    timeouts,
		registry:    NewRegistry(),
		hub:         hub,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Listen applies cancellations announced by other instances until ctx ends.
func (o *Orchestrator) Listen(ctx context.Context) error {
	return o.broadcaster.Listen(ctx, func(sessionID, runID string) {
		if o.registry.CancelSession(sessionID, runID) {
			o.logger.Info("run canceled by another instance", "session_id", sessionID, "run_id", runID)
		}
	})
}

// Run executes one generation for sessionID. A previous run of the same
// session still in flight is canceled first.
func (o *Orchestrator) Run(ctx context.Context, sessionID string, req avatar.GenerationRequest) (RunResult, error) {
	if strings.TrimSpace(req.FaceImageURL) == "" {
		return RunResult{}, avatar.Invalidf("missing face image")
	}
	if !hasAudioSource(req) {
		return RunResult{}, avatar.Invalidf("provide driving audio, text, or a source video")
	}

	runID, runCtx, release := o.registry.Begin(ctx, sessionID)
	defer release()

	log := logging.WithRunID(o.logger, runID, sessionID)
	if err := o.broadcaster.Announce(runCtx, sessionID, runID); err != nil {
		log.Warn("failed to announce run", "error", err)
	}

	o.publish(Event{Type: EventRunStarted, RunID: runID, SessionID: sessionID})
	log.Info("run started")

	res, err := o.run(runCtx, runID, sessionID, req, log)
	if err != nil {
		if cause := context.Cause(runCtx); errors.Is(cause, ErrSuperseded) {
			err = fmt.Errorf("%w: %w", cause, err)
		}
		o.publish(Event{Type: EventRunFailed, RunID: runID, SessionID: sessionID, Error: err.Error()})
		log.Warn("run failed", "error", err)
		return RunResult{}, err
	}

	o.publish(Event{
		Type: EventRunCompleted, RunID: runID, SessionID: sessionID,
		Data: map[string]string{"videoUrl": res.VideoURL, "modelUsed": res.ModelUsed},
	})
	log.Info("run completed", "model_used", res.ModelUsed, "audio_source", res.AudioSource)
	return res, nil
}

func (o *Orchestrator) run(ctx context.Context, runID, sessionID string, req avatar.GenerationRequest, log *slog.Logger) (RunResult, error) {
	res := RunResult{RunID: runID}

	switch {
	case strings.TrimSpace(req.DrivingAudioURL) != "":
		res.AudioURL = strings.TrimSpace(req.DrivingAudioURL)
		res.AudioSource = AudioFromURL

	case strings.TrimSpace(req.SourceText) != "":
		o.stageStarted(runID, sessionID, StageSynthesis)
		synth, err := Bounded(ctx, StageSynthesis, o.timeouts.Synthesis, func(ctx context.Context) (avatar.SynthesisResult, error) {
			return o.synth.Synthesize(ctx, req.SourceText, req.VoiceSelector)
		})
		if err != nil {
			return res, fmt.Errorf("synthesis: %w", err)
		}
		res.AudioURL = synth.AudioURL
		res.AudioSource = AudioFromText
		res.TTSProvider = string(synth.Provider)
		o.stageCompleted(runID, sessionID, StageSynthesis, map[string]string{"audioUrl": synth.AudioURL, "provider": string(synth.Provider)})

	default:
		o.stageStarted(runID, sessionID, StageExtraction)
		audioURL, err := Bounded(ctx, StageExtraction, o.timeouts.Extraction, func(ctx context.Context) (string, error) {
			return o.extractor.ExtractAudio(ctx, req.SourceVideoURL)
		})
		if err != nil {
			return res, fmt.Errorf("extraction: %w", err)
		}
		res.AudioURL = audioURL
		res.AudioSource = AudioFromVideo
		o.stageCompleted(runID, sessionID, StageExtraction, map[string]string{"audioUrl": audioURL})
	}
	log.Debug("driving audio resolved", "source", res.AudioSource)

	o.stageStarted(runID, sessionID, StageGeneration)
	video, err := Bounded(ctx, StageGeneration, o.timeouts.Generation, func(ctx context.Context) (avatar.LipSyncResult, error) {
		return o.lipsync.Generate(ctx, req.FaceImageURL, res.AudioURL, req.ModelChoice, req.Emotion, req.CameraAngle)
	})
	if err != nil {
		return res, fmt.Errorf("generation: %w", err)
	}
	res.VideoURL = video.VideoURL
	res.ModelUsed = string(video.ModelUsed)
	o.stageCompleted(runID, sessionID, StageGeneration, map[string]string{"videoUrl": video.VideoURL, "modelUsed": res.ModelUsed})

	return res, nil
}

// ActiveRun returns the in-flight run id of sessionID.
func (o *Orchestrator) ActiveRun(sessionID string) (string, bool) {
	return o.registry.Active(sessionID)
}

func (o *Orchestrator) stageStarted(runID, sessionID string, stage Stage) {
	o.publish(Event{Type: EventStageStarted, RunID: runID, SessionID: sessionID, Stage: stage})
}

func (o *Orchestrator) stageCompleted(runID, sessionID string, stage Stage, data map[string]string) {
	o.publish(Event{Type: EventStageCompleted, RunID: runID, SessionID: sessionID, Stage: stage, Data: data})
}

func (o *Orchestrator) publish(ev Event) {
	if o.hub != nil {
		o.hub.Publish(ev)
	}
}

func hasAudioSource(req avatar.GenerationRequest) bool {
	return strings.TrimSpace(req.DrivingAudioURL) != "" ||
		strings.TrimSpace(req.SourceText) != "" ||
		strings.TrimSpace(req.SourceVideoURL) != ""
}
