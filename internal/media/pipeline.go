package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// Pipeline attaches media sources for capture.
type Pipeline interface {
	AttachSource(ctx context.Context, sourceURL string) (Session, error)
}

// Session is one attached source. Calls must follow the order
// StartCapture, StopOnSourceEnd, FlushToContainer; Close may be called at
// any point and releases everything.
type Session interface {
	Source() SourceInfo
	StartCapture(spec CaptureSpec) error
	StopOnSourceEnd(ctx context.Context) error
	FlushToContainer() (*Recording, error)
	Close() error
}

// Recording is a finished capture on local disk. It is removed when its
// session closes.
type Recording struct {
	Path        string
	ContentType string
	Size        int64
}

func (r *Recording) Open() (io.ReadCloser, error) {
	return os.Open(r.Path)
}

var (
	ErrCaptureNotStarted = errors.New("capture not started")
	ErrCaptureRunning    = errors.New("capture still running")
	ErrSessionClosed     = errors.New("session closed")
)

// FFmpegConfig holds the pipeline's configuration.
type FFmpegConfig struct {
	FFmpegPath  string
	FFprobePath string
	WorkDir     string
	Logger      *slog.Logger
}

// FFmpegPipeline is the ffmpeg/ffprobe implementation of Pipeline.
type FFmpegPipeline struct {
	cfg  FFmpegConfig
	exec Executor
}

func NewFFmpegPipeline(cfg FFmpegConfig, exec Executor) (*FFmpegPipeline, error) {
	if cfg.FFmpegPath == "" {
		cfg.FFmpegPath = "ffmpeg"
	}
	if cfg.FFprobePath == "" {
		cfg.FFprobePath = "ffprobe"
	}
	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create work dir: %w", err)
	}
	return &FFmpegPipeline{cfg: cfg, exec: exec}, nil
}

// AttachSource probes the source and prepares a scratch directory for the
// capture. The returned session is bound to ctx.
func (p *FFmpegPipeline) AttachSource(ctx context.Context, sourceURL string) (Session, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, errors.New("empty source url")
	}

	out, res := p.exec.Output(ctx, p.cfg.FFprobePath, probeArgs(sourceURL))
	if !res.IsSuccess() {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffprobe exited %d: %s", res.ExitCode, truncate(res.StderrTail, 512))
	}
	info, err := parseProbe(out)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(p.cfg.WorkDir, "capture-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create capture dir: %w", err)
	}

	sctx, cancel := context.WithCancel(ctx)
	p.cfg.Logger.Debug("attached media source",
		"audio_tracks", info.AudioTracks, "video_tracks", info.VideoTracks, "duration", info.Duration)

	return &ffmpegSession{
		pipeline: p,
		source:   sourceURL,
		info:     info,
		dir:      dir,
		ctx:      sctx,
		cancel:   cancel,
	}, nil
}

type sessionState int

const (
	stateAttached sessionState = iota
	stateCapturing
	stateStopped
	stateClosed
)

type ffmpegSession struct {
	pipeline *FFmpegPipeline
	source   string
	info     SourceInfo
	dir      string
	ctx      context.Context
	cancel   context.CancelFunc

	mu      sync.Mutex
	state   sessionState
	spec    CaptureSpec
	outPath string
	proc    Process
	result  RunResult
}

func (s *ffmpegSession) Source() SourceInfo { return s.info }

func (s *ffmpegSession) StartCapture(spec CaptureSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return ErrSessionClosed
	case stateAttached:
	default:
		return errors.New("capture already started")
	}

	if spec.AudioOnly && spec.AudioTrack >= s.info.AudioTracks {
		return fmt.Errorf("audio track %d not present (source has %d)", spec.AudioTrack, s.info.AudioTracks)
	}
	if !spec.AudioOnly && (spec.FilterGraph == "" || spec.VideoLabel == "") {
		return errors.New("video capture requires a filter graph")
	}

	container := spec.Container
	if container == "" {
		container = "webm"
	}
	s.outPath = filepath.Join(s.dir, "capture."+container)
	args := captureArgs(s.source, s.outPath, spec, s.info.HasAudio())

	proc, err := s.pipeline.exec.Start(s.ctx, s.pipeline.cfg.FFmpegPath, args)
	if err != nil {
		return fmt.Errorf("cannot start ffmpeg: %w", err)
	}
	s.spec = spec
	s.proc = proc
	s.state = stateCapturing
	return nil
}

// StopOnSourceEnd blocks until the capture reaches the end of the source.
// If ctx ends first the capture is aborted and ctx's error returned.
func (s *ffmpegSession) StopOnSourceEnd(ctx context.Context) error {
	s.mu.Lock()
	if s.state != stateCapturing {
		s.mu.Unlock()
		if s.state == stateClosed {
			return ErrSessionClosed
		}
		return ErrCaptureNotStarted
	}
	proc := s.proc
	s.mu.Unlock()

	done := make(chan RunResult, 1)
	go func() { done <- proc.Wait() }()

	var res RunResult
	select {
	case res = <-done:
	case <-ctx.Done():
		s.cancel()
		<-done
		s.mu.Lock()
		s.state = stateStopped
		s.result = RunResult{ExitCode: -1, Err: ctx.Err()}
		s.mu.Unlock()
		return ctx.Err()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateStopped
	s.result = res
	if !res.IsSuccess() {
		if err := s.ctx.Err(); err != nil {
			return err
		}
		return fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, truncate(res.StderrTail, 512))
	}
	return nil
}

func (s *ffmpegSession) FlushToContainer() (*Recording, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case stateClosed:
		return nil, ErrSessionClosed
	case stateAttached:
		return nil, ErrCaptureNotStarted
	case stateCapturing:
		return nil, ErrCaptureRunning
	}
	if !s.result.IsSuccess() {
		return nil, errors.New("capture did not complete")
	}

	stat, err := os.Stat(s.outPath)
	if err != nil {
		return nil, fmt.Errorf("capture output missing: %w", err)
	}
	if stat.Size() == 0 {
		return nil, errors.New("capture output is empty")
	}
	return &Recording{Path: s.outPath, ContentType: s.spec.ContentType, Size: stat.Size()}, nil
}

func (s *ffmpegSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateClosed {
		return nil
	}
	s.cancel()
	s.state = stateClosed
	return os.RemoveAll(s.dir)
}

// captureArgs builds the ffmpeg command line. Seeking to 0 before the input
// makes every capture start from the first sample.
func captureArgs(source, outPath string, spec CaptureSpec, sourceHasAudio bool) []string {
	args := []string{"-hide_banner", "-nostdin", "-y", "-ss", "0", "-i", source}

	if spec.AudioOnly {
		args = append(args, "-map", "0:a:"+strconv.Itoa(spec.AudioTrack), "-vn")
	} else {
		args = append(args, "-filter_complex", spec.FilterGraph, "-map", "["+spec.VideoLabel+"]")
		if spec.KeepAudio && sourceHasAudio {
			args = append(args, "-map", "0:a:0")
		}
		if spec.FrameRate > 0 {
			args = append(args, "-r", strconv.Itoa(spec.FrameRate))
		}
		if spec.VideoCodec != "" {
			args = append(args, "-c:v", spec.VideoCodec)
		}
		if spec.VideoBitrate != "" {
			args = append(args, "-b:v", spec.VideoBitrate)
		}
	}

	if spec.AudioOnly || (spec.KeepAudio && sourceHasAudio) {
		if spec.AudioCodec != "" {
			args = append(args, "-c:a", spec.AudioCodec)
		}
	} else {
		args = append(args, "-an")
	}

	container := spec.Container
	if container == "" {
		container = "webm"
	}
	return append(args, "-f", container, outPath)
}
