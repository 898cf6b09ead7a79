// Package media wraps ffmpeg and ffprobe behind a capture pipeline: attach a
// source, start a capture, let it run until the source ends, then flush the
// result into a container file.
package media

import (
	"time"
)

// SourceInfo describes an attached source as reported by ffprobe.
type SourceInfo struct {
	Duration    float64 `json:"duration"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	VideoCodec  string  `json:"video_codec,omitempty"`
	AudioCodec  string  `json:"audio_codec,omitempty"`
	FrameRate   float64 `json:"frame_rate"`
	VideoTracks int     `json:"video_tracks"`
	AudioTracks int     `json:"audio_tracks"`
}

func (s SourceInfo) HasAudio() bool { return s.AudioTracks > 0 }

// CaptureSpec selects what a session records.
type CaptureSpec struct {
	// AudioOnly records the audio track at AudioTrack and drops video.
	AudioOnly  bool
	AudioTrack int

	// FilterGraph is an ffmpeg filter_complex producing the video on the
	// pad named VideoLabel. Ignored when AudioOnly is set.
	FilterGraph string
	VideoLabel  string
	// KeepAudio re-attaches the source's first audio track when present.
	KeepAudio bool

	FrameRate    int
	VideoCodec   string
	VideoBitrate string
	AudioCodec   string

	// Container is the ffmpeg muxer name, ContentType its MIME type.
	Container   string
	ContentType string
}

// DepInfo reports whether an executable is usable.
type DepInfo struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Capabilities is the outcome of probing the encode/decode toolchain.
type Capabilities struct {
	FFmpeg   DepInfo   `json:"ffmpeg"`
	FFprobe  DepInfo   `json:"ffprobe"`
	ProbedAt time.Time `json:"probed_at"`
}

// CanCapture reports whether both executables are usable.
func (c Capabilities) CanCapture() bool {
	return c.FFmpeg.Available && c.FFprobe.Available
}

// RunResult is the structured outcome of a subprocess.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 && r.Err == nil }
