package media

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/avatarstudio/avatar-studio/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const probeWithAudio = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 512, "height": 512, "r_frame_rate": "25/1"},
    {"codec_type": "audio", "codec_name": "aac"}
  ],
  "format": {"duration": "3.200000"}
}`

const probeSilent = `{
  "streams": [
    {"codec_type": "video", "codec_name": "h264", "width": 256, "height": 256, "r_frame_rate": "30000/1001"}
  ],
  "format": {"duration": "2.0"}
}`

// fakeExecutor answers ffprobe with a canned document and "runs" ffmpeg by
// writing payload to the output path (the last argument).
type fakeExecutor struct {
	probeJSON string
	probeFail bool
	payload   string
	exitCode  int
	block     bool

	mu      sync.Mutex
	started [][]string
}

func (f *fakeExecutor) Output(_ context.Context, bin string, args []string) ([]byte, RunResult) {
	if len(args) == 1 && args[0] == "-version" {
		return []byte(bin + " version 6.1.1 Copyright (c) the FFmpeg developers\n"), RunResult{}
	}
	if f.probeFail {
		return nil, RunResult{ExitCode: 1, StderrTail: "Invalid data found when processing input"}
	}
	return []byte(f.probeJSON), RunResult{}
}

func (f *fakeExecutor) Start(ctx context.Context, _ string, args []string) (Process, error) {
	f.mu.Lock()
	f.started = append(f.started, args)
	f.mu.Unlock()
	return &fakeProcess{ctx: ctx, out: args[len(args)-1], exec: f}, nil
}

func (f *fakeExecutor) lastArgs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.started) == 0 {
		return nil
	}
	return f.started[len(f.started)-1]
}

type fakeProcess struct {
	ctx  context.Context
	out  string
	exec *fakeExecutor
}

func (p *fakeProcess) Wait() RunResult {
	if p.exec.block {
		<-p.ctx.Done()
		return RunResult{ExitCode: -1, Err: p.ctx.Err()}
	}
	if p.exec.exitCode != 0 {
		return RunResult{ExitCode: p.exec.exitCode, StderrTail: "encoder error"}
	}
	if err := os.WriteFile(p.out, []byte(p.exec.payload), 0644); err != nil {
		return RunResult{ExitCode: -1, Err: err}
	}
	return RunResult{}
}

type memoryStore struct {
	mu    sync.Mutex
	names []string
	types []string
	data  []string
}

func (m *memoryStore) Put(_ context.Context, name string, r io.Reader, opts storage.Options) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.names = append(m.names, name)
	m.types = append(m.types, opts.ContentType)
	m.data = append(m.data, string(b))
	return "https://blob.test/" + name, nil
}
