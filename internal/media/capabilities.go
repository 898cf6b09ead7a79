package media

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"
)

const (
	defaultCacheTTL = 5 * time.Minute
	probeTimeout    = 10 * time.Second
)

// CapabilityProber reports what the local toolchain can do.
type CapabilityProber interface {
	ProbeCapabilities(ctx context.Context) (*Capabilities, error)
}

// ProbeCapabilities runs `-version` against ffmpeg and ffprobe. It returns an
// error when either is unusable, alongside the partial result.
func (p *FFmpegPipeline) ProbeCapabilities(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	caps := &Capabilities{
		FFmpeg:   p.probeBinary(ctx, p.cfg.FFmpegPath),
		FFprobe:  p.probeBinary(ctx, p.cfg.FFprobePath),
		ProbedAt: time.Now(),
	}

	p.cfg.Logger.Info("media capability probe complete",
		"ffmpeg", caps.FFmpeg.Available,
		"ffmpeg_version", caps.FFmpeg.Version,
		"ffprobe", caps.FFprobe.Available,
	)

	if !caps.CanCapture() {
		return caps, fmt.Errorf("media toolchain incomplete: ffmpeg=%v ffprobe=%v", caps.FFmpeg.Available, caps.FFprobe.Available)
	}
	return caps, nil
}

func (p *FFmpegPipeline) probeBinary(ctx context.Context, bin string) DepInfo {
	info := DepInfo{}
	if path, err := exec.LookPath(bin); err == nil {
		info.Path = path
	}
	out, res := p.exec.Output(ctx, bin, []string{"-version"})
	if !res.IsSuccess() {
		info.Error = fmt.Sprintf("exit %d: %s", res.ExitCode, truncate(res.StderrTail, 200))
		if res.Err != nil && res.StderrTail == "" {
			info.Error = res.Err.Error()
		}
		return info
	}
	info.Available = true
	info.Version = parseVersion(out)
	return info
}

// CachedCapabilities wraps a prober to cache results with a TTL. A failed
// re-probe serves the previous result when one exists.
type CachedCapabilities struct {
	prober CapabilityProber
	ttl    time.Duration
	logger *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedCapabilities(prober CapabilityProber, logger *slog.Logger) *CachedCapabilities {
	return &CachedCapabilities{
		prober: prober,
		ttl:    defaultCacheTTL,
		logger: logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (c *CachedCapabilities) Get(ctx context.Context) (*Capabilities, error) {
	c.mu.RLock()
	if c.cached != nil && time.Since(c.cached.ProbedAt) < c.ttl {
		caps := c.cached
		c.mu.RUnlock()
		return caps, nil
	}
	c.mu.RUnlock()

	return c.Refresh(ctx)
}

func (c *CachedCapabilities) Peek() *Capabilities {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cached
}

// Refresh forces a new probe regardless of cache freshness.
func (c *CachedCapabilities) Refresh(ctx context.Context) (*Capabilities, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	caps, err := c.prober.ProbeCapabilities(ctx)
	if err != nil {
		c.logger.Warn("media capability probe failed", "error", err)
		if c.cached != nil && c.cached.CanCapture() {
			c.logger.Info("returning stale capabilities cache")
			return c.cached, nil
		}
		if caps != nil {
			c.cached = caps
		}
		return caps, err
	}

	c.cached = caps
	return caps, nil
}

func (c *CachedCapabilities) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}
