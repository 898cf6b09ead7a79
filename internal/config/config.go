// Package config provides configuration management for the Avatar Studio service.
// Configuration is loaded once at startup from an optional .env file and
// environment variables, with sensible defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// Default values
	DefaultHost     = "127.0.0.1"
	DefaultPort     = 8787
	DefaultLogLevel = "info"
	DefaultDataDir  = ".avatar-studio"

	// Environment variable names
	EnvHost          = "STUDIO_HOST"
	EnvPort          = "STUDIO_PORT"
	EnvLogLevel      = "STUDIO_LOG_LEVEL"
	EnvDataDir       = "STUDIO_DATA_DIR"
	EnvPublicBaseURL = "STUDIO_PUBLIC_BASE_URL"
	EnvMaxUploadMB   = "STUDIO_MAX_UPLOAD_MB"

	// Comma-separated browser origins allowed besides localhost
	EnvAllowedOrigins = "STUDIO_ALLOWED_ORIGINS"

	// Provider credentials
	EnvElevenLabsKey  = "ELEVENLABS_API_KEY"
	EnvOpenAIKey      = "OPENAI_API_KEY"
	EnvReplicateToken = "REPLICATE_API_TOKEN"
	EnvPrimaryModel   = "REPLICATE_PRIMARY_MODEL"
	EnvSecondaryModel = "REPLICATE_SECONDARY_MODEL"

	// Object storage
	EnvSupabaseURL    = "SUPABASE_URL"
	EnvSupabaseKey    = "SUPABASE_SERVICE_KEY"
	EnvSupabaseBucket = "SUPABASE_BUCKET"

	EnvRedisURL    = "REDIS_URL"
	EnvFFmpegPath  = "FFMPEG_PATH"
	EnvFFprobePath = "FFPROBE_PATH"

	// Stage timeouts, in seconds
	EnvTimeoutSynthesis  = "STUDIO_TIMEOUT_SYNTHESIS"
	EnvTimeoutExtraction = "STUDIO_TIMEOUT_EXTRACTION"
	EnvTimeoutGeneration = "STUDIO_TIMEOUT_GENERATION"
	EnvTimeoutExport     = "STUDIO_TIMEOUT_EXPORT"
	EnvTimeoutUpload     = "STUDIO_TIMEOUT_UPLOAD"

	// Database filename
	DBFilename = "studio.db"

	DefaultSupabaseBucket = "avatar-media"
	DefaultMaxUploadMB    = 100

	DefaultPrimaryModel   = "cjwbw/wav2lip:8d707c8e8d2f5ab4b7d4b5a536f8f9c7b9db0f8da8b0c4b8b5e4c6a7b9d5e5a1"
	DefaultSecondaryModel = "fofr/sadtalker:3f0b3d836efc0fbf8a79cbceaaee8c5a3d63d6b6b8a3b1f2e1b0a0e9c8d7f6e1"

	// Stage timeout defaults
	DefaultTimeoutSynthesis  = 55  // seconds
	DefaultTimeoutExtraction = 120 // seconds
	DefaultTimeoutGeneration = 300 // 5 minutes
	DefaultTimeoutExport     = 300 // 5 minutes
	DefaultTimeoutUpload     = 55  // seconds
)

// Config defines the application configuration interface
type Config interface {
	Addr() string
	Port() int
	LogLevel() string
	DataDir() string
	DBPath() string
	MediaDir() string
	PublicBaseURL() string
	MaxUploadBytes() int64
	AllowedOrigins() []string

	ElevenLabsKey() string
	OpenAIKey() string
	ReplicateToken() string
	PrimaryModel() string
	SecondaryModel() string

	SupabaseURL() string
	SupabaseKey() string
	SupabaseBucket() string
	RemoteStorageEnabled() bool

	RedisURL() string
	FFmpegPath() string
	FFprobePath() string

	Timeouts() StageTimeouts
}

// StageTimeouts bounds the wall-clock duration of each pipeline stage.
type StageTimeouts struct {
	Synthesis  time.Duration
	Extraction time.Duration
	Generation time.Duration
	Export     time.Duration
	Upload     time.Duration
}

// EnvConfig reads configuration from environment variables
type EnvConfig struct {
	host          string
	port          int
	logLevel      string
	dataDir       string
	publicBaseURL string
	maxUploadMB   int
	origins       []string

	elevenLabsKey  string
	openAIKey      string
	replicateToken string
	primaryModel   string
	secondaryModel string

	supabaseURL    string
	supabaseKey    string
	supabaseBucket string

	redisURL    string
	ffmpegPath  string
	ffprobePath string

	timeouts StageTimeouts
}

// New loads .env (if present) and creates an EnvConfig with defaults and
// environment variable overrides.
func New() (*EnvConfig, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv builds an EnvConfig from the current process environment only.
func FromEnv() (*EnvConfig, error) {
	cfg := &EnvConfig{
		host:           DefaultHost,
		port:           DefaultPort,
		logLevel:       DefaultLogLevel,
		dataDir:        defaultDataDir(),
		maxUploadMB:    DefaultMaxUploadMB,
		primaryModel:   DefaultPrimaryModel,
		secondaryModel: DefaultSecondaryModel,
		supabaseBucket: DefaultSupabaseBucket,
		ffmpegPath:     "ffmpeg",
		ffprobePath:    "ffprobe",
	}

	if h := os.Getenv(EnvHost); h != "" {
		cfg.host = h
	}

	// Override port from environment
	if p := os.Getenv(EnvPort); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", EnvPort, err)
		}
		if port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: port must be between 1 and 65535", EnvPort)
		}
		cfg.port = port
	}

	if ll := os.Getenv(EnvLogLevel); ll != "" {
		cfg.logLevel = ll
	}

	if dd := os.Getenv(EnvDataDir); dd != "" {
		cfg.dataDir = dd
	}

	cfg.publicBaseURL = strings.TrimRight(os.Getenv(EnvPublicBaseURL), "/")

	if mb := os.Getenv(EnvMaxUploadMB); mb != "" {
		n, err := strconv.Atoi(mb)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid %s: must be a positive integer", EnvMaxUploadMB)
		}
		cfg.maxUploadMB = n
	}

	for _, o := range strings.Split(os.Getenv(EnvAllowedOrigins), ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			cfg.origins = append(cfg.origins, o)
		}
	}

	cfg.elevenLabsKey = strings.TrimSpace(os.Getenv(EnvElevenLabsKey))
	cfg.openAIKey = strings.TrimSpace(os.Getenv(EnvOpenAIKey))
	cfg.replicateToken = strings.TrimSpace(os.Getenv(EnvReplicateToken))
	if m := os.Getenv(EnvPrimaryModel); m != "" {
		cfg.primaryModel = m
	}
	if m := os.Getenv(EnvSecondaryModel); m != "" {
		cfg.secondaryModel = m
	}

	cfg.supabaseURL = strings.TrimRight(os.Getenv(EnvSupabaseURL), "/")
	cfg.supabaseKey = os.Getenv(EnvSupabaseKey)
	if b := os.Getenv(EnvSupabaseBucket); b != "" {
		cfg.supabaseBucket = b
	}

	cfg.redisURL = os.Getenv(EnvRedisURL)
	if p := os.Getenv(EnvFFmpegPath); p != "" {
		cfg.ffmpegPath = p
	}
	if p := os.Getenv(EnvFFprobePath); p != "" {
		cfg.ffprobePath = p
	}

	var err error
	if cfg.timeouts.Synthesis, err = secondsFromEnv(EnvTimeoutSynthesis, DefaultTimeoutSynthesis); err != nil {
		return nil, err
	}
	if cfg.timeouts.Extraction, err = secondsFromEnv(EnvTimeoutExtraction, DefaultTimeoutExtraction); err != nil {
		return nil, err
	}
	if cfg.timeouts.Generation, err = secondsFromEnv(EnvTimeoutGeneration, DefaultTimeoutGeneration); err != nil {
		return nil, err
	}
	if cfg.timeouts.Export, err = secondsFromEnv(EnvTimeoutExport, DefaultTimeoutExport); err != nil {
		return nil, err
	}
	if cfg.timeouts.Upload, err = secondsFromEnv(EnvTimeoutUpload, DefaultTimeoutUpload); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Addr returns the listen address of the HTTP server
func (c *EnvConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.host, c.port)
}

// Port returns the HTTP server port
func (c *EnvConfig) Port() int {
	return c.port
}

// LogLevel returns the log level (debug, info, warn, error)
func (c *EnvConfig) LogLevel() string {
	return c.logLevel
}

// DataDir returns the data directory path
func (c *EnvConfig) DataDir() string {
	return c.dataDir
}

// DBPath returns the full path to the SQLite database file
func (c *EnvConfig) DBPath() string {
	return filepath.Join(c.dataDir, DBFilename)
}

// MediaDir returns the directory backing the local blob store
func (c *EnvConfig) MediaDir() string {
	return filepath.Join(c.dataDir, "media")
}

// PublicBaseURL is the externally reachable origin used to build URLs for
// locally stored media. Defaults to the listen address.
func (c *EnvConfig) PublicBaseURL() string {
	if c.publicBaseURL != "" {
		return c.publicBaseURL
	}
	return "http://" + c.Addr()
}

func (c *EnvConfig) MaxUploadBytes() int64 {
	return int64(c.maxUploadMB) << 20
}

// AllowedOrigins lists extra browser origins accepted by CORS and the
// event stream.
func (c *EnvConfig) AllowedOrigins() []string {
	return c.origins
}

func (c *EnvConfig) ElevenLabsKey() string  { return c.elevenLabsKey }
func (c *EnvConfig) OpenAIKey() string      { return c.openAIKey }
func (c *EnvConfig) ReplicateToken() string { return c.replicateToken }
func (c *EnvConfig) PrimaryModel() string   { return c.primaryModel }
func (c *EnvConfig) SecondaryModel() string { return c.secondaryModel }

func (c *EnvConfig) SupabaseURL() string    { return c.supabaseURL }
func (c *EnvConfig) SupabaseKey() string    { return c.supabaseKey }
func (c *EnvConfig) SupabaseBucket() string { return c.supabaseBucket }

// RemoteStorageEnabled reports whether both Supabase settings are present.
// Otherwise media is kept in the local blob store.
func (c *EnvConfig) RemoteStorageEnabled() bool {
	return c.supabaseURL != "" && c.supabaseKey != ""
}

func (c *EnvConfig) RedisURL() string    { return c.redisURL }
func (c *EnvConfig) FFmpegPath() string  { return c.ffmpegPath }
func (c *EnvConfig) FFprobePath() string { return c.ffprobePath }

func (c *EnvConfig) Timeouts() StageTimeouts {
	return c.timeouts
}

func secondsFromEnv(key string, def int) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return time.Duration(def) * time.Second, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number of seconds", key)
	}
	return time.Duration(n) * time.Second, nil
}

// defaultDataDir returns the default data directory path
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current directory if home is not available
		return DefaultDataDir
	}
	return filepath.Join(home, DefaultDataDir)
}

// Version information (set at build time via ldflags)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)
