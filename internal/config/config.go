package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config is split per external capability so each client receives only its
// own section. Secrets are read from the environment only; the optional TOML
// file never carries them.
type Config struct {
	Video     VideoConfig     `toml:"video"`
	Speech    SpeechConfig    `toml:"speech"`
	Media     MediaConfig     `toml:"media"`
	Reasoning ReasoningConfig `toml:"reasoning"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
}

type VideoConfig struct {
	Provider        string `toml:"provider"` // "veo" or "xai"
	VeoAPIKey       string `toml:"-"`
	VeoModel        string `toml:"veo_model"`
	XAIAPIKey       string `toml:"-"`
	XAIBaseURL      string `toml:"xai_base_url"`
	XAIModel        string `toml:"xai_model"`
	AspectRatio     string `toml:"aspect_ratio"`
	Resolution      string `toml:"resolution"`
	BatchDelayMs    int    `toml:"batch_delay_ms"`
	PollIntervalSec int    `toml:"poll_interval_sec"`
	MaxWaitSec      int    `toml:"max_wait_sec"`
	CacheDir        string `toml:"cache_dir"` // where live providers keep downloaded clips
}

const (
	VideoProviderVeo = "veo"
	VideoProviderXAI = "xai"
)

// APIKey returns the credential of the selected provider.
func (c VideoConfig) APIKey() string {
	if c.Provider == VideoProviderXAI {
		return c.XAIAPIKey
	}
	return c.VeoAPIKey
}

// CredentialEnv names the environment variable that enables live generation.
func (c VideoConfig) CredentialEnv() string {
	if c.Provider == VideoProviderXAI {
		return "XAI_API_KEY"
	}
	return "VEO3_API_KEY"
}

func (c VideoConfig) BatchDelay() time.Duration {
	return time.Duration(c.BatchDelayMs) * time.Millisecond
}

func (c VideoConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSec) * time.Second
}

func (c VideoConfig) MaxWait() time.Duration {
	return time.Duration(c.MaxWaitSec) * time.Second
}

type SpeechConfig struct {
	APIKey          string `toml:"-"`
	BaseURL         string `toml:"base_url"`
	ModelID         string `toml:"model_id"`
	SoundModelID    string `toml:"sound_model_id"`
	DialogueDelayMs int    `toml:"dialogue_delay_ms"`
	TimeoutSec      int    `toml:"timeout_sec"`
}

func (c SpeechConfig) DialogueDelay() time.Duration {
	return time.Duration(c.DialogueDelayMs) * time.Millisecond
}

func (c SpeechConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

type MediaConfig struct {
	FFmpegPath  string `toml:"ffmpeg_path"`  // empty = search PATH and common install dirs
	FFprobePath string `toml:"ffprobe_path"` // empty = next to ffmpeg, then PATH
	TempDir     string `toml:"temp_dir"`
}

type ReasoningConfig struct {
	APIKey     string `toml:"-"`
	BaseURL    string `toml:"base_url"` // OpenAI-compatible routers work too
	Model      string `toml:"model"`
	Strict     bool   `toml:"strict"` // live failures abort the run instead of falling back
	TimeoutSec int    `toml:"timeout_sec"`
}

func (c ReasoningConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

type PipelineConfig struct {
	OutputDir        string `toml:"output_dir"`
	DefaultTopic     string `toml:"default_topic"`
	Platform         string `toml:"platform"`
	Style            string `toml:"style"`
	Tone             string `toml:"tone"`
	BurnCaptions     bool   `toml:"burn_captions"`
	TitleCard        bool   `toml:"title_card"`   // overlay the video title over the opening seconds
	MusicPath        string `toml:"music_path"`   // local audio file laid under every final video
	MusicVolume      int    `toml:"music_volume"` // 1..100
	DiscussionRounds int    `toml:"discussion_rounds"`
}

type ServerConfig struct {
	APIPort            string `toml:"api_port"`
	WorkerEnabled      bool   `toml:"worker_enabled"`
	BackendAPIKey      string `toml:"-"` // empty = no auth, dev mode
	CorsAllowedOrigins string `toml:"cors_allowed_origins"`
	DatabaseURL        string `toml:"-"`
	RedisURL           string `toml:"redis_url"`
	MaxConcurrentJobs  int    `toml:"max_concurrent_jobs"`
	RunSchedule        string `toml:"run_schedule"` // cron spec, empty = no scheduled runs
	ScheduledTopic     string `toml:"scheduled_topic"`
}

type StorageConfig struct {
	SupabaseURL        string `toml:"supabase_url"`
	SupabaseServiceKey string `toml:"-"`
	Bucket             string `toml:"bucket"`
	UploadConcurrency  int    `toml:"upload_concurrency"`
}

// Enabled reports whether bundle upload is configured.
func (c StorageConfig) Enabled() bool {
	return c.SupabaseURL != "" && c.SupabaseServiceKey != ""
}

// DefaultTopic is used when a run is started with neither topic nor brief.
const DefaultTopic = "whatever will sell t-shirts today"

// Defaults returns the configuration used when neither file nor environment
// say otherwise.
func Defaults() *Config {
	return &Config{
		Video: VideoConfig{
			Provider:        VideoProviderVeo,
			VeoModel:        "veo-3.1-generate-preview",
			XAIBaseURL:      "https://api.x.ai/v1",
			XAIModel:        "grok-imagine-video",
			AspectRatio:     "9:16",
			Resolution:      "720p",
			BatchDelayMs:    2000,
			PollIntervalSec: 10,
			MaxWaitSec:      300,
			CacheDir:        filepath.Join(os.TempDir(), "viralforge", "videos"),
		},
		Speech: SpeechConfig{
			BaseURL:         "https://api.elevenlabs.io",
			ModelID:         "eleven_flash_v2_5",
			SoundModelID:    "eleven_text_to_sound_v2",
			DialogueDelayMs: 500,
			TimeoutSec:      90,
		},
		Media: MediaConfig{
			TempDir: filepath.Join(os.TempDir(), "viralforge"),
		},
		Reasoning: ReasoningConfig{
			Model:      "gpt-5-mini",
			TimeoutSec: 120,
		},
		Pipeline: PipelineConfig{
			OutputDir:        "output",
			DefaultTopic:     DefaultTopic,
			Platform:         "tiktok",
			Style:            "cinematic",
			Tone:             "chaotic",
			MusicVolume:      30,
			DiscussionRounds: 3,
		},
		Server: ServerConfig{
			APIPort:           "8080",
			WorkerEnabled:     true,
			RedisURL:          "redis://localhost:6379",
			MaxConcurrentJobs: 2,
		},
		Storage: StorageConfig{
			Bucket:            "viralforge-runs",
			UploadConcurrency: 4,
		},
	}
}

// Load builds the configuration from defaults, then the optional TOML file at
// path, then environment variables (a .env file is honoured).
func Load(path string) (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	cfg := Defaults()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer file.Close()

	if err := toml.NewDecoder(file).DisallowUnknownFields().Decode(c); err != nil {
		return fmt.Errorf("decode config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	v := &c.Video
	v.Provider = strings.ToLower(getEnv("VIDEO_PROVIDER", v.Provider))
	v.VeoAPIKey = getEnv("VEO3_API_KEY", v.VeoAPIKey)
	v.VeoModel = getEnv("VEO_MODEL", v.VeoModel)
	v.XAIAPIKey = getEnv("XAI_API_KEY", v.XAIAPIKey)
	v.XAIBaseURL = getEnv("XAI_BASE_URL", v.XAIBaseURL)
	v.XAIModel = getEnv("XAI_VIDEO_MODEL", v.XAIModel)
	v.AspectRatio = getEnv("VIDEO_ASPECT_RATIO", v.AspectRatio)
	v.Resolution = getEnv("VIDEO_RESOLUTION", v.Resolution)
	v.BatchDelayMs = getEnvInt("VIDEO_BATCH_DELAY_MS", v.BatchDelayMs)
	v.CacheDir = getEnv("VIDEO_CACHE_DIR", v.CacheDir)

	s := &c.Speech
	s.APIKey = getEnv("ELEVENLABS_API_KEY", s.APIKey)
	s.BaseURL = getEnv("ELEVENLABS_BASE_URL", s.BaseURL)
	s.ModelID = getEnv("ELEVENLABS_MODEL_ID", s.ModelID)
	s.DialogueDelayMs = getEnvInt("DIALOGUE_DELAY_MS", s.DialogueDelayMs)

	m := &c.Media
	m.FFmpegPath = getEnv("FFMPEG_PATH", m.FFmpegPath)
	m.FFprobePath = getEnv("FFPROBE_PATH", m.FFprobePath)
	m.TempDir = getEnv("MEDIA_TEMP_DIR", m.TempDir)

	r := &c.Reasoning
	r.APIKey = getEnv("OPENAI_API_KEY", r.APIKey)
	r.BaseURL = getEnv("OPENAI_BASE_URL", r.BaseURL)
	r.Model = getEnv("OPENAI_MODEL", r.Model)
	r.Strict = getEnvBool("REASONING_STRICT", r.Strict)

	p := &c.Pipeline
	p.OutputDir = getEnv("OUTPUT_DIR", p.OutputDir)
	p.DefaultTopic = getEnv("DEFAULT_TOPIC", p.DefaultTopic)
	p.Platform = getEnv("DEFAULT_PLATFORM", p.Platform)
	p.Style = getEnv("DEFAULT_STYLE", p.Style)
	p.Tone = getEnv("DEFAULT_TONE", p.Tone)
	p.BurnCaptions = getEnvBool("BURN_CAPTIONS", p.BurnCaptions)
	p.TitleCard = getEnvBool("TITLE_CARD", p.TitleCard)
	p.MusicPath = getEnv("MUSIC_PATH", p.MusicPath)
	p.MusicVolume = getEnvInt("MUSIC_VOLUME", p.MusicVolume)
	p.DiscussionRounds = getEnvInt("DISCUSSION_ROUNDS", p.DiscussionRounds)

	srv := &c.Server
	srv.APIPort = getEnv("API_PORT", srv.APIPort)
	srv.WorkerEnabled = getEnvBool("WORKER_ENABLED", srv.WorkerEnabled)
	srv.BackendAPIKey = getEnv("BACKEND_API_KEY", srv.BackendAPIKey)
	srv.CorsAllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", srv.CorsAllowedOrigins)
	srv.DatabaseURL = getEnv("DATABASE_URL", srv.DatabaseURL)
	srv.RedisURL = getEnv("REDIS_URL", srv.RedisURL)
	srv.MaxConcurrentJobs = getEnvInt("MAX_CONCURRENT_JOBS", srv.MaxConcurrentJobs)
	srv.RunSchedule = getEnv("RUN_SCHEDULE", srv.RunSchedule)
	srv.ScheduledTopic = getEnv("SCHEDULED_TOPIC", srv.ScheduledTopic)

	st := &c.Storage
	st.SupabaseURL = getEnv("SUPABASE_URL", st.SupabaseURL)
	st.SupabaseServiceKey = getEnv("SUPABASE_SERVICE_KEY", st.SupabaseServiceKey)
	st.Bucket = getEnv("SUPABASE_STORAGE_BUCKET", st.Bucket)
}

// Validate checks the settings every command needs. Missing credentials are
// not errors: each client runs in mock mode without its own.
func (c *Config) Validate() error {
	switch c.Video.Provider {
	case VideoProviderVeo, VideoProviderXAI:
	default:
		return fmt.Errorf("VIDEO_PROVIDER must be %q or %q, got %q", VideoProviderVeo, VideoProviderXAI, c.Video.Provider)
	}

	if c.Video.BatchDelayMs < 0 || c.Speech.DialogueDelayMs < 0 {
		return fmt.Errorf("rate-limit delays must not be negative")
	}

	if c.Pipeline.OutputDir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}

	if c.Pipeline.MusicVolume < 1 || c.Pipeline.MusicVolume > 100 {
		return fmt.Errorf("MUSIC_VOLUME must be between 1 and 100, got %d", c.Pipeline.MusicVolume)
	}

	if c.Pipeline.DiscussionRounds < 1 {
		return fmt.Errorf("DISCUSSION_ROUNDS must be at least 1")
	}

	return nil
}

// ValidateServer checks the additional settings the serve command needs.
func (c *Config) ValidateServer() error {
	if c.Server.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Server.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.Server.MaxConcurrentJobs < 1 {
		return fmt.Errorf("MAX_CONCURRENT_JOBS must be at least 1")
	}

	if c.Storage.SupabaseURL != "" && c.Storage.SupabaseServiceKey == "" {
		return fmt.Errorf("SUPABASE_SERVICE_KEY is required when SUPABASE_URL is set")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return defaultValue
}
