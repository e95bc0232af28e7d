package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/clipcut-backend/internal/platform/envutil"
)

// Config is the process-wide configuration. It is loaded once at startup
// and passed down explicitly; nothing in the pipeline mutates it.
type Config struct {
	AppName string `yaml:"app_name"`
	Port    string `yaml:"port"`
	LogMode string `yaml:"log_mode"`

	DataDir string `yaml:"data_dir"`

	DBDriver    string `yaml:"db_driver"` // "sqlite" or "postgres"
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`

	LLM      LLMConfig      `yaml:"llm"`
	Speech   SpeechConfig   `yaml:"speech"`
	Scenes   SceneConfig    `yaml:"scenes"`
	Telegram TelegramConfig `yaml:"telegram"`
	Upload   UploadConfig   `yaml:"upload"`
	YTDLP    YTDLPConfig    `yaml:"ytdlp"`

	// RetryAttempts is the per-stage attempt budget for the orchestrator.
	RetryAttempts int `yaml:"retry_attempts"`

	Defaults ClipSettings `yaml:"defaults"`
}

type LLMConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Provider      string `yaml:"provider"` // "openai" or "ollama"
	Model         string `yaml:"model"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OllamaBaseURL string `yaml:"ollama_base_url"`
}

type SpeechConfig struct {
	Provider      string `yaml:"provider"` // "whisper" or "gcp"
	WhisperBinary string `yaml:"whisper_binary"`
	WhisperModel  string `yaml:"whisper_model"`
	Device        string `yaml:"device"` // "cpu" or "cuda"
	GCSBucket     string `yaml:"gcs_bucket"`
	LanguageCode  string `yaml:"language_code"`
}

type SceneConfig struct {
	Provider  string  `yaml:"provider"` // "ffmpeg" or "gcp"
	Threshold float64 `yaml:"threshold"`
	GCSBucket string  `yaml:"gcs_bucket"`
	HWAccel   string  `yaml:"hwaccel"` // "", "cuda", "qsv", "d3d11va", "dxva2"
}

type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

type UploadConfig struct {
	GCSBucket string `yaml:"gcs_bucket"`
	Prefix    string `yaml:"prefix"`
}

type YTDLPConfig struct {
	Binary         string `yaml:"binary"`
	CookiesBrowser string `yaml:"cookies_browser"`
	CookiesFile    string `yaml:"cookies_file"`
}

// ClipSettings is the per-run settings bundle threaded through every
// stage call. Concurrent pipelines each carry their own copy.
type ClipSettings struct {
	MinDuration        float64 `yaml:"min_duration"`
	MaxDuration        float64 `yaml:"max_duration"`
	MinEngagementScore int     `yaml:"min_engagement_score"`
	VideoQuality       string  `yaml:"video_quality"` // "480p", "720p", "1080p"
	VideoFormat        string  `yaml:"video_format"`  // "h264", "h265", "av1", "vp9"
	AspectRatio        string  `yaml:"aspect_ratio"`  // "9:16", "1:1", "original"
	Device             string  `yaml:"device"`        // "cpu" or "cuda"
	BurnCaptions       bool    `yaml:"burn_captions"`
	TitleOverlay       bool    `yaml:"title_overlay"`
	AutoTitleMinChars  int     `yaml:"auto_title_min_chars"`
}

func DefaultClipSettings() ClipSettings {
	return ClipSettings{
		MinDuration:        20,
		MaxDuration:        60,
		MinEngagementScore: 7,
		VideoQuality:       "1080p",
		VideoFormat:        "h264",
		AspectRatio:        "9:16",
		Device:             "cpu",
		AutoTitleMinChars:  50,
	}
}

// Normalized returns a copy with zero values filled from defaults so a
// partially populated request bundle is still usable.
func (s ClipSettings) Normalized() ClipSettings {
	def := DefaultClipSettings()
	if s.MinDuration <= 0 {
		s.MinDuration = def.MinDuration
	}
	if s.MaxDuration <= 0 {
		s.MaxDuration = def.MaxDuration
	}
	if s.MaxDuration < s.MinDuration {
		s.MaxDuration = s.MinDuration
	}
	if s.MinEngagementScore <= 0 {
		s.MinEngagementScore = def.MinEngagementScore
	}
	if s.VideoQuality == "" {
		s.VideoQuality = def.VideoQuality
	}
	if s.VideoFormat == "" {
		s.VideoFormat = def.VideoFormat
	}
	if s.AspectRatio == "" {
		s.AspectRatio = def.AspectRatio
	}
	if s.Device == "" {
		s.Device = def.Device
	}
	if s.AutoTitleMinChars <= 0 {
		s.AutoTitleMinChars = def.AutoTitleMinChars
	}
	return s
}

// Load reads an optional YAML file (CONFIG_FILE, default config.yaml)
// and lets environment variables override individual values.
func Load() (*Config, error) {
	cfg := &Config{
		AppName:       "clipcut-backend",
		Port:          "8080",
		LogMode:       "development",
		DataDir:       "data",
		DBDriver:      "sqlite",
		SQLitePath:    filepath.Join("db", "app.db"),
		RetryAttempts: 2,
		LLM: LLMConfig{
			Enabled:       true,
			OllamaBaseURL: "http://localhost:11434",
		},
		Speech: SpeechConfig{
			Provider:      "whisper",
			WhisperBinary: "whisper",
			WhisperModel:  "small",
			Device:        "cpu",
			LanguageCode:  "en-US",
		},
		Scenes: SceneConfig{
			Provider:  "ffmpeg",
			Threshold: 0.3,
		},
		YTDLP: YTDLPConfig{
			Binary: "yt-dlp",
		},
		Defaults: DefaultClipSettings(),
	}

	path := envutil.String("CONFIG_FILE", "config.yaml")
	if raw, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	applyEnv(cfg)
	cfg.Defaults = cfg.Defaults.Normalized()
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Port = envutil.String("PORT", cfg.Port)
	cfg.LogMode = envutil.String("LOG_MODE", cfg.LogMode)
	cfg.DataDir = envutil.String("DATA_DIR", cfg.DataDir)
	cfg.DBDriver = envutil.String("DB_DRIVER", cfg.DBDriver)
	cfg.SQLitePath = envutil.String("SQLITE_PATH", cfg.SQLitePath)
	cfg.PostgresDSN = envutil.String("POSTGRES_DSN", cfg.PostgresDSN)
	cfg.RetryAttempts = envutil.Int("PIPELINE_RETRY_ATTEMPTS", cfg.RetryAttempts)

	cfg.LLM.Enabled = envutil.Bool("LLM_ENABLED", cfg.LLM.Enabled)
	cfg.LLM.Provider = envutil.String("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = envutil.String("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.OpenAIAPIKey = envutil.String("OPENAI_API_KEY", cfg.LLM.OpenAIAPIKey)
	cfg.LLM.OllamaBaseURL = envutil.String("OLLAMA_BASE_URL", cfg.LLM.OllamaBaseURL)

	cfg.Speech.Provider = envutil.String("SPEECH_PROVIDER", cfg.Speech.Provider)
	cfg.Speech.WhisperBinary = envutil.String("WHISPER_BINARY", cfg.Speech.WhisperBinary)
	cfg.Speech.WhisperModel = envutil.String("WHISPER_MODEL", cfg.Speech.WhisperModel)
	cfg.Speech.Device = envutil.String("WHISPER_DEVICE", cfg.Speech.Device)
	cfg.Speech.GCSBucket = envutil.String("SPEECH_GCS_BUCKET", cfg.Speech.GCSBucket)
	cfg.Speech.LanguageCode = envutil.String("SPEECH_LANGUAGE", cfg.Speech.LanguageCode)

	cfg.Scenes.Provider = envutil.String("SCENE_PROVIDER", cfg.Scenes.Provider)
	cfg.Scenes.Threshold = envutil.Float("SCENE_THRESHOLD", cfg.Scenes.Threshold)
	cfg.Scenes.GCSBucket = envutil.String("SCENE_GCS_BUCKET", cfg.Scenes.GCSBucket)
	cfg.Scenes.HWAccel = envutil.String("FFMPEG_HWACCEL", cfg.Scenes.HWAccel)

	cfg.Telegram.BotToken = envutil.String("TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken)
	cfg.Telegram.ChatID = envutil.String("TELEGRAM_CHAT_ID", cfg.Telegram.ChatID)

	cfg.Upload.GCSBucket = envutil.String("UPLOAD_GCS_BUCKET", cfg.Upload.GCSBucket)
	cfg.Upload.Prefix = envutil.String("UPLOAD_GCS_PREFIX", cfg.Upload.Prefix)

	cfg.YTDLP.Binary = envutil.String("YTDLP_BINARY", cfg.YTDLP.Binary)
	cfg.YTDLP.CookiesBrowser = envutil.String("YT_COOKIES_BROWSER", cfg.YTDLP.CookiesBrowser)
	cfg.YTDLP.CookiesFile = envutil.String("YT_COOKIES_FILE", cfg.YTDLP.CookiesFile)

	cfg.Defaults.MinDuration = envutil.Float("CLIP_MIN_DURATION", cfg.Defaults.MinDuration)
	cfg.Defaults.MaxDuration = envutil.Float("CLIP_MAX_DURATION", cfg.Defaults.MaxDuration)
	cfg.Defaults.MinEngagementScore = envutil.Int("CLIP_MIN_SCORE", cfg.Defaults.MinEngagementScore)
	cfg.Defaults.VideoQuality = envutil.String("CLIP_QUALITY", cfg.Defaults.VideoQuality)
	cfg.Defaults.VideoFormat = envutil.String("CLIP_FORMAT", cfg.Defaults.VideoFormat)
	cfg.Defaults.Device = envutil.String("CLIP_DEVICE", cfg.Defaults.Device)
}

// Storage layout. All media artifacts live under DataDir, one
// subdirectory per category. Writes are append-only per entity id.

func (c *Config) VideosDir() string      { return filepath.Join(c.DataDir, "videos") }
func (c *Config) AudioDir() string       { return filepath.Join(c.DataDir, "audio") }
func (c *Config) RendersDir() string     { return filepath.Join(c.DataDir, "renders") }
func (c *Config) TranscriptsDir() string { return filepath.Join(c.DataDir, "transcripts") }
func (c *Config) HeatmapDir() string     { return filepath.Join(c.DataDir, "heatmap") }
func (c *Config) ArtifactsDir() string   { return filepath.Join(c.DataDir, "artifacts") }

// RendersDirFor returns the per-video render directory.
func (c *Config) RendersDirFor(videoID string) string {
	return filepath.Join(c.RendersDir(), videoID)
}

// EnsureDirs creates the full storage tree.
func (c *Config) EnsureDirs() error {
	dirs := []string{
		c.DataDir,
		c.VideosDir(),
		c.AudioDir(),
		c.RendersDir(),
		c.TranscriptsDir(),
		c.HeatmapDir(),
		c.ArtifactsDir(),
		filepath.Dir(c.SQLitePath),
	}
	for _, d := range dirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		if err := os.MkdirAll(d, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}
