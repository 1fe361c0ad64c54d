// Package config loads all runtime configuration from the environment at
// driver startup. Values are immutable after load and passed explicitly to
// components.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the full pipeline configuration.
type Config struct {
	TTS      TTSConfig
	Avatar   AvatarConfig
	Pipeline PipelineConfig
	Cache    CacheConfig
	Media    MediaConfig
	Ledger   LedgerConfig
	Publish  PublishConfig
}

// TTSConfig holds the text-to-speech provider configuration.
type TTSConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	SegmentTimeout time.Duration
}

// AvatarConfig holds the talking-avatar provider configuration.
type AvatarConfig struct {
	APIBase        string
	UploadBase     string
	APIKey         string
	RequestTimeout time.Duration
	UploadTimeout  time.Duration
	PollInterval   time.Duration
	JobDeadline    time.Duration
}

// PipelineConfig tunes driver concurrency and failure policy.
type PipelineConfig struct {
	TTSConcurrency   int
	VideoConcurrency int
	// PartialReel produces a reel of the successful prefix instead of
	// failing the whole run when a later segment fails.
	PartialReel bool
}

// CacheConfig holds the on-disk asset store configuration.
type CacheConfig struct {
	Dir string
	// ByteBudget enables LRU eviction when > 0.
	ByteBudget int64
}

// MediaConfig holds the local media toolchain configuration.
type MediaConfig struct {
	FFmpegPath    string
	FFprobePath   string
	ConcatTimeout time.Duration
}

// LedgerConfig holds the run-history database configuration.
type LedgerConfig struct {
	Path string
}

// PublishConfig holds optional object-storage publishing of finished reels.
// Publishing is disabled while Endpoint is empty.
type PublishConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

const (
	minPollInterval = 5 * time.Second
	maxPollInterval = 30 * time.Second
)

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	defaults := map[string]interface{}{
		"TTS_BASE_URL":                "https://api.elevenlabs.io/v1",
		"TTS_API_KEY":                 "",
		"TTS_REQUEST_TIMEOUT_SECONDS": 60,
		"TTS_SEGMENT_TIMEOUT_SECONDS": 300,

		"AVATAR_API_BASE":                "https://api.heygen.com/v1",
		"AVATAR_UPLOAD_BASE":             "https://upload.heygen.com/v1",
		"AVATAR_API_KEY":                 "",
		"AVATAR_REQUEST_TIMEOUT_SECONDS": 60,
		"AVATAR_UPLOAD_TIMEOUT_SECONDS":  120,
		"AVATAR_POLL_INTERVAL_SECONDS":   15,
		"AVATAR_JOB_TIMEOUT_SECONDS":     1800,

		"TTS_CONCURRENCY":   3,
		"VIDEO_CONCURRENCY": 2,
		"PARTIAL_REEL":      false,

		"CACHE_DIR":         "cache",
		"CACHE_BYTE_BUDGET": 0,

		"FFMPEG_PATH":            "ffmpeg",
		"FFPROBE_PATH":           "ffprobe",
		"CONCAT_TIMEOUT_SECONDS": 600,

		"LEDGER_PATH": "",

		"PUBLISH_ENDPOINT":   "",
		"PUBLISH_ACCESS_KEY": "",
		"PUBLISH_SECRET_KEY": "",
		"PUBLISH_BUCKET":     "reels",
		"PUBLISH_PREFIX":     "",
		"PUBLISH_USE_SSL":    true,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &Config{
		TTS: TTSConfig{
			BaseURL:        v.GetString("TTS_BASE_URL"),
			APIKey:         v.GetString("TTS_API_KEY"),
			RequestTimeout: seconds(v, "TTS_REQUEST_TIMEOUT_SECONDS"),
			SegmentTimeout: seconds(v, "TTS_SEGMENT_TIMEOUT_SECONDS"),
		},
		Avatar: AvatarConfig{
			APIBase:        v.GetString("AVATAR_API_BASE"),
			UploadBase:     v.GetString("AVATAR_UPLOAD_BASE"),
			APIKey:         v.GetString("AVATAR_API_KEY"),
			RequestTimeout: seconds(v, "AVATAR_REQUEST_TIMEOUT_SECONDS"),
			UploadTimeout:  seconds(v, "AVATAR_UPLOAD_TIMEOUT_SECONDS"),
			PollInterval:   clampPollInterval(seconds(v, "AVATAR_POLL_INTERVAL_SECONDS")),
			JobDeadline:    seconds(v, "AVATAR_JOB_TIMEOUT_SECONDS"),
		},
		Pipeline: PipelineConfig{
			TTSConcurrency:   v.GetInt("TTS_CONCURRENCY"),
			VideoConcurrency: v.GetInt("VIDEO_CONCURRENCY"),
			PartialReel:      v.GetBool("PARTIAL_REEL"),
		},
		Cache: CacheConfig{
			Dir:        v.GetString("CACHE_DIR"),
			ByteBudget: v.GetInt64("CACHE_BYTE_BUDGET"),
		},
		Media: MediaConfig{
			FFmpegPath:    v.GetString("FFMPEG_PATH"),
			FFprobePath:   v.GetString("FFPROBE_PATH"),
			ConcatTimeout: seconds(v, "CONCAT_TIMEOUT_SECONDS"),
		},
		Ledger: LedgerConfig{
			Path: v.GetString("LEDGER_PATH"),
		},
		Publish: PublishConfig{
			Endpoint:  v.GetString("PUBLISH_ENDPOINT"),
			AccessKey: v.GetString("PUBLISH_ACCESS_KEY"),
			SecretKey: v.GetString("PUBLISH_SECRET_KEY"),
			Bucket:    v.GetString("PUBLISH_BUCKET"),
			Prefix:    v.GetString("PUBLISH_PREFIX"),
			UseSSL:    v.GetBool("PUBLISH_USE_SSL"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// ValidateProviders checks that API keys are present. Called by the driver
// before any run that will reach the network; dry runs skip it.
func ValidateProviders(cfg *Config) error {
	if cfg.TTS.APIKey == "" {
		return fmt.Errorf("TTS_API_KEY is required")
	}
	if cfg.Avatar.APIKey == "" {
		return fmt.Errorf("AVATAR_API_KEY is required")
	}
	return nil
}

func validate(cfg *Config) error {
	if cfg.TTS.BaseURL == "" {
		return fmt.Errorf("TTS_BASE_URL is required")
	}
	if cfg.Avatar.APIBase == "" {
		return fmt.Errorf("AVATAR_API_BASE is required")
	}
	if cfg.Avatar.UploadBase == "" {
		return fmt.Errorf("AVATAR_UPLOAD_BASE is required")
	}
	if cfg.Cache.Dir == "" {
		return fmt.Errorf("CACHE_DIR is required")
	}
	if cfg.Pipeline.TTSConcurrency <= 0 {
		return fmt.Errorf("TTS_CONCURRENCY must be positive")
	}
	if cfg.Pipeline.VideoConcurrency <= 0 {
		return fmt.Errorf("VIDEO_CONCURRENCY must be positive")
	}
	if cfg.Publish.Endpoint != "" {
		if cfg.Publish.AccessKey == "" || cfg.Publish.SecretKey == "" {
			return fmt.Errorf("PUBLISH_ACCESS_KEY and PUBLISH_SECRET_KEY are required when PUBLISH_ENDPOINT is set")
		}
		if cfg.Publish.Bucket == "" {
			return fmt.Errorf("PUBLISH_BUCKET is required when PUBLISH_ENDPOINT is set")
		}
	}
	return nil
}

func seconds(v *viper.Viper, key string) time.Duration {
	return time.Duration(v.GetFloat64(key) * float64(time.Second))
}

func clampPollInterval(d time.Duration) time.Duration {
	if d < minPollInterval {
		return minPollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}
