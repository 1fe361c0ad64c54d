package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.TTS.BaseURL != "https://api.elevenlabs.io/v1" {
		t.Errorf("TTS.BaseURL = %q", cfg.TTS.BaseURL)
	}
	if cfg.Avatar.APIBase != "https://api.heygen.com/v1" {
		t.Errorf("Avatar.APIBase = %q", cfg.Avatar.APIBase)
	}
	if cfg.Pipeline.TTSConcurrency != 3 || cfg.Pipeline.VideoConcurrency != 2 {
		t.Errorf("concurrency = %d/%d", cfg.Pipeline.TTSConcurrency, cfg.Pipeline.VideoConcurrency)
	}
	if cfg.Pipeline.PartialReel {
		t.Error("PartialReel defaults to true")
	}
	if cfg.Avatar.PollInterval != 15*time.Second {
		t.Errorf("PollInterval = %v", cfg.Avatar.PollInterval)
	}
	if cfg.Avatar.JobDeadline != 30*time.Minute {
		t.Errorf("JobDeadline = %v", cfg.Avatar.JobDeadline)
	}
	if cfg.Media.FFmpegPath != "ffmpeg" || cfg.Media.FFprobePath != "ffprobe" {
		t.Errorf("media paths = %q/%q", cfg.Media.FFmpegPath, cfg.Media.FFprobePath)
	}
}

func TestLoadOverridesFromEnvironment(t *testing.T) {
	t.Setenv("TTS_CONCURRENCY", "5")
	t.Setenv("PARTIAL_REEL", "true")
	t.Setenv("CACHE_DIR", "/var/cache/reels")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pipeline.TTSConcurrency != 5 {
		t.Errorf("TTSConcurrency = %d", cfg.Pipeline.TTSConcurrency)
	}
	if !cfg.Pipeline.PartialReel {
		t.Error("PARTIAL_REEL override ignored")
	}
	if cfg.Cache.Dir != "/var/cache/reels" {
		t.Errorf("Cache.Dir = %q", cfg.Cache.Dir)
	}
}

func TestLoadClampsPollInterval(t *testing.T) {
	t.Setenv("AVATAR_POLL_INTERVAL_SECONDS", "1")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Avatar.PollInterval != 5*time.Second {
		t.Errorf("PollInterval = %v, want clamped to 5s", cfg.Avatar.PollInterval)
	}

	t.Setenv("AVATAR_POLL_INTERVAL_SECONDS", "300")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Avatar.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want clamped to 30s", cfg.Avatar.PollInterval)
	}
}

func TestLoadRejectsBadConcurrency(t *testing.T) {
	t.Setenv("VIDEO_CONCURRENCY", "0")
	if _, err := Load(); err == nil {
		t.Fatal("Load accepted zero video concurrency")
	}
}

func TestValidateProviders(t *testing.T) {
	cfg := &Config{}
	cfg.TTS.APIKey = "k1"
	if err := ValidateProviders(cfg); err == nil {
		t.Fatal("missing avatar key was accepted")
	}
	cfg.Avatar.APIKey = "k2"
	if err := ValidateProviders(cfg); err != nil {
		t.Fatalf("ValidateProviders returned error: %v", err)
	}
}

func TestLoadRequiresPublishCredentials(t *testing.T) {
	t.Setenv("PUBLISH_ENDPOINT", "minio.local:9000")
	if _, err := Load(); err == nil {
		t.Fatal("publish endpoint without credentials was accepted")
	}

	t.Setenv("PUBLISH_ACCESS_KEY", "ak")
	t.Setenv("PUBLISH_SECRET_KEY", "sk")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Publish.Bucket != "reels" {
		t.Errorf("Bucket = %q", cfg.Publish.Bucket)
	}
}
