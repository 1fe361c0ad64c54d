// Package profile loads the immutable voice and avatar profiles a pipeline
// run is parameterized by. Profile files are YAML documents; since YAML is a
// superset of JSON, plain JSON profiles load unchanged.
package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"reelforge/internal/fault"

	"gopkg.in/yaml.v3"
)

const (
	DefaultWidth       = 1080
	DefaultHeight      = 1920
	DefaultAspectRatio = "9:16"
	DefaultBackground  = "#000000"
	DefaultMaxTTSChars = 4500
)

// VoiceSettings are the synthesis parameters forwarded to the TTS provider.
type VoiceSettings struct {
	Stability       float64 `yaml:"stability" json:"stability"`
	SimilarityBoost float64 `yaml:"similarity_boost" json:"similarity_boost"`
	Style           float64 `yaml:"style" json:"style"`
	UseSpeakerBoost bool    `yaml:"use_speaker_boost" json:"use_speaker_boost"`
}

// Voice is a named TTS voice profile.
type Voice struct {
	Name            string            `yaml:"name" json:"name"`
	VoiceID         string            `yaml:"voice_id" json:"voice_id"`
	ModelID         string            `yaml:"model_id" json:"model_id"`
	Settings        VoiceSettings     `yaml:"settings" json:"settings"`
	NumberExpansion bool              `yaml:"number_expansion" json:"number_expansion"`
	Lexicon         map[string]string `yaml:"lexicon" json:"lexicon"`
	MaxTTSChars     int               `yaml:"max_tts_chars" json:"max_tts_chars"`
}

// Avatar is a named talking-avatar profile.
type Avatar struct {
	Name            string `yaml:"name" json:"name"`
	AvatarID        string `yaml:"avatar_id" json:"avatar_id"`
	Width           int    `yaml:"width" json:"width"`
	Height          int    `yaml:"height" json:"height"`
	AspectRatio     string `yaml:"aspect_ratio" json:"aspect_ratio"`
	BackgroundColor string `yaml:"background_color" json:"background_color"`
}

var hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// LoadVoice reads and validates a voice profile document.
func LoadVoice(path string) (Voice, error) {
	var v Voice
	data, err := os.ReadFile(path)
	if err != nil {
		return v, fault.Wrap(fault.InvalidInput, err, "failed to read voice profile")
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return v, fault.Wrap(fault.InvalidInput, err, "failed to parse voice profile")
	}
	if v.Name == "" {
		v.Name = profileName(path)
	}
	if v.MaxTTSChars <= 0 {
		v.MaxTTSChars = DefaultMaxTTSChars
	}
	if err := v.Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// Validate checks required fields and parameter ranges.
func (v Voice) Validate() error {
	if v.VoiceID == "" {
		return fault.New(fault.InvalidInput, "voice profile %q has no voice_id", v.Name)
	}
	if v.ModelID == "" {
		return fault.New(fault.InvalidInput, "voice profile %q has no model_id", v.Name)
	}
	for field, value := range map[string]float64{
		"stability":        v.Settings.Stability,
		"similarity_boost": v.Settings.SimilarityBoost,
		"style":            v.Settings.Style,
	} {
		if value < 0 || value > 1 {
			return fault.New(fault.InvalidInput, "voice profile %q: %s must be in [0,1], got %v", v.Name, field, value)
		}
	}
	return nil
}

// LoadAvatar reads and validates an avatar profile document, applying the
// portrait defaults for unset fields.
func LoadAvatar(path string) (Avatar, error) {
	var a Avatar
	data, err := os.ReadFile(path)
	if err != nil {
		return a, fault.Wrap(fault.InvalidInput, err, "failed to read avatar profile")
	}
	if err := yaml.Unmarshal(data, &a); err != nil {
		return a, fault.Wrap(fault.InvalidInput, err, "failed to parse avatar profile")
	}
	if a.Name == "" {
		a.Name = profileName(path)
	}
	a.ApplyDefaults()
	if err := a.Validate(); err != nil {
		return a, err
	}
	return a, nil
}

// ApplyDefaults fills unset output dimensions and background.
func (a *Avatar) ApplyDefaults() {
	if a.Width == 0 {
		a.Width = DefaultWidth
	}
	if a.Height == 0 {
		a.Height = DefaultHeight
	}
	if a.AspectRatio == "" {
		a.AspectRatio = DefaultAspectRatio
	}
	if a.BackgroundColor == "" {
		a.BackgroundColor = DefaultBackground
	}
}

// Validate checks required fields and the background color format.
func (a Avatar) Validate() error {
	if a.AvatarID == "" {
		return fault.New(fault.InvalidInput, "avatar profile %q has no avatar_id", a.Name)
	}
	if a.Width <= 0 || a.Height <= 0 {
		return fault.New(fault.InvalidInput, "avatar profile %q: dimensions must be positive, got %dx%d", a.Name, a.Width, a.Height)
	}
	if !hexColorRe.MatchString(a.BackgroundColor) {
		return fault.New(fault.InvalidInput, "avatar profile %q: background_color must be a #RRGGBB hex string, got %q", a.Name, a.BackgroundColor)
	}
	return nil
}

func profileName(path string) string {
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		return base
	}
	return name
}

// Dimension renders the output size as "WxH" for logging.
func (a Avatar) Dimension() string {
	return fmt.Sprintf("%dx%d", a.Width, a.Height)
}
