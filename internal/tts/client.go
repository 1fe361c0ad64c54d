// Package tts synthesizes speech for one segment through the external
// text-to-speech provider.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"reelforge/internal/config"
	"reelforge/internal/fault"
	"reelforge/internal/profile"
	"reelforge/internal/retry"

	"go.uber.org/zap"
)

// Client handles TTS provider API calls.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	policy  retry.Policy
	logger  *zap.Logger
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// NewClient creates a new TTS client.
func NewClient(cfg config.TTSConfig, policy retry.Policy, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		policy: policy,
		logger: logger,
	}
}

// Synthesize requests one mp3 for the given normalized text under the voice
// profile. Rate limits and server errors are retried with backoff; any other
// failure surfaces immediately.
func (c *Client) Synthesize(ctx context.Context, text string, voice profile.Voice) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: voice.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       voice.Settings.Stability,
			SimilarityBoost: voice.Settings.SimilarityBoost,
			Style:           voice.Settings.Style,
			UseSpeakerBoost: voice.Settings.UseSpeakerBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/text-to-speech/%s", c.baseURL, voice.VoiceID)

	var audio []byte
	err = c.policy.Do(ctx, c.logger, "tts_synthesize", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")
		req.Header.Set("xi-api-key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.Wrap(fault.NetworkError, err, "TTS request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fault.FromStatus(resp.StatusCode, string(respBody))
		}

		audio, err = io.ReadAll(resp.Body)
		if err != nil {
			return fault.Wrap(fault.NetworkError, err, "failed to read audio response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("TTS synthesis completed",
		zap.String("voice_id", voice.VoiceID),
		zap.Int("text_chars", len(text)),
		zap.Int("audio_bytes", len(audio)),
	)
	return audio, nil
}
