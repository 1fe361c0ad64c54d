// Package avatar drives the external talking-avatar provider: it uploads a
// segment's audio as a remote asset, submits a render job, polls the job
// until terminal and downloads the result.
package avatar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sync"
	"time"

	"reelforge/internal/config"
	"reelforge/internal/fault"
	"reelforge/internal/profile"
	"reelforge/internal/retry"

	"go.uber.org/zap"
)

// JobStatus is the provider-reported state of a render job.
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Client handles avatar provider API calls.
type Client struct {
	apiBase      string
	uploadBase   string
	apiKey       string
	client       *http.Client
	uploadClient *http.Client
	policy       retry.Policy
	pollInterval time.Duration
	jobDeadline  time.Duration
	logger       *zap.Logger

	// Remote asset ids are memoized per audio fingerprint for the life of
	// the client (one pipeline run); identical audio is never re-uploaded.
	mu     sync.Mutex
	assets map[string]string
}

// NewClient creates a new avatar video client.
func NewClient(cfg config.AvatarConfig, policy retry.Policy, logger *zap.Logger) *Client {
	return &Client{
		apiBase:      cfg.APIBase,
		uploadBase:   cfg.UploadBase,
		apiKey:       cfg.APIKey,
		client:       &http.Client{Timeout: cfg.RequestTimeout},
		uploadClient: &http.Client{Timeout: cfg.UploadTimeout},
		policy:       policy,
		pollInterval: cfg.PollInterval,
		jobDeadline:  cfg.JobDeadline,
		logger:       logger,
		assets:       make(map[string]string),
	}
}

// Submit uploads the audio as a remote asset and starts the render job,
// returning the provider job id. Submission is the only phase that competes
// for upload bandwidth; once the id is returned the job runs remotely.
func (c *Client) Submit(ctx context.Context, audio []byte, audioFingerprint string, av profile.Avatar) (string, error) {
	assetID, err := c.uploadAsset(ctx, audioFingerprint, audio)
	if err != nil {
		return "", err
	}
	return c.generate(ctx, assetID, av)
}

// Await polls the job until terminal and downloads the result mp4.
func (c *Client) Await(ctx context.Context, videoID string) ([]byte, error) {
	resultURL, err := c.pollJob(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return c.download(ctx, resultURL)
}

// Render produces the talking-avatar video for one audio artifact end to
// end: upload, generate, poll until terminal, download.
func (c *Client) Render(ctx context.Context, audio []byte, audioFingerprint string, av profile.Avatar) ([]byte, error) {
	videoID, err := c.Submit(ctx, audio, audioFingerprint, av)
	if err != nil {
		return nil, err
	}
	return c.Await(ctx, videoID)
}

type uploadResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// uploadAsset uploads the audio bytes as a multipart asset and returns the
// provider-assigned asset id, reusing a previous upload for the same
// fingerprint within this run.
func (c *Client) uploadAsset(ctx context.Context, fingerprint string, audio []byte) (string, error) {
	c.mu.Lock()
	if id, ok := c.assets[fingerprint]; ok {
		c.mu.Unlock()
		c.logger.Debug("Reusing remote audio asset",
			zap.String("fingerprint", fingerprint),
			zap.String("asset_id", id),
		)
		return id, nil
	}
	c.mu.Unlock()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", fingerprint+".mp3")
	if err != nil {
		return "", fmt.Errorf("failed to create multipart field: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write multipart body: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	uploadURL := c.uploadBase + "/asset"
	var assetID string
	err = c.policy.Do(ctx, c.logger, "avatar_upload", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(body.Bytes()))
		if err != nil {
			return fmt.Errorf("failed to create upload request: %w", err)
		}
		req.Header.Set("Content-Type", writer.FormDataContentType())
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.uploadClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.Wrap(fault.NetworkError, err, "asset upload failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fault.FromStatus(resp.StatusCode, string(respBody))
		}

		var parsed uploadResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fault.Wrap(fault.UploadFailed, err, "failed to decode upload response")
		}
		if parsed.Data.ID == "" {
			return fault.New(fault.UploadFailed, "upload response carries no asset id")
		}
		assetID = parsed.Data.ID
		return nil
	})
	if err != nil {
		if fault.Transient(err) || fault.Is(err, fault.BadRequest) {
			return "", fault.Wrap(fault.UploadFailed, err, "asset upload did not succeed")
		}
		return "", err
	}

	c.mu.Lock()
	c.assets[fingerprint] = assetID
	c.mu.Unlock()

	c.logger.Info("Audio asset uploaded",
		zap.String("fingerprint", fingerprint),
		zap.String("asset_id", assetID),
		zap.Int("bytes", len(audio)),
	)
	return assetID, nil
}

type generateRequest struct {
	VideoInputs []videoInput `json:"video_inputs"`
	Dimension   dimension    `json:"dimension"`
	AspectRatio string       `json:"aspect_ratio"`
	Test        bool         `json:"test"`
}

type videoInput struct {
	Character  character  `json:"character"`
	Voice      voice      `json:"voice"`
	Background background `json:"background"`
}

type character struct {
	Type        string `json:"type"`
	AvatarID    string `json:"avatar_id"`
	AvatarStyle string `json:"avatar_style"`
}

type voice struct {
	Type         string `json:"type"`
	AudioAssetID string `json:"audio_asset_id"`
}

type background struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type generateResponse struct {
	Data struct {
		VideoID string `json:"video_id"`
	} `json:"data"`
}

// generate submits the render job and returns the provider job id.
func (c *Client) generate(ctx context.Context, assetID string, av profile.Avatar) (string, error) {
	body, err := json.Marshal(generateRequest{
		VideoInputs: []videoInput{{
			Character:  character{Type: "avatar", AvatarID: av.AvatarID, AvatarStyle: "normal"},
			Voice:      voice{Type: "audio", AudioAssetID: assetID},
			Background: background{Type: "color", Value: av.BackgroundColor},
		}},
		Dimension:   dimension{Width: av.Width, Height: av.Height},
		AspectRatio: av.AspectRatio,
		Test:        false,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal generate request: %w", err)
	}

	generateURL := c.apiBase + "/video/generate"
	var videoID string
	err = c.policy.Do(ctx, c.logger, "avatar_generate", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, generateURL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create generate request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.Wrap(fault.NetworkError, err, "generate request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fault.FromStatus(resp.StatusCode, string(respBody))
		}

		var parsed generateResponse
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fault.Wrap(fault.GenerateFailed, err, "failed to decode generate response")
		}
		if parsed.Data.VideoID == "" {
			return fault.New(fault.GenerateFailed, "generate response carries no video id")
		}
		videoID = parsed.Data.VideoID
		return nil
	})
	if err != nil {
		if fault.Transient(err) || fault.Is(err, fault.BadRequest) {
			return "", fault.Wrap(fault.GenerateFailed, err, "video generation was not accepted")
		}
		return "", err
	}

	c.logger.Info("Video job submitted",
		zap.String("video_id", videoID),
		zap.String("avatar_id", av.AvatarID),
		zap.String("dimension", av.Dimension()),
	)
	return videoID, nil
}

type statusResponse struct {
	Data struct {
		Status   JobStatus `json:"status"`
		VideoURL string    `json:"video_url"`
		Error    string    `json:"error"`
	} `json:"data"`
}

// pollJob queries the job status at a fixed cadence until the job is
// terminal or the overall deadline elapses.
func (c *Client) pollJob(ctx context.Context, videoID string) (string, error) {
	deadline := time.Now().Add(c.jobDeadline)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, err := c.queryStatus(ctx, videoID)
		if err != nil {
			return "", err
		}

		switch status.Data.Status {
		case StatusCompleted:
			if status.Data.VideoURL == "" {
				return "", fault.New(fault.JobFailed, "job %s completed without a result URL", videoID)
			}
			return status.Data.VideoURL, nil
		case StatusFailed:
			return "", fault.New(fault.JobFailed, "%s", status.Data.Error)
		case StatusPending, StatusProcessing:
			// keep polling
		default:
			c.logger.Warn("Unknown job status",
				zap.String("video_id", videoID),
				zap.String("status", string(status.Data.Status)),
			)
		}

		if time.Now().After(deadline) {
			return "", fault.New(fault.Timeout, "job %s did not finish within %s", videoID, c.jobDeadline)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) queryStatus(ctx context.Context, videoID string) (*statusResponse, error) {
	statusURL := fmt.Sprintf("%s/video_status.get?video_id=%s", c.apiBase, url.QueryEscape(videoID))

	var parsed statusResponse
	err := c.policy.Do(ctx, c.logger, "avatar_status", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, statusURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create status request: %w", err)
		}
		req.Header.Set("X-Api-Key", c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.Wrap(fault.NetworkError, err, "status request failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fault.FromStatus(resp.StatusCode, string(respBody))
		}
		if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
			return fault.Wrap(fault.NetworkError, err, "failed to decode status response")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

// download fetches the completed job's result. The bytes are returned in
// memory; committing them to disk is the asset store's job, so a cancelled
// download never leaves a partial file behind.
func (c *Client) download(ctx context.Context, resultURL string) ([]byte, error) {
	var video []byte
	err := c.policy.Do(ctx, c.logger, "avatar_download", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, resultURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create download request: %w", err)
		}

		resp, err := c.uploadClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fault.Wrap(fault.NetworkError, err, "video download failed")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fault.FromStatus(resp.StatusCode, string(respBody))
		}

		video, err = io.ReadAll(resp.Body)
		if err != nil {
			return fault.Wrap(fault.NetworkError, err, "failed to read video body")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Video downloaded", zap.Int("bytes", len(video)))
	return video, nil
}
