// Package media wraps the local ffmpeg/ffprobe toolchain. It is the only
// place in the repository that shells out; everything else talks to the
// Toolchain through its interface so tests can substitute a fake.
package media

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"reelforge/internal/config"
	"reelforge/internal/fault"

	"go.uber.org/zap"
)

// Runner executes a toolchain binary and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s failed: %w: %s", name, err, tail(exitErr.Stderr, 400))
		}
		return nil, fmt.Errorf("%s failed: %w", name, err)
	}
	return out, nil
}

func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}

// ProbeResult summarizes the streams of a media file.
type ProbeResult struct {
	Duration     float64
	Width        int
	Height       int
	VideoCodec   string
	PixelFormat  string
	FrameRate    Rational
	AudioCodec   string
	SampleRate   int
	AudioStreams int
	HasVideo     bool
}

// Toolchain invokes ffmpeg and ffprobe.
type Toolchain struct {
	ffmpeg  string
	ffprobe string
	runner  Runner
	logger  *zap.Logger
}

// NewToolchain creates a toolchain using the configured binary paths.
func NewToolchain(cfg config.MediaConfig, logger *zap.Logger) *Toolchain {
	return &Toolchain{
		ffmpeg:  cfg.FFmpegPath,
		ffprobe: cfg.FFprobePath,
		runner:  execRunner{},
		logger:  logger,
	}
}

// NewToolchainWithRunner substitutes the process runner, for tests.
func NewToolchainWithRunner(cfg config.MediaConfig, runner Runner, logger *zap.Logger) *Toolchain {
	t := NewToolchain(cfg, logger)
	t.runner = runner
	return t
}

type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
	Streams []struct {
		CodecType  string `json:"codec_type"`
		CodecName  string `json:"codec_name"`
		Width      int    `json:"width"`
		Height     int    `json:"height"`
		PixFmt     string `json:"pix_fmt"`
		RFrameRate string `json:"r_frame_rate"`
		SampleRate string `json:"sample_rate"`
	} `json:"streams"`
}

// Probe inspects a media file with ffprobe.
func (t *Toolchain) Probe(ctx context.Context, path string) (ProbeResult, error) {
	out, err := t.runner.Run(ctx, t.ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return ProbeResult{}, fault.Wrap(fault.EncodeFailed, err, "ffprobe failed")
	}

	var parsed ffprobeOutput
	if err := json.Unmarshal(out, &parsed); err != nil {
		return ProbeResult{}, fault.Wrap(fault.EncodeFailed, err, "failed to parse ffprobe output")
	}

	var result ProbeResult
	if parsed.Format.Duration != "" {
		result.Duration, err = strconv.ParseFloat(parsed.Format.Duration, 64)
		if err != nil {
			return ProbeResult{}, fault.Wrap(fault.EncodeFailed, err, "invalid duration in ffprobe output")
		}
	}

	for _, stream := range parsed.Streams {
		switch stream.CodecType {
		case "video":
			result.HasVideo = true
			result.VideoCodec = stream.CodecName
			result.Width = stream.Width
			result.Height = stream.Height
			result.PixelFormat = stream.PixFmt
			if stream.RFrameRate != "" {
				rate, err := ParseRational(stream.RFrameRate)
				if err != nil {
					return ProbeResult{}, fault.Wrap(fault.EncodeFailed, err, "invalid frame rate in ffprobe output")
				}
				result.FrameRate = rate
			}
		case "audio":
			result.AudioStreams++
			result.AudioCodec = stream.CodecName
			if stream.SampleRate != "" {
				rate, err := strconv.Atoi(stream.SampleRate)
				if err != nil {
					return ProbeResult{}, fault.Wrap(fault.EncodeFailed, err, "invalid sample rate in ffprobe output")
				}
				result.SampleRate = rate
			}
		}
	}
	return result, nil
}

// Duration returns the duration of a media file in seconds.
func (t *Toolchain) Duration(ctx context.Context, path string) (float64, error) {
	result, err := t.Probe(ctx, path)
	if err != nil {
		return 0, err
	}
	return result.Duration, nil
}
