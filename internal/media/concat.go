package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelforge/internal/fault"

	"go.uber.org/zap"
)

// Canonical output profile: portrait H.264 with AAC audio. Inputs that do
// not conform are transcoded before joining.
const (
	canonicalWidth      = 1080
	canonicalHeight     = 1920
	canonicalFPS        = 30
	canonicalPixFmt     = "yuv420p"
	canonicalVideoCodec = "h264"
	canonicalSampleRate = 48000
)

// Concat joins the inputs, in order, into a single mp4 at out with
// regenerated timestamps and one continuous audio track. The output
// duration equals the sum of the input durations within one frame.
func (t *Toolchain) Concat(ctx context.Context, inputs []string, out string) error {
	if len(inputs) == 0 {
		return fault.New(fault.MissingInput, "no input videos")
	}
	for _, input := range inputs {
		if _, err := os.Stat(input); err != nil {
			return fault.Wrap(fault.MissingInput, err, fmt.Sprintf("input %s is not readable", input))
		}
	}

	workDir, err := os.MkdirTemp(filepath.Dir(out), ".concat-*")
	if err != nil {
		return fmt.Errorf("failed to create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	prepared := make([]string, len(inputs))
	for i, input := range inputs {
		probe, err := t.Probe(ctx, input)
		if err != nil {
			return err
		}
		if !probe.HasVideo {
			return fault.New(fault.IncompatibleStreams, "input %s has no video stream", input)
		}
		if probe.AudioStreams == 0 {
			return fault.New(fault.IncompatibleStreams, "input %s has no audio stream", input)
		}

		if conforms(probe) {
			prepared[i] = input
			continue
		}

		t.logger.Info("Transcoding input to canonical profile",
			zap.String("input", input),
			zap.String("codec", probe.VideoCodec),
			zap.String("pix_fmt", probe.PixelFormat),
			zap.String("frame_rate", probe.FrameRate.String()),
		)
		transcoded := filepath.Join(workDir, fmt.Sprintf("norm_%03d.mp4", i))
		if err := t.transcode(ctx, input, transcoded); err != nil {
			return err
		}
		prepared[i] = transcoded
	}

	listPath := filepath.Join(workDir, "concat.txt")
	if err := writeConcatList(listPath, prepared); err != nil {
		return err
	}

	_, err = t.runner.Run(ctx, t.ffmpeg,
		"-f", "concat",
		"-safe", "0",
		"-fflags", "+genpts",
		"-i", listPath,
		"-c:v", "copy",
		"-af", "aresample=async=1:first_pts=0",
		"-c:a", "aac",
		"-ar", fmt.Sprintf("%d", canonicalSampleRate),
		"-b:a", "192k",
		"-avoid_negative_ts", "make_zero",
		"-movflags", "+faststart",
		"-y",
		out,
	)
	if err != nil {
		return fault.Wrap(fault.EncodeFailed, err, "ffmpeg concat failed")
	}

	stat, err := os.Stat(out)
	if err != nil {
		return fault.Wrap(fault.EncodeFailed, err, "concat produced no output")
	}
	if stat.Size() == 0 {
		return fault.New(fault.EncodeFailed, "concat output is empty")
	}

	t.logger.Info("Videos concatenated",
		zap.Int("inputs", len(inputs)),
		zap.String("output", out),
		zap.Int64("bytes", stat.Size()),
	)
	return nil
}

func conforms(p ProbeResult) bool {
	return p.VideoCodec == canonicalVideoCodec &&
		p.PixelFormat == canonicalPixFmt &&
		p.Width == canonicalWidth &&
		p.Height == canonicalHeight &&
		p.FrameRate.Float() == canonicalFPS &&
		p.AudioCodec == "aac" &&
		p.SampleRate == canonicalSampleRate
}

// transcode re-encodes an input to the canonical profile.
func (t *Toolchain) transcode(ctx context.Context, input, out string) error {
	scale := fmt.Sprintf(
		"scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2",
		canonicalWidth, canonicalHeight, canonicalWidth, canonicalHeight,
	)
	_, err := t.runner.Run(ctx, t.ffmpeg,
		"-i", input,
		"-vf", scale,
		"-c:v", "libx264",
		"-profile:v", "high",
		"-crf", "18",
		"-r", fmt.Sprintf("%d", canonicalFPS),
		"-pix_fmt", canonicalPixFmt,
		"-c:a", "aac",
		"-ar", fmt.Sprintf("%d", canonicalSampleRate),
		"-b:a", "192k",
		"-y",
		out,
	)
	if err != nil {
		return fault.Wrap(fault.EncodeFailed, err, "ffmpeg transcode failed")
	}
	return nil
}

// writeConcatList writes the demuxer list file. Single quotes in paths are
// escaped per the concat demuxer's quoting rules.
func writeConcatList(path string, inputs []string) error {
	var b strings.Builder
	for _, input := range inputs {
		abs, err := filepath.Abs(input)
		if err != nil {
			return fmt.Errorf("failed to resolve input path: %w", err)
		}
		escaped := strings.ReplaceAll(abs, "'", `'\''`)
		fmt.Fprintf(&b, "file '%s'\n", escaped)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write concat list: %w", err)
	}
	return nil
}
