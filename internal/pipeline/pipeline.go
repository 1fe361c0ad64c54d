// Package pipeline is the driver that turns one script into one reel:
// segment, normalize, synthesize speech, render avatar video and
// concatenate, reusing cached artifacts wherever fingerprints match.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"reelforge/internal/avatar"
	"reelforge/internal/config"
	"reelforge/internal/fingerprint"
	"reelforge/internal/ledger"
	"reelforge/internal/media"
	"reelforge/internal/normalize"
	"reelforge/internal/profile"
	"reelforge/internal/script"
	"reelforge/internal/store"
	"reelforge/internal/tts"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// TTSClient synthesizes one audio artifact per segment.
type TTSClient interface {
	Synthesize(ctx context.Context, text string, voice profile.Voice) ([]byte, error)
}

// AvatarClient starts render jobs and collects their results. Submission
// covers the audio upload and job creation; awaiting covers polling and
// download, which run remotely and are not bandwidth-bound.
type AvatarClient interface {
	Submit(ctx context.Context, audio []byte, audioFingerprint string, av profile.Avatar) (string, error)
	Await(ctx context.Context, videoID string) ([]byte, error)
}

// Media joins videos and inspects media files.
type Media interface {
	Concat(ctx context.Context, inputs []string, out string) error
	Probe(ctx context.Context, path string) (media.ProbeResult, error)
}

var (
	_ TTSClient    = (*tts.Client)(nil)
	_ AvatarClient = (*avatar.Client)(nil)
	_ Media        = (*media.Toolchain)(nil)
)

// Pipeline orchestrates one reel production run.
type Pipeline struct {
	cfg    *config.Config
	store  *store.Store
	tts    TTSClient
	avatar AvatarClient
	media  Media
	ledger *ledger.Ledger
	logger *zap.Logger
}

// New creates a pipeline. The ledger may be nil.
func New(cfg *config.Config, st *store.Store, tts TTSClient, av AvatarClient, md Media, lg *ledger.Ledger, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		cfg:    cfg,
		store:  st,
		tts:    tts,
		avatar: av,
		media:  md,
		ledger: lg,
		logger: logger,
	}
}

// Request parameterizes one run.
type Request struct {
	RunID      string
	Source     string
	Script     string
	Voice      profile.Voice
	Avatar     profile.Avatar
	OutputPath string
	DryRun     bool
}

// SegmentSummary is the per-segment structured status the driver reports.
type SegmentSummary struct {
	Ordinal      int     `json:"ordinal"`
	Kind         string  `json:"kind"`
	AudioCached  bool    `json:"audio_cached"`
	VideoCached  bool    `json:"video_cached"`
	AudioSeconds float64 `json:"audio_seconds,omitempty"`
	Status       string  `json:"status"`
	Error        string  `json:"error,omitempty"`
}

// Segment summary statuses.
const (
	StatusPlanned = "planned"
	StatusDone    = "done"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// Result is the outcome of a run. Segments are always populated, including
// on failure.
type Result struct {
	RunID      string           `json:"run_id"`
	OutputPath string           `json:"output_path,omitempty"`
	Duration   float64          `json:"duration_seconds,omitempty"`
	Segments   []SegmentSummary `json:"segments"`
}

type segmentWork struct {
	seg          script.Segment
	norm         string
	audioFP      string
	videoFP      string
	audioPath    string
	videoPath    string
	audioCached  bool
	videoCached  bool
	audioSeconds float64
	err          error
}

// Run executes the pipeline for one request.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	logger := p.logger.With(zap.String("run_id", req.RunID))

	segments, err := p.prepare(req)
	if err != nil {
		return nil, err
	}

	logger.Info("Pipeline run starting",
		zap.String("source", req.Source),
		zap.String("voice", req.Voice.Name),
		zap.String("avatar", req.Avatar.Name),
		zap.Int("segments", len(segments)),
		zap.Bool("dry_run", req.DryRun),
	)

	if p.ledger != nil {
		if err := p.ledger.StartRun(ctx, req.RunID, req.Source, req.Voice.Name, req.Avatar.Name); err != nil {
			logger.Warn("Failed to record run start", zap.Error(err))
		}
	}

	if req.DryRun {
		return p.finishDryRun(ctx, req, segments, logger)
	}

	p.produce(ctx, req, segments)

	result := &Result{RunID: req.RunID, Segments: p.summarize(ctx, req.RunID, segments, logger)}

	ready, firstErr := p.collect(segments)
	if firstErr != nil && (!p.cfg.Pipeline.PartialReel || len(ready) == 0) {
		p.finishRun(ctx, req.RunID, "failed", "", firstErr, logger)
		return result, firstErr
	}
	if firstErr != nil {
		logger.Warn("Producing reel from successful prefix",
			zap.Int("segments", len(ready)),
			zap.Error(firstErr),
		)
	}

	inputs := make([]string, len(ready))
	for i, w := range ready {
		inputs[i] = w.videoPath
	}

	concatCtx, cancel := context.WithTimeout(ctx, p.cfg.Media.ConcatTimeout)
	defer cancel()
	if err := p.media.Concat(concatCtx, inputs, req.OutputPath); err != nil {
		p.finishRun(ctx, req.RunID, "failed", "", err, logger)
		return result, err
	}

	if probe, err := p.media.Probe(ctx, req.OutputPath); err == nil {
		result.Duration = probe.Duration
	} else {
		logger.Warn("Failed to probe final reel", zap.Error(err))
	}
	result.OutputPath = req.OutputPath

	// A prefix reel gets its own terminal status so ledger queries can tell
	// complete reels from truncated ones.
	status := "succeeded"
	if firstErr != nil {
		status = "partial"
	}
	p.finishRun(ctx, req.RunID, status, req.OutputPath, firstErr, logger)
	logger.Info("Pipeline run finished",
		zap.String("output", req.OutputPath),
		zap.Float64("duration_seconds", result.Duration),
	)
	return result, nil
}

// prepare segments the script and normalizes every segment up front, so no
// network work starts for a script that cannot be fully synthesized.
func (p *Pipeline) prepare(req Request) ([]*segmentWork, error) {
	segs, err := script.Split(req.Script)
	if err != nil {
		return nil, err
	}

	work := make([]*segmentWork, len(segs))
	for i, seg := range segs {
		norm, err := normalizeSegment(seg, req.Voice)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}
		audioFP := fingerprint.Audio(norm, req.Voice)
		work[i] = &segmentWork{
			seg:     seg,
			norm:    norm,
			audioFP: audioFP,
			videoFP: fingerprint.Video(audioFP, req.Avatar),
		}
	}
	return work, nil
}

// produce runs synthesis and rendering for every segment. TTS and video
// work are bounded by their own concurrency limits; completion order is
// unconstrained because results land in per-segment slots.
func (p *Pipeline) produce(ctx context.Context, req Request, work []*segmentWork) {
	ttsSem := make(chan struct{}, p.cfg.Pipeline.TTSConcurrency)
	videoSem := make(chan struct{}, p.cfg.Pipeline.VideoConcurrency)

	g, groupCtx := errgroup.WithContext(ctx)
	for _, w := range work {
		w := w
		g.Go(func() error {
			w.err = p.processSegment(groupCtx, req, w, ttsSem, videoSem)
			if w.err != nil && !p.cfg.Pipeline.PartialReel {
				// Fail fast: cancel the rest of the group.
				return w.err
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) processSegment(ctx context.Context, req Request, w *segmentWork, ttsSem, videoSem chan struct{}) error {
	if err := acquire(ctx, ttsSem); err != nil {
		return err
	}
	audioCtx, cancel := context.WithTimeout(ctx, p.cfg.TTS.SegmentTimeout)
	path, cached, err := p.store.GetOrPutAudio(audioCtx, w.audioFP, func(ctx context.Context) ([]byte, error) {
		return p.tts.Synthesize(ctx, w.norm, req.Voice)
	})
	cancel()
	release(ttsSem)
	if err != nil {
		return fmt.Errorf("segment %d audio: %w", w.seg.Index, err)
	}
	w.audioPath, w.audioCached = path, cached
	if probe, err := p.media.Probe(ctx, w.audioPath); err == nil {
		w.audioSeconds = probe.Duration
	} else {
		p.logger.Warn("Failed to probe audio artifact",
			zap.Int("ordinal", w.seg.Index),
			zap.Error(err),
		)
	}

	// The video bound covers only the upload+generate phase: the slot is
	// released as soon as the job is submitted, so polling and download do
	// not block later submissions.
	if err := acquire(ctx, videoSem); err != nil {
		return err
	}
	videoSlotHeld := true
	releaseSlot := func() {
		if videoSlotHeld {
			videoSlotHeld = false
			release(videoSem)
		}
	}
	videoCtx, cancel := context.WithTimeout(ctx, p.cfg.Avatar.JobDeadline)
	path, cached, err = p.store.GetOrPutVideo(videoCtx, w.videoFP, func(ctx context.Context) ([]byte, error) {
		audio, err := os.ReadFile(w.audioPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read cached audio: %w", err)
		}
		jobID, err := p.avatar.Submit(ctx, audio, w.audioFP, req.Avatar)
		releaseSlot()
		if err != nil {
			return nil, err
		}
		return p.avatar.Await(ctx, jobID)
	})
	cancel()
	releaseSlot()
	if err != nil {
		return fmt.Errorf("segment %d video: %w", w.seg.Index, err)
	}
	w.videoPath, w.videoCached = path, cached

	p.logger.Info("Segment ready",
		zap.Int("ordinal", w.seg.Index),
		zap.String("kind", string(w.seg.Kind)),
		zap.Bool("audio_cached", w.audioCached),
		zap.Bool("video_cached", w.videoCached),
	)
	return nil
}

// collect returns the contiguous prefix of successful segments, in ordinal
// order, and the lowest-ordinal error.
func (p *Pipeline) collect(work []*segmentWork) ([]*segmentWork, error) {
	var ready []*segmentWork
	var firstErr error
	for _, w := range work {
		if w.err != nil {
			firstErr = w.err
			break
		}
		ready = append(ready, w)
	}
	if firstErr == nil {
		return ready, nil
	}
	// Surface the lowest-ordinal terminal fault, not a cancellation caused
	// by it.
	for _, w := range work {
		if w.err != nil && !errors.Is(w.err, context.Canceled) {
			return ready, w.err
		}
	}
	return ready, firstErr
}

func (p *Pipeline) summarize(ctx context.Context, runID string, work []*segmentWork, logger *zap.Logger) []SegmentSummary {
	summaries := make([]SegmentSummary, len(work))
	for i, w := range work {
		s := SegmentSummary{
			Ordinal:      w.seg.Index,
			Kind:         string(w.seg.Kind),
			AudioCached:  w.audioCached,
			VideoCached:  w.videoCached,
			AudioSeconds: w.audioSeconds,
			Status:       StatusDone,
		}
		switch {
		case w.err == nil:
		case errors.Is(w.err, context.Canceled):
			s.Status = StatusSkipped
		default:
			s.Status = StatusFailed
			s.Error = w.err.Error()
		}
		summaries[i] = s

		if p.ledger != nil {
			if err := p.ledger.RecordSegment(ctx, runID, ledger.SegmentRecord{
				Ordinal:      s.Ordinal,
				Kind:         s.Kind,
				AudioCached:  s.AudioCached,
				VideoCached:  s.VideoCached,
				AudioSeconds: s.AudioSeconds,
				Status:       s.Status,
				Error:        s.Error,
			}); err != nil {
				logger.Warn("Failed to record segment", zap.Int("ordinal", s.Ordinal), zap.Error(err))
			}
		}
	}
	return summaries
}

func (p *Pipeline) finishDryRun(ctx context.Context, req Request, work []*segmentWork, logger *zap.Logger) (*Result, error) {
	result := &Result{RunID: req.RunID, Segments: make([]SegmentSummary, len(work))}
	for i, w := range work {
		result.Segments[i] = SegmentSummary{
			Ordinal:     w.seg.Index,
			Kind:        string(w.seg.Kind),
			AudioCached: fileExists(p.store.AudioPath(w.audioFP)),
			VideoCached: fileExists(p.store.VideoPath(w.videoFP)),
			Status:      StatusPlanned,
		}
	}
	p.finishRun(ctx, req.RunID, "dry_run", "", nil, logger)
	return result, nil
}

func (p *Pipeline) finishRun(ctx context.Context, runID, status, outputPath string, runErr error, logger *zap.Logger) {
	p.store.Sweep()
	if p.ledger == nil {
		return
	}
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}
	// Use a fresh context so a cancelled run still gets its terminal row.
	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := p.ledger.FinishRun(recordCtx, runID, status, outputPath, errMsg); err != nil {
		logger.Warn("Failed to record run finish", zap.Error(err))
	}
}

func normalizeSegment(seg script.Segment, voice profile.Voice) (string, error) {
	return normalize.Normalize(seg.Text, voice)
}

func acquire(ctx context.Context, sem chan struct{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func release(sem chan struct{}) {
	<-sem
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
