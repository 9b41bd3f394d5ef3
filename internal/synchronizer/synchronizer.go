// Package synchronizer orchestrates the full pipeline described in the
// system overview: re-check the ordering of already-parsed captions, fetch
// synthesized speech per cue, time-stretch each segment to its caption
// window, assemble the track with silence gaps, run the DSP post-chain, and
// pad/trim to the target video duration. It generalizes the teacher's
// Transcriber lifecycle (New/Start/Done/Err with a sync.Once-guarded
// doneCh) to a single batch run instead of a live call session.
package synchronizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/caption"
	"github.com/mattermost/sync-track/internal/dsp"
	"github.com/mattermost/sync-track/internal/progress"
	"github.com/mattermost/sync-track/internal/silence"
	"github.com/mattermost/sync-track/internal/synerr"
	"github.com/mattermost/sync-track/internal/tempo"
	"github.com/mattermost/sync-track/internal/tts"
)

// Fetcher is the subset of *tts.Fetcher the synchronizer depends on, so
// tests can substitute a fake.
type Fetcher interface {
	Fetch(ctx context.Context, req tts.Request) (audiobuf.Buffer, error)
}

// Warning reports a non-fatal condition surfaced during a run: a clamped
// tempo ratio, a fallback to global stretch, or (in best-effort mode) a
// cue whose TTS fetch failed and was replaced with silence.
type Warning struct {
	CueIndex int
	Message  string
}

// Result is the output of a completed run.
type Result struct {
	Track    audiobuf.Buffer
	Warnings []Warning
}

// Synchronizer runs one synchronization job: a fixed set of captions
// against a fixed target duration. It is single-use, mirroring the
// teacher's Transcriber: construct, Start, wait on Done, read Err/Result.
type Synchronizer struct {
	opts           Options
	fetcher        Fetcher
	captions       []caption.Cue
	targetDuration float64
	tracker        *progress.Tracker

	errCh    chan error
	doneCh   chan struct{}
	doneOnce sync.Once

	mu     sync.Mutex
	result Result
}

// New builds a Synchronizer for one run. opts is validated and defaulted
// by the caller before construction (see Options.SetDefaults/IsValid).
func New(opts Options, fetcher Fetcher, captions []caption.Cue, targetDuration float64, onProgress progress.Callback) *Synchronizer {
	return &Synchronizer{
		opts:           opts,
		fetcher:        fetcher,
		captions:       captions,
		targetDuration: targetDuration,
		tracker:        progress.NewTracker(onProgress, progress.DefaultPhaseWeights()),
		errCh:          make(chan error, 1),
		doneCh:         make(chan struct{}),
	}
}

// Start runs the pipeline in the calling goroutine's background via an
// internal goroutine, returning immediately; callers wait on Done().
func (s *Synchronizer) Start(ctx context.Context) {
	go func() {
		res, err := s.run(ctx)
		s.mu.Lock()
		s.result = res
		s.mu.Unlock()
		s.finish(err)
	}()
}

// Run executes the pipeline synchronously and returns its result, for
// callers that don't need the async Start/Done split.
func (s *Synchronizer) Run(ctx context.Context) (Result, error) {
	res, err := s.run(ctx)
	s.mu.Lock()
	s.result = res
	s.mu.Unlock()
	s.finish(err)
	return res, err
}

func (s *Synchronizer) finish(err error) {
	s.doneOnce.Do(func() {
		s.errCh <- err
		close(s.doneCh)
	})
}

// Done returns a channel closed once the run has finished, successfully or
// not.
func (s *Synchronizer) Done() <-chan struct{} {
	return s.doneCh
}

// Err returns the run's terminal error, or nil if it hasn't finished yet
// or finished successfully.
func (s *Synchronizer) Err() error {
	select {
	case err := <-s.errCh:
		s.errCh <- err
		return err
	default:
		return nil
	}
}

// Result returns the last completed run's output. Safe to call only after
// Done() has been closed.
func (s *Synchronizer) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

type segment struct {
	index  int
	cue    caption.Cue
	buffer audiobuf.Buffer
	err    error
}

func (s *Synchronizer) run(ctx context.Context) (Result, error) {
	if err := s.opts.IsValid(); err != nil {
		return Result{}, &synerr.InvalidOption{Key: "options", Reason: err.Error()}
	}

	// Parsing: the caller already parsed the VTT document (caption.Parse);
	// here we only validate cue ordering one more time, since assembly
	// depends on it.
	s.tracker.Report(progress.PhaseParsing, 0)
	for i := 1; i < len(s.captions); i++ {
		if s.captions[i].Start < s.captions[i-1].End {
			return Result{}, &synerr.Assembly{CueIndex: i, Reason: "cues are not monotonically ordered"}
		}
	}
	s.tracker.Report(progress.PhaseParsing, 1)

	segments, warnings, err := s.fetchSegments(ctx)
	if err != nil {
		return Result{}, err
	}

	stretched, stretchWarnings, err := s.stretchSegments(ctx, segments)
	if err != nil {
		return Result{}, err
	}
	warnings = append(warnings, stretchWarnings...)

	track, err := s.assemble(stretched)
	if err != nil {
		return Result{}, err
	}

	s.tracker.Report(progress.PhasePostProcessing, 0)
	dsp.Apply(track, s.chainOptions())
	s.tracker.Report(progress.PhasePostProcessing, 1)

	s.tracker.Report(progress.PhaseFinalizing, 0)
	targetFrames := int(math.Round(s.targetDuration * float64(s.opts.SampleRate)))
	track = track.PadOrTrim(targetFrames)
	s.tracker.Report(progress.PhaseFinalizing, 1)
	s.tracker.Done()

	return Result{Track: track, Warnings: warnings}, nil
}

// fetchSegments retrieves synthesized speech for every cue with bounded
// concurrency via errgroup, preserving input order in the returned slice.
func (s *Synchronizer) fetchSegments(ctx context.Context) ([]segment, []Warning, error) {
	s.tracker.Report(progress.PhaseFetching, 0)

	segments := make([]segment, len(s.captions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var completed int
	var mu sync.Mutex

	for i, cue := range s.captions {
		i, cue := i, cue
		g.Go(func() error {
			req := tts.Request{
				Text:       cue.Text,
				Voice:      s.opts.Voice,
				Model:      s.opts.TtsModel,
				Format:     s.opts.TtsFormat,
				SampleRate: s.opts.SampleRate,
			}

			buf, err := s.fetcher.Fetch(gctx, req)

			mu.Lock()
			completed++
			s.tracker.Report(progress.PhaseFetching, float32(completed)/float32(len(s.captions)))
			mu.Unlock()

			segments[i] = segment{index: i, cue: cue, buffer: buf, err: err}
			if err != nil && !s.opts.BestEffort {
				return fmt.Errorf("cue %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	for i := range segments {
		if segments[i].err != nil {
			slog.Warn("tts fetch failed, substituting silence", slog.Int("cue", i), slog.String("err", segments[i].err.Error()))
			segments[i].buffer = audiobuf.NewSilence(segments[i].cue.Duration(), s.opts.SampleRate)
			warnings = append(warnings, Warning{CueIndex: i, Message: fmt.Sprintf("tts fetch failed, substituted silence: %v", segments[i].err)})
		}
	}

	s.tracker.Report(progress.PhaseFetching, 1)
	return segments, warnings, nil
}

// stretchSegments time-stretches each segment to fit its caption window,
// fanning the independent per-segment work out across goroutines.
func (s *Synchronizer) stretchSegments(ctx context.Context, segments []segment) ([]audiobuf.Buffer, []Warning, error) {
	s.tracker.Report(progress.PhaseStretching, 0)

	kernel := tempo.NewKernel(s.opts.TempoAlgorithm)
	out := make([]audiobuf.Buffer, len(segments))
	warningsPerSeg := make([][]Warning, len(segments))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	var completed int
	var mu sync.Mutex

	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			if ctx.Err() != nil {
				return &synerr.Cancelled{Phase: string(progress.PhaseStretching)}
			}

			mono := seg.buffer.ToMono()
			target := seg.cue.Duration()

			var result tempo.AdaptiveResult
			var err error
			if s.opts.PreservePauses {
				spans := silence.Detect(mono, silence.DefaultOptions())
				result, err = tempo.AdaptiveStretch(mono, spans, target, kernel, tempo.DefaultMinVoicedDuration)
			} else {
				var stretched audiobuf.Buffer
				var clamped bool
				stretched, _, clamped, err = tempo.Stretch(mono, target/mono.Duration(), kernel)
				if err == nil {
					frames := int(math.Round(target * float64(mono.SampleRate)))
					stretched = stretched.PadOrTrim(frames)
				}
				result = tempo.AdaptiveResult{Buffer: stretched, Clamped: clamped}
			}
			if err != nil {
				return &synerr.AudioResample{Reason: fmt.Sprintf("cue %d", i), Err: err}
			}

			var warnings []Warning
			if result.Clamped {
				warnings = append(warnings, Warning{CueIndex: i, Message: "tempo ratio clamped to allowed range"})
			}
			if result.FellBackToGlobalStretch {
				warnings = append(warnings, Warning{CueIndex: i, Message: "voiced budget too small, fell back to global stretch"})
			}

			out[i] = result.Buffer
			warningsPerSeg[i] = warnings

			mu.Lock()
			completed++
			s.tracker.Report(progress.PhaseStretching, float32(completed)/float32(len(segments)))
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var warnings []Warning
	for _, w := range warningsPerSeg {
		warnings = append(warnings, w...)
	}

	s.tracker.Report(progress.PhaseStretching, 1)
	return out, warnings, nil
}

// assemble concatenates stretched segments in cue order, inserting silence
// for the gap between the end of one cue and the start of the next.
func (s *Synchronizer) assemble(stretched []audiobuf.Buffer) (audiobuf.Buffer, error) {
	s.tracker.Report(progress.PhaseAssembling, 0)

	var parts []audiobuf.Buffer
	cursor := 0.0

	for i, seg := range stretched {
		cue := s.captions[i]
		gap := cue.Start - cursor
		if gap < 0 {
			return audiobuf.Buffer{}, &synerr.Assembly{CueIndex: i, Reason: fmt.Sprintf("negative gap of %.3fs before cue", gap)}
		}
		if gap > 0 {
			parts = append(parts, audiobuf.NewSilence(gap, s.opts.SampleRate))
		}

		parts = append(parts, seg)
		cursor = cue.End

		s.tracker.Report(progress.PhaseAssembling, float32(i+1)/float32(len(stretched)))
	}

	track, err := audiobuf.Concat(parts...)
	if err != nil {
		return audiobuf.Buffer{}, fmt.Errorf("failed to assemble track: %w", err)
	}

	s.tracker.Report(progress.PhaseAssembling, 1)
	return track, nil
}

func (s *Synchronizer) chainOptions() dsp.ChainOptions {
	return dsp.ChainOptions{
		ApplyCompression:  s.opts.ApplyCompression,
		ApplyEqualization: s.opts.ApplyEqualization,
		NormalizeVolume:   s.opts.NormalizeVolume,
		Compressor: dsp.CompressorOptions{
			ThresholdDb: s.opts.CompressionThresholdDb,
			Ratio:       s.opts.CompressionRatio,
			AttackMs:    s.opts.CompressionAttackMs,
			ReleaseMs:   s.opts.CompressionReleaseMs,
			MakeupDb:    s.opts.CompressionMakeupDb,
		},
		EQ: dsp.EQOptions{
			LowGainDb:  s.opts.EqLowGainDb,
			MidGainDb:  s.opts.EqMidGainDb,
			HighGainDb: s.opts.EqHighGainDb,
			LowFreqHz:  s.opts.EqLowFreqHz,
			HighFreqHz: s.opts.EqHighFreqHz,
		},
		NormalizationTargetDb: s.opts.NormalizationTargetDb,
	}
}
