// Package tempo implements time-stretching of an audio buffer by
// sample-rate-conversion resampling, and the silence-preserving adaptive
// stretch used to fit a synthesized segment to its caption window.
package tempo

import (
	"fmt"
	"math"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/silence"
)

const (
	// MinRatio and MaxRatio bound every stretch ratio, per spec §4.5.
	MinRatio = 0.5
	MaxRatio = 2.0

	// DefaultMinVoicedDuration is the floor below which adaptive stretch
	// falls back to a global stretch rather than collapsing speech.
	DefaultMinVoicedDuration = 0.1
)

func clampRatio(r float64) (clamped float64, wasClamped bool) {
	if r < MinRatio {
		return MinRatio, true
	}
	if r > MaxRatio {
		return MaxRatio, true
	}
	return r, false
}

// Stretch resamples buf so its length becomes round(N*ratio) frames, using
// kernel for interpolation. ratio is clamped to [MinRatio, MaxRatio]; the
// actually-applied ratio is returned alongside a flag reporting whether
// clamping occurred, so callers can surface a TempoClamped warning.
func Stretch(buf audiobuf.Buffer, ratio float64, kernel Kernel) (out audiobuf.Buffer, applied float64, clamped bool, err error) {
	if err := buf.Validate(); err != nil {
		return audiobuf.Buffer{}, 0, false, fmt.Errorf("invalid source buffer: %w", err)
	}

	applied, clamped = clampRatio(ratio)

	// A unity ratio is the identity transform: return buf untouched rather
	// than convolving it through kernel, so the identity law holds for
	// every kernel, not just ones whose impulse response happens to be
	// lossless at integral sample positions.
	if applied == 1.0 {
		samples := make([]float32, len(buf.Samples))
		copy(samples, buf.Samples)
		return audiobuf.Buffer{Samples: samples, SampleRate: buf.SampleRate, Channels: buf.Channels}, applied, clamped, nil
	}

	frames := buf.FrameCount()
	outFrames := int(math.Round(float64(frames) * applied))
	if outFrames < 0 {
		outFrames = 0
	}

	channels := buf.Channels
	samples := make([]float32, outFrames*channels)

	srcChannel := make([]float64, frames)
	for c := 0; c < channels; c++ {
		for i := 0; i < frames; i++ {
			srcChannel[i] = float64(buf.Samples[i*channels+c])
		}

		for i := 0; i < outFrames; i++ {
			pos := float64(i) / applied
			samples[i*channels+c] = float32(kernel.Interpolate(srcChannel, pos))
		}
	}

	return audiobuf.Buffer{Samples: samples, SampleRate: buf.SampleRate, Channels: channels}, applied, clamped, nil
}

// AdaptiveResult reports the outcome of an adaptive stretch, including
// whether the voiced-span stretch ratio had to be clamped (a TempoClamped
// warning condition) and whether the fallback global-stretch path was
// taken because the remaining voiced budget was too small.
type AdaptiveResult struct {
	Buffer                  audiobuf.Buffer
	Clamped                 bool
	FellBackToGlobalStretch bool
}

// AdaptiveStretch implements §4.5's silence-preserving adaptive stretch:
// silent spans are copied verbatim, and the duration delta between source
// and target is absorbed entirely into the voiced spans. spans must be
// sorted, non-overlapping, and expressed in buf's frame indices (as
// produced by silence.Detect on the same buffer). buf must be mono.
func AdaptiveStretch(buf audiobuf.Buffer, spans []silence.Span, targetDuration float64, kernel Kernel, minVoicedDuration float64) (AdaptiveResult, error) {
	if err := buf.Validate(); err != nil {
		return AdaptiveResult{}, fmt.Errorf("invalid source buffer: %w", err)
	}
	if buf.Channels != 1 {
		return AdaptiveResult{}, fmt.Errorf("adaptive stretch requires a mono buffer, got %d channels", buf.Channels)
	}

	sourceDuration := buf.Duration()
	totalSilence := silence.TotalDuration(spans, buf.SampleRate)
	voicedDuration := sourceDuration - totalSilence
	voicedTarget := targetDuration - totalSilence

	if voicedDuration <= 0 || voicedTarget <= minVoicedDuration {
		globalRatio := targetDuration / sourceDuration
		out, _, clamped, err := Stretch(buf, globalRatio, kernel)
		if err != nil {
			return AdaptiveResult{}, err
		}
		out = out.PadOrTrim(int(math.Round(targetDuration * float64(buf.SampleRate))))
		return AdaptiveResult{Buffer: out, Clamped: clamped, FellBackToGlobalStretch: true}, nil
	}

	voicedRatio, clamped := clampRatio(voicedTarget / voicedDuration)

	var parts []audiobuf.Buffer
	cursor := 0
	for _, span := range spans {
		if span.Start > cursor {
			voiced := buf.Slice(cursor, span.Start)
			stretched, _, _, err := Stretch(voiced, voicedRatio, kernel)
			if err != nil {
				return AdaptiveResult{}, err
			}
			parts = append(parts, stretched)
		}

		parts = append(parts, buf.Slice(span.Start, span.End))
		cursor = span.End
	}

	frames := buf.FrameCount()
	if cursor < frames {
		voiced := buf.Slice(cursor, frames)
		stretched, _, _, err := Stretch(voiced, voicedRatio, kernel)
		if err != nil {
			return AdaptiveResult{}, err
		}
		parts = append(parts, stretched)
	}

	assembled, err := audiobuf.Concat(parts...)
	if err != nil {
		return AdaptiveResult{}, fmt.Errorf("failed to assemble stretched spans: %w", err)
	}

	assembled = assembled.PadOrTrim(int(math.Round(targetDuration * float64(buf.SampleRate))))
	return AdaptiveResult{Buffer: assembled, Clamped: clamped}, nil
}
