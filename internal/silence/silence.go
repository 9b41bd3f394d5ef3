// Package silence detects silent spans inside an audio buffer via
// short-window RMS thresholding.
package silence

import (
	"math"

	"github.com/mattermost/sync-track/internal/audiobuf"
)

const (
	// DefaultWindowMs is the default sliding-window size for RMS analysis.
	DefaultWindowMs = 20.0
	// DefaultThresholdDb is the default RMS level below which a window is
	// classified as silent.
	DefaultThresholdDb = -40.0
	// DefaultMinSilenceMs is the shortest silence span that survives
	// merging; shorter runs are discarded as noise.
	DefaultMinSilenceMs = 80.0
)

// Span is a half-open sample-index interval classified as silent.
type Span struct {
	Start int
	End   int
}

// Duration returns the span's length in seconds for the given sample rate.
func (s Span) Duration(sampleRate int) float64 {
	return float64(s.End-s.Start) / float64(sampleRate)
}

// Options configures Detect.
type Options struct {
	WindowMs     float64
	ThresholdDb  float64
	MinSilenceMs float64
}

// DefaultOptions returns the spec's default detector parameters.
func DefaultOptions() Options {
	return Options{
		WindowMs:     DefaultWindowMs,
		ThresholdDb:  DefaultThresholdDb,
		MinSilenceMs: DefaultMinSilenceMs,
	}
}

// Detect walks buf in non-overlapping windows, classifies each as silent or
// voiced by RMS threshold, merges adjacent silent windows into spans, and
// discards spans shorter than MinSilenceMs. buf must be mono; callers
// should call Buffer.ToMono first.
func Detect(buf audiobuf.Buffer, opts Options) []Span {
	windowSize := int(math.Round(opts.WindowMs / 1000 * float64(buf.SampleRate)))
	if windowSize <= 0 {
		windowSize = 1
	}

	thresholdLinear := audiobuf.DbToLinear(opts.ThresholdDb)
	minSilenceSamples := int(math.Round(opts.MinSilenceMs / 1000 * float64(buf.SampleRate)))

	var spans []Span
	var current *Span

	frames := buf.FrameCount()
	for start := 0; start < frames; start += windowSize {
		end := start + windowSize
		if end > frames {
			end = frames
		}

		window := buf.Slice(start, end)
		if window.RMS() < thresholdLinear {
			if current == nil {
				current = &Span{Start: start, End: end}
			} else {
				current.End = end
			}
			continue
		}

		if current != nil {
			spans = append(spans, *current)
			current = nil
		}
	}
	if current != nil {
		spans = append(spans, *current)
	}

	filtered := spans[:0]
	for _, s := range spans {
		if s.End-s.Start >= minSilenceSamples {
			filtered = append(filtered, s)
		}
	}

	return filtered
}

// TotalDuration sums the duration of all spans, in seconds.
func TotalDuration(spans []Span, sampleRate int) float64 {
	var total float64
	for _, s := range spans {
		total += s.Duration(sampleRate)
	}
	return total
}
