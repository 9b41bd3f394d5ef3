// Package audiobuf defines the uniform in-memory audio representation
// shared by every stage of the pipeline: interleaved float32 samples in
// [-1, 1], a sample rate, and a channel count.
package audiobuf

import (
	"fmt"
	"math"
)

// Buffer is a block of interleaved float32 PCM.
type Buffer struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// NewSilence returns a zeroed mono buffer of the given duration.
func NewSilence(duration float64, sampleRate int) Buffer {
	n := int(math.Round(duration * float64(sampleRate)))
	if n < 0 {
		n = 0
	}
	return Buffer{
		Samples:    make([]float32, n),
		SampleRate: sampleRate,
		Channels:   1,
	}
}

// Validate checks the buffer's structural invariant: sample count must be
// an exact multiple of the channel count.
func (b Buffer) Validate() error {
	if b.Channels <= 0 {
		return fmt.Errorf("invalid channel count %d", b.Channels)
	}
	if b.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", b.SampleRate)
	}
	if len(b.Samples)%b.Channels != 0 {
		return fmt.Errorf("sample count %d is not a multiple of channel count %d", len(b.Samples), b.Channels)
	}
	return nil
}

// FrameCount returns the number of per-channel frames in the buffer.
func (b Buffer) FrameCount() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the buffer's length in seconds.
func (b Buffer) Duration() float64 {
	if b.SampleRate == 0 || b.Channels == 0 {
		return 0
	}
	return float64(b.FrameCount()) / float64(b.SampleRate)
}

// RMS returns the root-mean-square level of the buffer, across all channels.
func (b Buffer) RMS() float64 {
	if len(b.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range b.Samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(b.Samples)))
}

// Peak returns the maximum absolute sample value in the buffer.
func (b Buffer) Peak() float64 {
	var peak float64
	for _, s := range b.Samples {
		v := math.Abs(float64(s))
		if v > peak {
			peak = v
		}
	}
	return peak
}

// ToMono averages all channels down to a single channel. A mono buffer is
// returned unchanged.
func (b Buffer) ToMono() Buffer {
	if b.Channels == 1 {
		return b
	}

	frames := b.FrameCount()
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < b.Channels; c++ {
			sum += b.Samples[i*b.Channels+c]
		}
		out[i] = sum / float32(b.Channels)
	}

	return Buffer{Samples: out, SampleRate: b.SampleRate, Channels: 1}
}

// Clone returns a deep copy, so callers can mutate the result without
// affecting a shared cache entry.
func (b Buffer) Clone() Buffer {
	out := make([]float32, len(b.Samples))
	copy(out, b.Samples)
	return Buffer{Samples: out, SampleRate: b.SampleRate, Channels: b.Channels}
}

// Slice returns the frames in [start, end) as a new buffer sharing the same
// sample rate and channel count. Bounds are frame indices, not sample
// indices.
func (b Buffer) Slice(start, end int) Buffer {
	if start < 0 {
		start = 0
	}
	if end > b.FrameCount() {
		end = b.FrameCount()
	}
	if start >= end {
		return Buffer{SampleRate: b.SampleRate, Channels: b.Channels}
	}

	lo := start * b.Channels
	hi := end * b.Channels
	out := make([]float32, hi-lo)
	copy(out, b.Samples[lo:hi])
	return Buffer{Samples: out, SampleRate: b.SampleRate, Channels: b.Channels}
}

// Concat joins the given buffers end to end into a new buffer. All buffers
// must share sample rate and channel count.
func Concat(buffers ...Buffer) (Buffer, error) {
	if len(buffers) == 0 {
		return Buffer{}, nil
	}

	sr := buffers[0].SampleRate
	ch := buffers[0].Channels
	total := 0
	for _, buf := range buffers {
		if buf.SampleRate != sr || buf.Channels != ch {
			return Buffer{}, fmt.Errorf("cannot concat buffers with mismatched format (%d/%d vs %d/%d)", buf.SampleRate, buf.Channels, sr, ch)
		}
		total += len(buf.Samples)
	}

	out := make([]float32, 0, total)
	for _, buf := range buffers {
		out = append(out, buf.Samples...)
	}

	return Buffer{Samples: out, SampleRate: sr, Channels: ch}, nil
}

// PadOrTrim returns a buffer with exactly frameCount frames, padding with
// silence or truncating as needed.
func (b Buffer) PadOrTrim(frameCount int) Buffer {
	current := b.FrameCount()
	if current == frameCount {
		return b
	}

	if current > frameCount {
		return b.Slice(0, frameCount)
	}

	pad := make([]float32, (frameCount-current)*b.Channels)
	out := make([]float32, 0, frameCount*b.Channels)
	out = append(out, b.Samples...)
	out = append(out, pad...)
	return Buffer{Samples: out, SampleRate: b.SampleRate, Channels: b.Channels}
}

// LinearToDb converts a linear amplitude to decibels full-scale. Zero input
// maps to negative infinity.
func LinearToDb(linear float64) float64 {
	if linear <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(linear)
}

// DbToLinear converts decibels full-scale to a linear amplitude.
func DbToLinear(db float64) float64 {
	return math.Pow(10, db/20)
}
