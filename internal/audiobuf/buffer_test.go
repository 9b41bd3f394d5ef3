package audiobuf

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBufferDuration(t *testing.T) {
	b := Buffer{Samples: make([]float32, 44100*2), SampleRate: 44100, Channels: 2}
	require.InDelta(t, 1.0, b.Duration(), 1e-9)
}

func TestNewSilence(t *testing.T) {
	b := NewSilence(0.5, 44100)
	require.Equal(t, 22050, b.FrameCount())
	require.Equal(t, 1, b.Channels)
	require.Equal(t, 0.0, b.RMS())
	require.Equal(t, 0.0, b.Peak())
}

func TestValidate(t *testing.T) {
	tcs := []struct {
		name        string
		buf         Buffer
		expectError bool
	}{
		{name: "valid mono", buf: Buffer{Samples: make([]float32, 10), SampleRate: 44100, Channels: 1}},
		{name: "valid stereo", buf: Buffer{Samples: make([]float32, 10), SampleRate: 44100, Channels: 2}},
		{name: "bad channel count", buf: Buffer{Samples: make([]float32, 10), SampleRate: 44100, Channels: 0}, expectError: true},
		{name: "bad sample rate", buf: Buffer{Samples: make([]float32, 10), SampleRate: 0, Channels: 1}, expectError: true},
		{name: "misaligned samples", buf: Buffer{Samples: make([]float32, 9), SampleRate: 44100, Channels: 2}, expectError: true},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.buf.Validate()
			if tc.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestToMono(t *testing.T) {
	stereo := Buffer{Samples: []float32{1, -1, 0.5, 0.5}, SampleRate: 44100, Channels: 2}
	mono := stereo.ToMono()
	require.Equal(t, 1, mono.Channels)
	require.Equal(t, []float32{0, 0.5}, mono.Samples)

	alreadyMono := Buffer{Samples: []float32{1, 2, 3}, SampleRate: 44100, Channels: 1}
	require.Equal(t, alreadyMono, alreadyMono.ToMono())
}

func TestRMSAndPeak(t *testing.T) {
	b := Buffer{Samples: []float32{1, -1, 1, -1}, SampleRate: 44100, Channels: 1}
	require.InDelta(t, 1.0, b.RMS(), 1e-9)
	require.InDelta(t, 1.0, b.Peak(), 1e-9)
}

func TestClone(t *testing.T) {
	b := Buffer{Samples: []float32{1, 2, 3}, SampleRate: 44100, Channels: 1}
	c := b.Clone()
	c.Samples[0] = 99
	require.Equal(t, float32(1), b.Samples[0])
}

func TestSlice(t *testing.T) {
	b := Buffer{Samples: []float32{0, 1, 2, 3, 4, 5}, SampleRate: 44100, Channels: 2}
	s := b.Slice(1, 2)
	require.Equal(t, []float32{2, 3}, s.Samples)

	empty := b.Slice(2, 1)
	require.Empty(t, empty.Samples)

	clamped := b.Slice(0, 100)
	require.Equal(t, b.Samples, clamped.Samples)
}

func TestConcat(t *testing.T) {
	a := Buffer{Samples: []float32{1, 2}, SampleRate: 44100, Channels: 1}
	b := Buffer{Samples: []float32{3, 4}, SampleRate: 44100, Channels: 1}
	out, err := Concat(a, b)
	require.NoError(t, err)
	require.Equal(t, []float32{1, 2, 3, 4}, out.Samples)

	mismatched := Buffer{Samples: []float32{1}, SampleRate: 22050, Channels: 1}
	_, err = Concat(a, mismatched)
	require.Error(t, err)
}

func TestPadOrTrim(t *testing.T) {
	b := Buffer{Samples: []float32{1, 2, 3}, SampleRate: 44100, Channels: 1}

	padded := b.PadOrTrim(5)
	require.Equal(t, []float32{1, 2, 3, 0, 0}, padded.Samples)

	trimmed := b.PadOrTrim(2)
	require.Equal(t, []float32{1, 2}, trimmed.Samples)

	same := b.PadOrTrim(3)
	require.Equal(t, b.Samples, same.Samples)
}

func TestDbConversion(t *testing.T) {
	require.InDelta(t, -3.0103, LinearToDb(DbToLinear(-3.0103)), 1e-3)
	require.InDelta(t, 1.0, DbToLinear(0), 1e-9)
}
