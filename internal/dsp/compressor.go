package dsp

import (
	"math"

	"github.com/mattermost/sync-track/internal/audiobuf"
)

// CompressorOptions configures the feed-forward RMS compressor.
type CompressorOptions struct {
	ThresholdDb float64
	Ratio       float64
	AttackMs    float64
	ReleaseMs   float64
	MakeupDb    float64
}

// DefaultCompressorOptions returns the Sync Options defaults for
// compression_threshold_db/ratio/attack/release/makeup.
func DefaultCompressorOptions() CompressorOptions {
	return CompressorOptions{
		ThresholdDb: -20.0,
		Ratio:       4.0,
		AttackMs:    10.0,
		ReleaseMs:   100.0,
		MakeupDb:    6.0,
	}
}

// Compress applies feed-forward, hard-knee dynamic range compression in
// place, per §4.6: one-pole envelope smoothing of |x| with separate attack
// and release time constants, converted to dBFS, then reduced by the
// compressor ratio above threshold and lifted by the makeup gain.
func Compress(buf audiobuf.Buffer, opts CompressorOptions) {
	attackCoeff := timeConstant(opts.AttackMs, buf.SampleRate)
	releaseCoeff := timeConstant(opts.ReleaseMs, buf.SampleRate)

	var envelope float64
	for i, s := range buf.Samples {
		level := math.Abs(float64(s))
		if level > envelope {
			envelope = attackCoeff*envelope + (1-attackCoeff)*level
		} else {
			envelope = releaseCoeff*envelope + (1-releaseCoeff)*level
		}

		levelDb := audiobuf.LinearToDb(envelope)

		var gainReductionDb float64
		if levelDb > opts.ThresholdDb {
			gainReductionDb = -(levelDb - opts.ThresholdDb) * (1 - 1/opts.Ratio)
		}

		gain := audiobuf.DbToLinear(gainReductionDb + opts.MakeupDb)
		buf.Samples[i] = float32(float64(s) * gain)
	}
}

// timeConstant converts a time constant in milliseconds to a one-pole
// smoothing coefficient for the given sample rate.
func timeConstant(ms float64, sampleRate int) float64 {
	if ms <= 0 {
		return 0
	}
	return math.Exp(-1.0 / (ms / 1000 * float64(sampleRate)))
}
