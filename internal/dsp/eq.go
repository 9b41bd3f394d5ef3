package dsp

import "github.com/mattermost/sync-track/internal/audiobuf"

// shelfQ is the fixed Q used for both shelf filters, per spec §4.6.
const shelfQ = 0.707

// EQOptions configures the three-band equalizer.
type EQOptions struct {
	LowGainDb  float64
	MidGainDb  float64
	HighGainDb float64
	LowFreqHz  float64
	HighFreqHz float64
}

// DefaultEQOptions returns the Sync Options defaults for the EQ band.
func DefaultEQOptions() EQOptions {
	return EQOptions{
		LowGainDb:  3.0,
		MidGainDb:  0.0,
		HighGainDb: 2.0,
		LowFreqHz:  300.0,
		HighFreqHz: 3000.0,
	}
}

// EQ applies the three-band equalizer in place: a low-shelf and a
// high-shelf biquad run in parallel against the dry signal, each
// contributing only its deviation from unity; the remainder (mids) is the
// dry signal scaled by the mid gain. Because both shelf filters are flat
// (unity) outside their own band, this reduces to a parallel-subtractive
// sum rather than a series cascade.
func EQ(buf audiobuf.Buffer, opts EQOptions) {
	low := newLowShelf(opts.LowFreqHz, float64(buf.SampleRate), opts.LowGainDb, shelfQ)
	high := newHighShelf(opts.HighFreqHz, float64(buf.SampleRate), opts.HighGainDb, shelfQ)
	midGain := audiobuf.DbToLinear(opts.MidGainDb)

	for i, s := range buf.Samples {
		x := float64(s)
		lowOut := low.process(x)
		highOut := high.process(x)

		y := midGain*x + (lowOut - x) + (highOut - x)
		buf.Samples[i] = float32(y)
	}
}
