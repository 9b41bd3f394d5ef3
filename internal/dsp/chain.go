// Package dsp implements the post-processing chain applied to the final
// assembled track: a feed-forward RMS compressor, a three-band RBJ-cookbook
// equalizer, and a peak normalizer.
package dsp

import "github.com/mattermost/sync-track/internal/audiobuf"

// ChainOptions toggles and configures each stage of the post-chain. Stages
// run, when enabled, in the fixed order compressor -> EQ -> normalizer.
type ChainOptions struct {
	ApplyCompression  bool
	ApplyEqualization bool
	NormalizeVolume   bool

	Compressor            CompressorOptions
	EQ                    EQOptions
	NormalizationTargetDb float64
}

// DefaultChainOptions returns the Sync Options defaults for the whole
// post-chain (normalize_volume on, compression and EQ off).
func DefaultChainOptions() ChainOptions {
	return ChainOptions{
		NormalizeVolume:       true,
		Compressor:            DefaultCompressorOptions(),
		EQ:                    DefaultEQOptions(),
		NormalizationTargetDb: DefaultNormalizationTargetDb,
	}
}

// Apply runs the enabled stages of the post-chain on buf in place.
func Apply(buf audiobuf.Buffer, opts ChainOptions) {
	if opts.ApplyCompression {
		Compress(buf, opts.Compressor)
	}
	if opts.ApplyEqualization {
		EQ(buf, opts.EQ)
	}
	if opts.NormalizeVolume {
		Normalize(buf, opts.NormalizationTargetDb)
	}
}
