package dsp

import "github.com/mattermost/sync-track/internal/audiobuf"

// DefaultNormalizationTargetDb is the Sync Options default for
// normalization_target_db.
const DefaultNormalizationTargetDb = -3.0

// Normalize scales buf in place so its peak absolute sample equals
// 10^(targetDb/20). A buffer that is entirely silent is left unchanged.
func Normalize(buf audiobuf.Buffer, targetDb float64) {
	peak := buf.Peak()
	if peak <= 0 {
		return
	}

	gain := audiobuf.DbToLinear(targetDb) / peak
	for i, s := range buf.Samples {
		buf.Samples[i] = float32(float64(s) * gain)
	}
}
