// Package config loads synchronizer.Options from a YAML file and/or the
// process environment, generalizing the teacher's FromEnv/ToEnv
// CallTranscriberConfig convention to a viper-backed loader that also
// accepts a config file (cmd/synctrack's --config flag).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/mattermost/sync-track/internal/synchronizer"
	"github.com/mattermost/sync-track/internal/tempo"
	"github.com/mattermost/sync-track/internal/tts"
)

// Load reads Options from, in increasing priority order: built-in
// defaults, the YAML file at path (if non-empty and present), then
// SYNCTRACK_*-prefixed environment variables. The result is validated
// before being returned.
func Load(path string) (synchronizer.Options, error) {
	v := viper.New()
	v.SetEnvPrefix("synctrack")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range synchronizer.NewDefaultOptions().ToMap() {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return synchronizer.Options{}, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	for key := range synchronizer.NewDefaultOptions().ToMap() {
		if err := v.BindEnv(key); err != nil {
			return synchronizer.Options{}, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	algo, err := tempo.ParseKernelType(v.GetString("tempo_algorithm"))
	if err != nil {
		return synchronizer.Options{}, fmt.Errorf("invalid tempo_algorithm: %w", err)
	}

	opts := synchronizer.Options{
		Voice:                  v.GetString("voice"),
		TtsModel:               v.GetString("tts_model"),
		TtsFormat:              tts.Format(v.GetString("tts_format")),
		OutputFmt:              synchronizer.OutputFormat(v.GetString("output_format")),
		SampleRate:             v.GetInt("sample_rate"),
		MaxSegmentDuration:     v.GetFloat64("max_segment_duration"),
		NormalizeVolume:        v.GetBool("normalize_volume"),
		ApplyCompression:       v.GetBool("apply_compression"),
		ApplyEqualization:      v.GetBool("apply_equalization"),
		TempoAlgorithm:         algo,
		PreservePauses:         v.GetBool("preserve_pauses"),
		CompressionThresholdDb: v.GetFloat64("compression_threshold_db"),
		CompressionRatio:       v.GetFloat64("compression_ratio"),
		CompressionAttackMs:    v.GetFloat64("compression_attack_ms"),
		CompressionReleaseMs:   v.GetFloat64("compression_release_ms"),
		CompressionMakeupDb:    v.GetFloat64("compression_makeup_db"),
		EqLowGainDb:            v.GetFloat64("eq_low_gain_db"),
		EqMidGainDb:            v.GetFloat64("eq_mid_gain_db"),
		EqHighGainDb:           v.GetFloat64("eq_high_gain_db"),
		EqLowFreqHz:            v.GetFloat64("eq_low_freq_hz"),
		EqHighFreqHz:           v.GetFloat64("eq_high_freq_hz"),
		NormalizationTargetDb:  v.GetFloat64("normalization_target_db"),
		Concurrency:            v.GetInt("concurrency"),
		TtsTimeoutS:            v.GetInt("tts_timeout_s"),
		BestEffort:             v.GetBool("best_effort"),
	}

	opts.SetDefaults()
	if err := opts.IsValid(); err != nil {
		return synchronizer.Options{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return opts, nil
}
