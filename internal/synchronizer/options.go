package synchronizer

import (
	"fmt"
	"os"
	"strconv"

	"github.com/mattermost/sync-track/internal/tempo"
	"github.com/mattermost/sync-track/internal/tts"
)

// OutputFormat names the final encoded container/codec.
type OutputFormat string

const (
	OutputFormatMp3 OutputFormat = "Mp3"
	OutputFormatWav OutputFormat = "Wav"
	OutputFormatOgg OutputFormat = "Ogg"
)

func (f OutputFormat) IsValid() bool {
	switch f {
	case OutputFormatMp3, OutputFormatWav, OutputFormatOgg:
		return true
	default:
		return false
	}
}

// Options is the Sync Options table from spec §6: every tunable knob for
// one synchronization run, following the teacher's CallTranscriberConfig/
// WebVTTOptions convention (SetDefaults/IsValid/FromEnv/ToEnv/FromMap/ToMap).
type Options struct {
	Voice      string
	TtsModel   string
	TtsFormat  tts.Format
	OutputFmt  OutputFormat
	SampleRate int

	// MaxSegmentDuration is accepted and validated but, like the source
	// design, not yet used to split over-long cues.
	MaxSegmentDuration float64

	NormalizeVolume   bool
	ApplyCompression  bool
	ApplyEqualization bool

	TempoAlgorithm tempo.KernelType
	PreservePauses bool

	CompressionThresholdDb float64
	CompressionRatio       float64
	CompressionAttackMs    float64
	CompressionReleaseMs   float64
	CompressionMakeupDb    float64

	EqLowGainDb  float64
	EqMidGainDb  float64
	EqHighGainDb float64
	EqLowFreqHz  float64
	EqHighFreqHz float64

	NormalizationTargetDb float64

	Concurrency int
	TtsTimeoutS int
	BestEffort  bool
}

// SetDefaults fills every zero-valued field with the Sync Options default,
// except the two booleans that default to true (see NewDefaultOptions).
func (o *Options) SetDefaults() {
	if o.Voice == "" {
		o.Voice = "alloy"
	}
	if o.TtsModel == "" {
		o.TtsModel = "tts-1"
	}
	if o.TtsFormat == "" {
		o.TtsFormat = tts.FormatMp3
	}
	if o.OutputFmt == "" {
		o.OutputFmt = OutputFormatMp3
	}
	if o.SampleRate == 0 {
		o.SampleRate = 44100
	}
	if o.MaxSegmentDuration == 0 {
		o.MaxSegmentDuration = 10.0
	}
	if o.CompressionThresholdDb == 0 {
		o.CompressionThresholdDb = -20.0
	}
	if o.CompressionRatio == 0 {
		o.CompressionRatio = 4.0
	}
	if o.CompressionAttackMs == 0 {
		o.CompressionAttackMs = 10.0
	}
	if o.CompressionReleaseMs == 0 {
		o.CompressionReleaseMs = 100.0
	}
	if o.CompressionMakeupDb == 0 {
		o.CompressionMakeupDb = 6.0
	}
	if o.EqLowGainDb == 0 {
		o.EqLowGainDb = 3.0
	}
	if o.EqHighGainDb == 0 {
		o.EqHighGainDb = 2.0
	}
	if o.EqLowFreqHz == 0 {
		o.EqLowFreqHz = 300.0
	}
	if o.EqHighFreqHz == 0 {
		o.EqHighFreqHz = 3000.0
	}
	if o.NormalizationTargetDb == 0 {
		o.NormalizationTargetDb = -3.0
	}
	if o.Concurrency == 0 {
		o.Concurrency = 4
	}
	if o.TtsTimeoutS == 0 {
		o.TtsTimeoutS = 60
	}
}

// NewDefaultOptions returns Options with every default applied, including
// the two boolean defaults (normalize_volume=true, preserve_pauses=true)
// that SetDefaults can't express as a "zero value means unset" field.
func NewDefaultOptions() Options {
	o := Options{NormalizeVolume: true, PreservePauses: true}
	o.SetDefaults()
	return o
}

// IsValid validates the option set, per spec §7's InvalidOption taxonomy.
func (o Options) IsValid() error {
	if !o.OutputFmt.IsValid() {
		return fmt.Errorf("output_format %q is not valid", o.OutputFmt)
	}
	switch o.TtsFormat {
	case tts.FormatMp3, tts.FormatWav, tts.FormatOgg:
	default:
		return fmt.Errorf("tts_format %q is not valid", o.TtsFormat)
	}
	if o.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", o.SampleRate)
	}
	if o.CompressionRatio <= 0 {
		return fmt.Errorf("compression_ratio must be positive, got %f", o.CompressionRatio)
	}
	if o.EqLowFreqHz <= 0 || o.EqHighFreqHz <= 0 {
		return fmt.Errorf("eq_low_freq_hz and eq_high_freq_hz must be positive")
	}
	if o.EqLowFreqHz >= o.EqHighFreqHz {
		return fmt.Errorf("eq_low_freq_hz must be below eq_high_freq_hz")
	}
	if o.Concurrency <= 0 {
		return fmt.Errorf("concurrency must be positive, got %d", o.Concurrency)
	}
	if o.TtsTimeoutS <= 0 {
		return fmt.Errorf("tts_timeout_s must be positive, got %d", o.TtsTimeoutS)
	}
	if o.MaxSegmentDuration <= 0 {
		return fmt.Errorf("max_segment_duration must be positive, got %f", o.MaxSegmentDuration)
	}
	return nil
}

// ToEnv renders the options as SYNCTRACK_*-prefixed KEY=VALUE pairs.
func (o Options) ToEnv() []string {
	return []string{
		"SYNCTRACK_VOICE=" + o.Voice,
		"SYNCTRACK_TTS_MODEL=" + o.TtsModel,
		"SYNCTRACK_TTS_FORMAT=" + string(o.TtsFormat),
		"SYNCTRACK_OUTPUT_FORMAT=" + string(o.OutputFmt),
		fmt.Sprintf("SYNCTRACK_SAMPLE_RATE=%d", o.SampleRate),
		fmt.Sprintf("SYNCTRACK_MAX_SEGMENT_DURATION=%f", o.MaxSegmentDuration),
		fmt.Sprintf("SYNCTRACK_NORMALIZE_VOLUME=%t", o.NormalizeVolume),
		fmt.Sprintf("SYNCTRACK_APPLY_COMPRESSION=%t", o.ApplyCompression),
		fmt.Sprintf("SYNCTRACK_APPLY_EQUALIZATION=%t", o.ApplyEqualization),
		"SYNCTRACK_TEMPO_ALGORITHM=" + o.TempoAlgorithm.String(),
		fmt.Sprintf("SYNCTRACK_PRESERVE_PAUSES=%t", o.PreservePauses),
		fmt.Sprintf("SYNCTRACK_COMPRESSION_THRESHOLD_DB=%f", o.CompressionThresholdDb),
		fmt.Sprintf("SYNCTRACK_COMPRESSION_RATIO=%f", o.CompressionRatio),
		fmt.Sprintf("SYNCTRACK_COMPRESSION_ATTACK_MS=%f", o.CompressionAttackMs),
		fmt.Sprintf("SYNCTRACK_COMPRESSION_RELEASE_MS=%f", o.CompressionReleaseMs),
		fmt.Sprintf("SYNCTRACK_COMPRESSION_MAKEUP_DB=%f", o.CompressionMakeupDb),
		fmt.Sprintf("SYNCTRACK_EQ_LOW_GAIN_DB=%f", o.EqLowGainDb),
		fmt.Sprintf("SYNCTRACK_EQ_MID_GAIN_DB=%f", o.EqMidGainDb),
		fmt.Sprintf("SYNCTRACK_EQ_HIGH_GAIN_DB=%f", o.EqHighGainDb),
		fmt.Sprintf("SYNCTRACK_EQ_LOW_FREQ_HZ=%f", o.EqLowFreqHz),
		fmt.Sprintf("SYNCTRACK_EQ_HIGH_FREQ_HZ=%f", o.EqHighFreqHz),
		fmt.Sprintf("SYNCTRACK_NORMALIZATION_TARGET_DB=%f", o.NormalizationTargetDb),
		fmt.Sprintf("SYNCTRACK_CONCURRENCY=%d", o.Concurrency),
		fmt.Sprintf("SYNCTRACK_TTS_TIMEOUT_S=%d", o.TtsTimeoutS),
		fmt.Sprintf("SYNCTRACK_BEST_EFFORT=%t", o.BestEffort),
	}
}

// FromEnv reads Options from SYNCTRACK_*-prefixed environment variables,
// leaving unset fields at their zero value for SetDefaults to fill in.
func FromEnv() Options {
	var o Options
	o.Voice = os.Getenv("SYNCTRACK_VOICE")
	o.TtsModel = os.Getenv("SYNCTRACK_TTS_MODEL")
	o.TtsFormat = tts.Format(os.Getenv("SYNCTRACK_TTS_FORMAT"))
	o.OutputFmt = OutputFormat(os.Getenv("SYNCTRACK_OUTPUT_FORMAT"))
	o.SampleRate, _ = strconv.Atoi(os.Getenv("SYNCTRACK_SAMPLE_RATE"))
	o.MaxSegmentDuration, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_MAX_SEGMENT_DURATION"), 64)
	o.NormalizeVolume, _ = strconv.ParseBool(os.Getenv("SYNCTRACK_NORMALIZE_VOLUME"))
	o.ApplyCompression, _ = strconv.ParseBool(os.Getenv("SYNCTRACK_APPLY_COMPRESSION"))
	o.ApplyEqualization, _ = strconv.ParseBool(os.Getenv("SYNCTRACK_APPLY_EQUALIZATION"))
	o.TempoAlgorithm, _ = tempo.ParseKernelType(os.Getenv("SYNCTRACK_TEMPO_ALGORITHM"))
	o.PreservePauses, _ = strconv.ParseBool(os.Getenv("SYNCTRACK_PRESERVE_PAUSES"))
	o.CompressionThresholdDb, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_COMPRESSION_THRESHOLD_DB"), 64)
	o.CompressionRatio, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_COMPRESSION_RATIO"), 64)
	o.CompressionAttackMs, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_COMPRESSION_ATTACK_MS"), 64)
	o.CompressionReleaseMs, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_COMPRESSION_RELEASE_MS"), 64)
	o.CompressionMakeupDb, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_COMPRESSION_MAKEUP_DB"), 64)
	o.EqLowGainDb, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_EQ_LOW_GAIN_DB"), 64)
	o.EqMidGainDb, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_EQ_MID_GAIN_DB"), 64)
	o.EqHighGainDb, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_EQ_HIGH_GAIN_DB"), 64)
	o.EqLowFreqHz, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_EQ_LOW_FREQ_HZ"), 64)
	o.EqHighFreqHz, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_EQ_HIGH_FREQ_HZ"), 64)
	o.NormalizationTargetDb, _ = strconv.ParseFloat(os.Getenv("SYNCTRACK_NORMALIZATION_TARGET_DB"), 64)
	o.Concurrency, _ = strconv.Atoi(os.Getenv("SYNCTRACK_CONCURRENCY"))
	o.TtsTimeoutS, _ = strconv.Atoi(os.Getenv("SYNCTRACK_TTS_TIMEOUT_S"))
	o.BestEffort, _ = strconv.ParseBool(os.Getenv("SYNCTRACK_BEST_EFFORT"))
	return o
}

// ToMap renders the options using the Sync Options table's snake_case key
// names, for config.Load and for tests that round-trip through JSON/YAML.
func (o Options) ToMap() map[string]any {
	return map[string]any{
		"voice":                    o.Voice,
		"tts_model":                o.TtsModel,
		"tts_format":               string(o.TtsFormat),
		"output_format":            string(o.OutputFmt),
		"sample_rate":              o.SampleRate,
		"max_segment_duration":     o.MaxSegmentDuration,
		"normalize_volume":         o.NormalizeVolume,
		"apply_compression":        o.ApplyCompression,
		"apply_equalization":       o.ApplyEqualization,
		"tempo_algorithm":          o.TempoAlgorithm.String(),
		"preserve_pauses":          o.PreservePauses,
		"compression_threshold_db": o.CompressionThresholdDb,
		"compression_ratio":        o.CompressionRatio,
		"compression_attack_ms":    o.CompressionAttackMs,
		"compression_release_ms":   o.CompressionReleaseMs,
		"compression_makeup_db":    o.CompressionMakeupDb,
		"eq_low_gain_db":           o.EqLowGainDb,
		"eq_mid_gain_db":           o.EqMidGainDb,
		"eq_high_gain_db":          o.EqHighGainDb,
		"eq_low_freq_hz":           o.EqLowFreqHz,
		"eq_high_freq_hz":          o.EqHighFreqHz,
		"normalization_target_db":  o.NormalizationTargetDb,
		"concurrency":              o.Concurrency,
		"tts_timeout_s":            o.TtsTimeoutS,
		"best_effort":              o.BestEffort,
	}
}

// FromMap populates o from a map keyed the same way as ToMap, leaving any
// field whose key is absent or of the wrong type untouched. It mirrors the
// teacher's Options.FromMap convention used to merge job-request payloads
// into a config struct.
func (o *Options) FromMap(m map[string]any) *Options {
	if v, ok := m["voice"].(string); ok {
		o.Voice = v
	}
	if v, ok := m["tts_model"].(string); ok {
		o.TtsModel = v
	}
	if v, ok := m["tts_format"].(string); ok {
		o.TtsFormat = tts.Format(v)
	}
	if v, ok := m["output_format"].(string); ok {
		o.OutputFmt = OutputFormat(v)
	}
	if v, ok := m["sample_rate"].(int); ok {
		o.SampleRate = v
	}
	if v, ok := m["max_segment_duration"].(float64); ok {
		o.MaxSegmentDuration = v
	}
	if v, ok := m["normalize_volume"].(bool); ok {
		o.NormalizeVolume = v
	}
	if v, ok := m["apply_compression"].(bool); ok {
		o.ApplyCompression = v
	}
	if v, ok := m["apply_equalization"].(bool); ok {
		o.ApplyEqualization = v
	}
	if v, ok := m["tempo_algorithm"].(string); ok {
		if k, err := tempo.ParseKernelType(v); err == nil {
			o.TempoAlgorithm = k
		}
	}
	if v, ok := m["preserve_pauses"].(bool); ok {
		o.PreservePauses = v
	}
	if v, ok := m["compression_threshold_db"].(float64); ok {
		o.CompressionThresholdDb = v
	}
	if v, ok := m["compression_ratio"].(float64); ok {
		o.CompressionRatio = v
	}
	if v, ok := m["compression_attack_ms"].(float64); ok {
		o.CompressionAttackMs = v
	}
	if v, ok := m["compression_release_ms"].(float64); ok {
		o.CompressionReleaseMs = v
	}
	if v, ok := m["compression_makeup_db"].(float64); ok {
		o.CompressionMakeupDb = v
	}
	if v, ok := m["eq_low_gain_db"].(float64); ok {
		o.EqLowGainDb = v
	}
	if v, ok := m["eq_mid_gain_db"].(float64); ok {
		o.EqMidGainDb = v
	}
	if v, ok := m["eq_high_gain_db"].(float64); ok {
		o.EqHighGainDb = v
	}
	if v, ok := m["eq_low_freq_hz"].(float64); ok {
		o.EqLowFreqHz = v
	}
	if v, ok := m["eq_high_freq_hz"].(float64); ok {
		o.EqHighFreqHz = v
	}
	if v, ok := m["normalization_target_db"].(float64); ok {
		o.NormalizationTargetDb = v
	}
	if v, ok := m["concurrency"].(int); ok {
		o.Concurrency = v
	}
	if v, ok := m["tts_timeout_s"].(int); ok {
		o.TtsTimeoutS = v
	}
	if v, ok := m["best_effort"].(bool); ok {
		o.BestEffort = v
	}
	return o
}
