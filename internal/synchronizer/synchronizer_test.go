package synchronizer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/caption"
	"github.com/mattermost/sync-track/internal/progress"
	"github.com/mattermost/sync-track/internal/synerr"
	"github.com/mattermost/sync-track/internal/tempo"
	"github.com/mattermost/sync-track/internal/tts"
)

const testRate = 44100

// toneBuffer returns a mono buffer of the given duration filled with a
// constant-amplitude tone, so it carries no silence of its own and voiced
// spans aren't accidentally trimmed by silence detection.
func toneBuffer(duration float64, sampleRate int) audiobuf.Buffer {
	n := int(duration * float64(sampleRate))
	samples := make([]float32, n)
	for i := range samples {
		if i%2 == 0 {
			samples[i] = 0.5
		} else {
			samples[i] = -0.5
		}
	}
	return audiobuf.Buffer{Samples: samples, SampleRate: sampleRate, Channels: 1}
}

// fakeFetcher returns a tone of the configured duration for each cue text.
// It never fails; failIndices is not consulted (failingFetcher covers
// fetch errors).
type fakeFetcher struct {
	durations   map[string]float64
	failIndices map[int]bool
	calls       int
}

func (f *fakeFetcher) Fetch(ctx context.Context, req tts.Request) (audiobuf.Buffer, error) {
	f.calls++
	d := f.durations[req.Text]
	return toneBuffer(d, testRate), nil
}

func baseOptions() Options {
	o := NewDefaultOptions()
	o.SampleRate = testRate
	o.NormalizeVolume = false
	o.PreservePauses = false // these seed scenarios stretch globally, not adaptively
	return o
}

func TestScenario1_NoGapConcatenation(t *testing.T) {
	cues := []caption.Cue{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: "b"},
	}
	f := &fakeFetcher{durations: map[string]float64{"a": 1.0, "b": 1.0}}

	sync := New(baseOptions(), f, cues, 2.0, nil)
	res, err := sync.Run(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 2.0, res.Track.Duration(), 0.01)
}

func TestScenario2_StretchToTarget(t *testing.T) {
	cues := []caption.Cue{{Start: 0, End: 2, Text: "a"}}
	f := &fakeFetcher{durations: map[string]float64{"a": 1.0}}

	sync := New(baseOptions(), f, cues, 2.0, nil)
	res, err := sync.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 88200, res.Track.FrameCount())
}

func TestScenario3_LeadingAndTrailingSilence(t *testing.T) {
	cues := []caption.Cue{{Start: 1.0, End: 3.0, Text: "a"}}
	f := &fakeFetcher{durations: map[string]float64{"a": 2.0}}

	sync := New(baseOptions(), f, cues, 5.0, nil)
	res, err := sync.Run(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 5.0, res.Track.Duration(), 0.01)

	leadStart := int(1.0 * testRate)
	for i := 0; i < leadStart; i++ {
		require.Zero(t, res.Track.Samples[i])
	}
	trailStart := int(3.0 * testRate)
	for i := trailStart; i < res.Track.FrameCount(); i++ {
		require.Zero(t, res.Track.Samples[i])
	}
}

func TestScenario4_InterCueSilence(t *testing.T) {
	cues := []caption.Cue{
		{Start: 0, End: 1, Text: "a"},
		{Start: 2, End: 3, Text: "b"},
	}
	f := &fakeFetcher{durations: map[string]float64{"a": 1.0, "b": 1.0}}

	sync := New(baseOptions(), f, cues, 3.0, nil)
	res, err := sync.Run(context.Background())
	require.NoError(t, err)

	start := int(1.0 * testRate)
	end := int(2.0 * testRate)
	for i := start; i < end; i++ {
		require.Zero(t, res.Track.Samples[i])
	}
}

func TestScenario5_ClampedRatioProducesWarningAndFitsLength(t *testing.T) {
	cues := []caption.Cue{{Start: 0, End: 1, Text: "a"}}
	f := &fakeFetcher{durations: map[string]float64{"a": 5.0}}

	opts := baseOptions()
	opts.TempoAlgorithm = tempo.Linear
	sync := New(opts, f, cues, 1.0, nil)
	res, err := sync.Run(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 1.0, res.Track.Duration(), 0.01)

	found := false
	for _, w := range res.Warnings {
		if w.CueIndex == 0 {
			found = true
		}
	}
	require.True(t, found, "expected a TempoClamped-style warning for cue 0")
}

func TestScenario6_BestEffortSubstitutesSilence(t *testing.T) {
	cues := []caption.Cue{
		{Start: 0, End: 1, Text: "a"},
		{Start: 1, End: 2, Text: "b"},
	}
	f := &failingFetcher{failIndex: 1}

	opts := baseOptions()
	opts.BestEffort = true
	sync := New(opts, f, cues, 2.0, nil)
	res, err := sync.Run(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 2.0, res.Track.Duration(), 0.01)

	start := int(1.0 * testRate)
	for i := start; i < res.Track.FrameCount(); i++ {
		require.Zero(t, res.Track.Samples[i])
	}
}

func TestFetchFailureIsFatalWithoutBestEffort(t *testing.T) {
	cues := []caption.Cue{{Start: 0, End: 1, Text: "a"}}
	f := &failingFetcher{failIndex: 0}

	sync := New(baseOptions(), f, cues, 1.0, nil)
	_, err := sync.Run(context.Background())
	require.Error(t, err)
}

func TestNegativeGapRejectedAsAssemblyError(t *testing.T) {
	cues := []caption.Cue{
		{Start: 0, End: 2, Text: "a"},
		{Start: 1, End: 3, Text: "b"},
	}
	f := &fakeFetcher{durations: map[string]float64{"a": 2.0, "b": 2.0}}

	sync := New(baseOptions(), f, cues, 3.0, nil)
	_, err := sync.Run(context.Background())
	require.Error(t, err)
	var assemblyErr *synerr.Assembly
	require.ErrorAs(t, err, &assemblyErr)
}

func TestProgressCallbackReachesDone(t *testing.T) {
	cues := []caption.Cue{{Start: 0, End: 1, Text: "a"}}
	f := &fakeFetcher{durations: map[string]float64{"a": 1.0}}

	var last float32
	var lastPhase progress.Phase
	sync := New(baseOptions(), f, cues, 1.0, func(pct float32, phase progress.Phase) {
		require.GreaterOrEqual(t, pct, last)
		last = pct
		lastPhase = phase
	})

	_, err := sync.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, float32(100), last)
	require.Equal(t, progress.PhaseDone, lastPhase)
}

func TestStartDoneErrLifecycle(t *testing.T) {
	cues := []caption.Cue{{Start: 0, End: 1, Text: "a"}}
	f := &fakeFetcher{durations: map[string]float64{"a": 1.0}}

	sync := New(baseOptions(), f, cues, 1.0, nil)
	sync.Start(context.Background())
	<-sync.Done()

	require.NoError(t, sync.Err())
	require.InDelta(t, 1.0, sync.Result().Track.Duration(), 0.01)
}

type failingFetcher struct {
	failIndex int
	calls     int
}

func (f *failingFetcher) Fetch(ctx context.Context, req tts.Request) (audiobuf.Buffer, error) {
	f.calls++
	if req.Text == "b" && f.failIndex == 1 {
		return audiobuf.Buffer{}, errors.New("upstream unavailable")
	}
	if req.Text == "a" && f.failIndex == 0 {
		return audiobuf.Buffer{}, errors.New("upstream unavailable")
	}
	return toneBuffer(1.0, testRate), nil
}
