package synerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TtsHttp{Status: 503, Body: "upstream down", Err: cause}

	require.ErrorIs(t, err, cause)

	var target *TtsHttp
	require.ErrorAs(t, err, &target)
	require.Equal(t, 503, target.Status)
}

func TestErrorMessagesAreDescriptive(t *testing.T) {
	tcs := []struct {
		name string
		err  error
		want string
	}{
		{name: "vtt parsing", err: &VttParsing{Line: 4, Reason: "missing header"}, want: "line 4"},
		{name: "tts empty", err: &TtsEmpty{Fingerprint: "abc123"}, want: "abc123"},
		{name: "assembly", err: &Assembly{CueIndex: 2, Reason: "negative gap"}, want: "cue 2"},
		{name: "invalid option", err: &InvalidOption{Key: "sample_rate", Reason: "must be positive"}, want: "sample_rate"},
		{name: "cancelled", err: &Cancelled{Phase: "Fetching"}, want: "Fetching"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			require.Contains(t, tc.err.Error(), tc.want)
		})
	}
}

func TestWrappedErrorsPreserveFmtW(t *testing.T) {
	cause := errors.New("disk full")
	err := fmt.Errorf("flush failed: %w", &Io{Path: "/tmp/out.wav", Err: cause})
	require.ErrorIs(t, err, cause)
}
