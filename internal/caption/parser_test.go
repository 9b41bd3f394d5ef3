package caption

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tcs := []struct {
		name          string
		input         string
		expected      []Cue
		expectedError string
	}{
		{
			name: "simple two cues",
			input: "WEBVTT\n\n" +
				"00:00:00.000 --> 00:00:02.500\n" +
				"Hello there.\n\n" +
				"00:00:02.500 --> 00:00:05.000\n" +
				"Second line.\n",
			expected: []Cue{
				{Start: 0, End: 2.5, Text: "Hello there."},
				{Start: 2.5, End: 5, Text: "Second line."},
			},
		},
		{
			name: "cue identifiers and hours",
			input: "WEBVTT\n\n" +
				"1\n" +
				"01:00:00.000 --> 01:00:01.000\n" +
				"One hour in.\n\n" +
				"2\n" +
				"01:00:01.000 --> 01:00:02.000\n" +
				"One more second.\n",
			expected: []Cue{
				{Start: 3600, End: 3601, Text: "One hour in."},
				{Start: 3601, End: 3602, Text: "One more second."},
			},
		},
		{
			name: "inline tags and settings stripped",
			input: "WEBVTT\n\n" +
				"00:00:00.000 --> 00:00:01.000 line:90%\n" +
				"<v Alice><b>Hi</b> <i>there</i></v>\n",
			expected: []Cue{
				{Start: 0, End: 1, Text: "Hi there"},
			},
		},
		{
			name: "comma millisecond separator",
			input: "WEBVTT\n\n" +
				"00:00:00,000 --> 00:00:01,000\n" +
				"Comma style.\n",
			expected: []Cue{
				{Start: 0, End: 1, Text: "Comma style."},
			},
		},
		{
			name: "note and style blocks skipped",
			input: "WEBVTT\n\n" +
				"NOTE this is a comment\nspanning lines\n\n" +
				"STYLE\n::cue { color: red; }\n\n" +
				"00:00:00.000 --> 00:00:01.000\n" +
				"Still here.\n",
			expected: []Cue{
				{Start: 0, End: 1, Text: "Still here."},
			},
		},
		{
			name:          "missing header",
			input:         "00:00:00.000 --> 00:00:01.000\nNo header.\n",
			expectedError: "missing WEBVTT header",
		},
		{
			name: "overlapping cues rejected",
			input: "WEBVTT\n\n" +
				"00:00:00.000 --> 00:00:02.000\n" +
				"First.\n\n" +
				"00:00:01.000 --> 00:00:03.000\n" +
				"Overlaps first.\n",
			expectedError: "overlapping cue",
		},
		{
			name: "end before start rejected",
			input: "WEBVTT\n\n" +
				"00:00:02.000 --> 00:00:01.000\n" +
				"Backwards.\n",
			expectedError: "end time must be after start time",
		},
		{
			name: "empty text after tag stripping rejected",
			input: "WEBVTT\n\n" +
				"00:00:00.000 --> 00:00:01.000\n" +
				"<00:00:00.500>\n",
			expectedError: "empty cue text",
		},
		{
			name: "malformed timestamp rejected",
			input: "WEBVTT\n\n" +
				"00:00:00.000 -> 00:00:01.000\n" +
				"Bad arrow.\n",
			expectedError: "missing timestamp line",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			cues, err := Parse(strings.NewReader(tc.input))
			if tc.expectedError != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.expectedError)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.expected, cues)
		})
	}
}

func TestCueDuration(t *testing.T) {
	c := Cue{Start: 1.5, End: 4.25}
	require.InDelta(t, 2.75, c.Duration(), 1e-9)
}
