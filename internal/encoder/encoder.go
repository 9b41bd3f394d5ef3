// Package encoder writes a finished track to its output container/codec.
// WAVEncoder uses go-audio/wav directly; FFmpegEncoder shells out to an
// ffmpeg binary for mp3/ogg, following the teacher pack's
// os/exec-driven ffmpeg pipeline pattern.
package encoder

import (
	"context"
	"io"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/synchronizer"
)

// Encoder writes buf, encoded to its target format, to w.
type Encoder interface {
	Encode(ctx context.Context, buf audiobuf.Buffer, w io.Writer) error
}

// New returns the Encoder appropriate for format: the WAV path never
// shells out, everything else goes through ffmpeg.
func New(format synchronizer.OutputFormat, sampleRate int) Encoder {
	if format == synchronizer.OutputFormatWav {
		return &WAVEncoder{}
	}
	return &FFmpegEncoder{Format: format, SampleRate: sampleRate}
}
