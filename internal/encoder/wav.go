package encoder

import (
	"context"
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/mattermost/sync-track/internal/audiobuf"
)

// WAVEncoder writes a buffer as a 16-bit PCM WAV file.
type WAVEncoder struct{}

func (e *WAVEncoder) Encode(ctx context.Context, buf audiobuf.Buffer, w io.Writer) error {
	ws, ok := w.(io.WriteSeeker)
	if !ok {
		return fmt.Errorf("wav encoder requires a seekable writer")
	}

	enc := wav.NewEncoder(ws, buf.SampleRate, 16, buf.Channels, 1)

	data := make([]int, len(buf.Samples))
	for i, s := range buf.Samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		data[i] = int(v)
	}

	intBuf := &audio.IntBuffer{
		Format:         &audio.Format{SampleRate: buf.SampleRate, NumChannels: buf.Channels},
		Data:           data,
		SourceBitDepth: 16,
	}

	if err := enc.Write(intBuf); err != nil {
		return fmt.Errorf("wav encode: %w", err)
	}

	return enc.Close()
}
