package encoder

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os/exec"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/synchronizer"
	"github.com/mattermost/sync-track/internal/synerr"
)

// FFmpegEncoder pipes raw s16le PCM into an ffmpeg subprocess and captures
// its encoded stdout, the same pipe-through-ffmpeg shape the pack's
// streaming encoders use for live audio.
type FFmpegEncoder struct {
	Format     synchronizer.OutputFormat
	SampleRate int

	// Binary overrides the ffmpeg executable name, for tests.
	Binary string
}

func (e *FFmpegEncoder) Encode(ctx context.Context, buf audiobuf.Buffer, w io.Writer) error {
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	args := e.buildArgs(buf)
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(pcm16LE(buf))

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.StdoutPipe()
	if err != nil {
		return &synerr.Io{Path: bin, Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return &synerr.Io{Path: bin, Err: fmt.Errorf("ffmpeg not available: %w", err)}
	}

	if _, err := io.Copy(w, out); err != nil {
		return &synerr.Io{Path: bin, Err: fmt.Errorf("reading ffmpeg output: %w", err)}
	}

	if err := cmd.Wait(); err != nil {
		return &synerr.Io{Path: bin, Err: fmt.Errorf("ffmpeg exited: %w: %s", err, stderr.String())}
	}

	return nil
}

func (e *FFmpegEncoder) buildArgs(buf audiobuf.Buffer) []string {
	args := []string{
		"-loglevel", "warning",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", buf.SampleRate),
		"-ac", fmt.Sprintf("%d", buf.Channels),
		"-i", "pipe:0",
	}

	switch e.Format {
	case synchronizer.OutputFormatMp3:
		args = append(args, "-c:a", "libmp3lame", "-b:a", "192k", "-f", "mp3", "pipe:1")
	case synchronizer.OutputFormatOgg:
		args = append(args, "-c:a", "libopus", "-b:a", "128000", "-vbr", "on", "-f", "ogg", "pipe:1")
	default:
		args = append(args, "-f", "wav", "pipe:1")
	}

	return args
}

func pcm16LE(buf audiobuf.Buffer) []byte {
	out := make([]byte, len(buf.Samples)*2)
	for i, s := range buf.Samples {
		v := s * 32767
		if v > 32767 {
			v = 32767
		}
		if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v)))
	}
	return out
}
