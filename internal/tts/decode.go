package tts

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"gopkg.in/hraban/opus.v2"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/oggreader"
	"github.com/mattermost/sync-track/internal/synerr"
	"github.com/mattermost/sync-track/internal/tempo"
)

// decodePCM turns provider-encoded bytes into a mono buffer at the
// canonical sample rate: decode, downmix, then resample if needed.
func decodePCM(data []byte, format Format, canonicalRate int) (audiobuf.Buffer, error) {
	var buf audiobuf.Buffer
	var err error

	switch format {
	case FormatMp3:
		buf, err = decodeMp3(data)
	case FormatWav:
		buf, err = decodeWav(data)
	case FormatOgg:
		buf, err = decodeOggOpus(data)
	default:
		return audiobuf.Buffer{}, &synerr.TtsDecode{Reason: fmt.Sprintf("unsupported format %q", format)}
	}
	if err != nil {
		return audiobuf.Buffer{}, &synerr.TtsDecode{Reason: "decode failed", Err: err}
	}

	if len(buf.Samples) == 0 {
		return audiobuf.Buffer{}, &synerr.TtsEmpty{}
	}

	buf = buf.ToMono()
	if buf.SampleRate != canonicalRate {
		buf = resampleToRate(buf, canonicalRate)
	}

	return buf, nil
}

func decodeMp3(data []byte) (audiobuf.Buffer, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audiobuf.Buffer{}, fmt.Errorf("mp3 decoder init: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil {
		return audiobuf.Buffer{}, fmt.Errorf("mp3 read: %w", err)
	}

	// go-mp3 always emits interleaved 16-bit little-endian stereo PCM.
	frameCount := len(raw) / 4
	samples := make([]float32, frameCount*2)
	for i := 0; i < frameCount*2; i++ {
		v := int16(binary.LittleEndian.Uint16(raw[i*2 : i*2+2]))
		samples[i] = float32(v) / 32768.0
	}

	return audiobuf.Buffer{Samples: samples, SampleRate: dec.SampleRate(), Channels: 2}, nil
}

func decodeWav(data []byte) (audiobuf.Buffer, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return audiobuf.Buffer{}, fmt.Errorf("wav decode: %w", err)
	}

	// AsFloatBuffer keeps the integer sample values; scale them into [-1, 1]
	// by the source bit depth.
	scale := 1.0
	if dec.BitDepth > 0 {
		scale = float64(int64(1) << (dec.BitDepth - 1))
	}

	floatBuf := pcm.AsFloatBuffer()
	samples := make([]float32, len(floatBuf.Data))
	for i, v := range floatBuf.Data {
		samples[i] = float32(v / scale)
	}

	return audiobuf.Buffer{
		Samples:    samples,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

// decodeOggOpus demuxes Ogg pages with internal/oggreader and feeds each
// page's payload, treated as one Opus packet, to the libopus decoder.
func decodeOggOpus(data []byte) (audiobuf.Buffer, error) {
	reader, header, err := oggreader.NewReaderWith(bytes.NewReader(data))
	if err != nil {
		return audiobuf.Buffer{}, fmt.Errorf("ogg header: %w", err)
	}

	channels := int(header.Channels)
	if channels == 0 {
		channels = 1
	}

	dec, err := opus.NewDecoder(int(header.SampleRate), channels)
	if err != nil {
		return audiobuf.Buffer{}, fmt.Errorf("opus decoder init: %w", err)
	}

	// The page immediately following the ID header is the OpusTags comment
	// header; it carries no audio and is discarded.
	if _, _, err := reader.ParseNextPage(); err != nil && err != io.EOF {
		return audiobuf.Buffer{}, fmt.Errorf("ogg comment header: %w", err)
	}

	pcmScratch := make([]int16, 5760*channels) // 120ms at 48kHz, libopus's max frame
	var samples []float32

	for {
		payload, _, err := reader.ParseNextPage()
		if err == io.EOF {
			break
		}
		if err != nil {
			return audiobuf.Buffer{}, fmt.Errorf("ogg page: %w", err)
		}
		if len(payload) == 0 {
			continue
		}

		n, err := dec.Decode(payload, pcmScratch)
		if err != nil {
			return audiobuf.Buffer{}, fmt.Errorf("opus decode: %w", err)
		}

		for i := 0; i < n*channels; i++ {
			samples = append(samples, float32(pcmScratch[i])/32768.0)
		}
	}

	return audiobuf.Buffer{Samples: samples, SampleRate: int(header.SampleRate), Channels: channels}, nil
}

// resampleToRate performs a plain sample-rate conversion (distinct from
// the Tempo Adjuster's ratio-clamped time-stretch): it reuses
// internal/tempo's Linear kernel unclamped, since this changes the
// buffer's sample rate, not its perceived tempo.
func resampleToRate(buf audiobuf.Buffer, targetRate int) audiobuf.Buffer {
	if buf.SampleRate == targetRate || buf.SampleRate == 0 {
		return buf
	}

	kernel := tempo.NewKernel(tempo.Linear)
	ratio := float64(targetRate) / float64(buf.SampleRate)
	frames := buf.FrameCount()
	outFrames := int(math.Round(float64(frames) * ratio))

	channels := buf.Channels
	out := make([]float32, outFrames*channels)
	srcChannel := make([]float64, frames)

	for c := 0; c < channels; c++ {
		for i := 0; i < frames; i++ {
			srcChannel[i] = float64(buf.Samples[i*channels+c])
		}
		for i := 0; i < outFrames; i++ {
			pos := float64(i) / ratio
			out[i*channels+c] = float32(kernel.Interpolate(srcChannel, pos))
		}
	}

	return audiobuf.Buffer{Samples: out, SampleRate: targetRate, Channels: channels}
}
