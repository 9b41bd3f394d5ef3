// Package tts implements the TTS Fetcher: given cue text and a
// voice/model/format tuple, it returns decoded mono PCM at the canonical
// sample rate, deduplicating identical in-flight requests and caching
// decoded results for the lifetime of one synchronization run.
package tts

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Format names one of the three encodings the fetcher can decode.
type Format string

const (
	FormatMp3 Format = "mp3"
	FormatWav Format = "wav"
	FormatOgg Format = "ogg"
)

// Request is the (text, voice, model, format, rate) tuple that keys both
// the remote call and the content-addressed cache.
type Request struct {
	Text       string
	Voice      string
	Model      string
	Format     Format
	SampleRate int
}

// Fingerprint returns a stable hash of the request tuple, used as the
// cache key and the singleflight key.
func Fingerprint(req Request) string {
	h := xxhash.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00%d", req.Text, req.Voice, req.Model, req.Format, req.SampleRate)
	return fmt.Sprintf("%016x", h.Sum64())
}

// ProviderConfig describes the remote TTS HTTP endpoint.
type ProviderConfig struct {
	Endpoint   string
	APIKey     string
	TimeoutS   int
	MaxRetries int
}

// DefaultProviderConfig returns the Sync Options default timeout.
func DefaultProviderConfig(endpoint, apiKey string) ProviderConfig {
	return ProviderConfig{
		Endpoint:   endpoint,
		APIKey:     apiKey,
		TimeoutS:   60,
		MaxRetries: 5,
	}
}
