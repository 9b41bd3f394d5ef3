package tts

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/mattermost/sync-track/internal/audiobuf"
	"github.com/mattermost/sync-track/internal/synerr"
)

// Fetcher is the TTS Fetcher component: it issues requests to a remote
// TTS endpoint, decodes the response to canonical-rate mono PCM, and
// caches decoded buffers per fingerprint for the lifetime of one run.
type Fetcher struct {
	client *resty.Client
	cfg    ProviderConfig
	rate   int
	sem    *semaphore.Weighted
	sf     singleflight.Group

	mu    sync.Mutex
	cache map[string]audiobuf.Buffer
}

// NewFetcher builds a Fetcher. concurrency bounds simultaneous in-flight
// HTTP requests (Sync Options' concurrency key, default 4); canonicalRate
// is the sample rate every decoded buffer is converted to (default 44100).
func NewFetcher(cfg ProviderConfig, concurrency, canonicalRate int) *Fetcher {
	client := resty.New().SetTimeout(time.Duration(cfg.TimeoutS) * time.Second)

	return &Fetcher{
		client: client,
		cfg:    cfg,
		rate:   canonicalRate,
		sem:    semaphore.NewWeighted(int64(concurrency)),
		cache:  make(map[string]audiobuf.Buffer),
	}
}

// Fetch returns the decoded PCM for req, fetching and decoding on a cache
// miss. Concurrent callers for the same fingerprint share a single
// in-flight fetch.
func (f *Fetcher) Fetch(ctx context.Context, req Request) (audiobuf.Buffer, error) {
	fp := Fingerprint(req)

	f.mu.Lock()
	cached, ok := f.cache[fp]
	f.mu.Unlock()
	if ok {
		return cached.Clone(), nil
	}

	v, err, _ := f.sf.Do(fp, func() (interface{}, error) {
		// A fetch for fp may have completed between the check above and
		// this call; reuse its result instead of issuing a second request.
		f.mu.Lock()
		cached, ok := f.cache[fp]
		f.mu.Unlock()
		if ok {
			return cached, nil
		}
		return f.fetchAndDecode(ctx, req, fp)
	})
	if err != nil {
		return audiobuf.Buffer{}, err
	}

	return v.(audiobuf.Buffer).Clone(), nil
}

func (f *Fetcher) fetchAndDecode(ctx context.Context, req Request, fingerprint string) (audiobuf.Buffer, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return audiobuf.Buffer{}, &synerr.Cancelled{Phase: "Fetching"}
	}
	defer f.sem.Release(1)

	body, err := f.fetchBytes(ctx, req)
	if err != nil {
		return audiobuf.Buffer{}, err
	}

	buf, err := decodePCM(body, req.Format, f.rate)
	if err != nil {
		return audiobuf.Buffer{}, err
	}

	f.mu.Lock()
	f.cache[fingerprint] = buf
	f.mu.Unlock()

	return buf, nil
}

// fetchBytes issues the TTS HTTP request, retrying 429/5xx responses with
// exponential backoff (base 500ms, factor 2, ±20% jitter, capped at
// cfg.MaxRetries attempts). 4xx other than 429 is terminal.
func (f *Fetcher) fetchBytes(ctx context.Context, req Request) ([]byte, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 500 * time.Millisecond
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.2

	maxRetries := f.cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 5
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(maxRetries-1)), ctx)

	var body []byte
	operation := func() error {
		resp, err := f.client.R().
			SetContext(ctx).
			SetHeader("Authorization", "Bearer "+f.cfg.APIKey).
			SetBody(map[string]string{
				"model":           req.Model,
				"input":           req.Text,
				"voice":           req.Voice,
				"response_format": string(req.Format),
			}).
			Post(f.cfg.Endpoint)
		if err != nil {
			return err
		}

		status := resp.StatusCode()
		switch {
		case status == 429 || status >= 500:
			return &synerr.TtsHttp{Status: status, Body: string(resp.Body())}
		case status >= 400:
			return backoff.Permanent(&synerr.TtsHttp{Status: status, Body: string(resp.Body())})
		}

		body = resp.Body()
		return nil
	}

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return body, nil
}
