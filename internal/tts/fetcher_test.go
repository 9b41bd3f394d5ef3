package tts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterministicAndSensitive(t *testing.T) {
	a := Request{Text: "hello", Voice: "alloy", Model: "tts-1", Format: FormatWav, SampleRate: 44100}
	b := a
	require.Equal(t, Fingerprint(a), Fingerprint(b))

	b.Text = "hello there"
	require.NotEqual(t, Fingerprint(a), Fingerprint(b))
}

func wavResponder(t *testing.T) http.HandlerFunc {
	path := writeTestWav(t, 44100, 1, []int{0, 16384, -16384, 0})
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}

func TestFetchCachesByFingerprint(t *testing.T) {
	var calls int32
	handler := wavResponder(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(ProviderConfig{Endpoint: srv.URL, TimeoutS: 5, MaxRetries: 3}, 4, 44100)
	req := Request{Text: "hi", Voice: "alloy", Model: "tts-1", Format: FormatWav, SampleRate: 44100}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	_, err = f.Fetch(context.Background(), req)
	require.NoError(t, err)

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchSingleFlightsConcurrentCallers(t *testing.T) {
	var calls int32
	handler := wavResponder(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(ProviderConfig{Endpoint: srv.URL, TimeoutS: 5, MaxRetries: 3}, 4, 44100)
	req := Request{Text: "hi", Voice: "alloy", Model: "tts-1", Format: FormatWav, SampleRate: 44100}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Fetch(context.Background(), req)
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestFetchRetriesOnServerError(t *testing.T) {
	var calls int32
	handler := wavResponder(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		handler(w, r)
	}))
	defer srv.Close()

	f := NewFetcher(ProviderConfig{Endpoint: srv.URL, TimeoutS: 5, MaxRetries: 5}, 4, 44100)
	req := Request{Text: "hi", Voice: "alloy", Model: "tts-1", Format: FormatWav, SampleRate: 44100}

	_, err := f.Fetch(context.Background(), req)
	require.NoError(t, err)
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestFetchFailsTerminalOn4xx(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	f := NewFetcher(ProviderConfig{Endpoint: srv.URL, TimeoutS: 5, MaxRetries: 5}, 4, 44100)
	req := Request{Text: "hi", Voice: "alloy", Model: "tts-1", Format: FormatWav, SampleRate: 44100}

	_, err := f.Fetch(context.Background(), req)
	require.Error(t, err)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}
