package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mattermost/sync-track/internal/caption"
	"github.com/mattermost/sync-track/internal/config"
	"github.com/mattermost/sync-track/internal/encoder"
	"github.com/mattermost/sync-track/internal/progress"
	"github.com/mattermost/sync-track/internal/synchronizer"
	"github.com/mattermost/sync-track/internal/synerr"
	"github.com/mattermost/sync-track/internal/tts"
)

func run(ctx context.Context, args syncArgs) error {
	opts, err := config.Load(args.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	vttFile, err := os.Open(args.vttPath)
	if err != nil {
		return &synerr.Io{Path: args.vttPath, Err: err}
	}
	defer vttFile.Close()

	cues, err := caption.Parse(vttFile)
	if err != nil {
		var parseErr *caption.ParseError
		if errors.As(err, &parseErr) {
			return &synerr.VttParsing{Line: parseErr.Line, Reason: parseErr.Reason, Err: err}
		}
		return &synerr.VttParsing{Reason: err.Error(), Err: err}
	}

	providerCfg := tts.DefaultProviderConfig(os.Getenv("SYNCTRACK_TTS_ENDPOINT"), os.Getenv("SYNCTRACK_TTS_API_KEY"))
	providerCfg.TimeoutS = opts.TtsTimeoutS
	fetcher := tts.NewFetcher(providerCfg, opts.Concurrency, opts.SampleRate)

	onProgress := func(pct float32, phase progress.Phase) {
		slog.Info("progress", slog.Float64("percent", float64(pct)), slog.String("phase", string(phase)))
	}

	sync := synchronizer.New(opts, fetcher, cues, args.duration, onProgress)
	sync.Start(ctx)

	// ctx is cancelled directly on SIGINT/SIGTERM (see runSync), which the
	// synchronizer's errgroup/semaphore already honor, aborting in-flight
	// fetches and dropping pending work rather than running to completion.
	<-sync.Done()
	if err := sync.Err(); err != nil {
		return fmt.Errorf("synchronization failed: %w", err)
	}

	result := sync.Result()
	for _, w := range result.Warnings {
		slog.Warn("synchronization warning", slog.Int("cue", w.CueIndex), slog.String("message", w.Message))
	}

	out, err := os.Create(args.outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer out.Close()

	enc := encoder.New(opts.OutputFmt, opts.SampleRate)
	if err := enc.Encode(ctx, result.Track, out); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}

	slog.Info("synchronization complete", slog.String("output", args.outputPath), slog.Float64("duration_s", result.Track.Duration()))
	return nil
}
