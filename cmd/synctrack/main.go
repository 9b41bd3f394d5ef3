package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func slogReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.SourceKey {
		if source, ok := a.Value.Any().(*slog.Source); ok {
			source.File = filepathBase(source.File)
		}
	}
	return a
}

func filepathBase(p string) string {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}

func setupLogger(logPath string) (*os.File, error) {
	var logFile *os.File
	var writer io.Writer = os.Stdout

	if logPath != "" {
		f, err := os.Create(logPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create log file: %w", err)
		}
		logFile = f
		writer = io.MultiWriter(os.Stdout, logFile)
	}

	logger := slog.New(slog.NewTextHandler(writer, &slog.HandlerOptions{
		AddSource:   true,
		Level:       slog.LevelInfo,
		ReplaceAttr: slogReplaceAttr,
	}))
	slog.SetDefault(logger)

	return logFile, nil
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		slog.Error("command failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		vttPath    string
		outputPath string
		configPath string
		logPath    string
		durationS  float64
	)

	cmd := &cobra.Command{
		Use:   "synctrack",
		Short: "Synchronize a WebVTT caption track to synthesized speech",
		RunE: func(cmd *cobra.Command, args []string) error {
			logFile, err := setupLogger(logPath)
			if err != nil {
				return err
			}
			if logFile != nil {
				defer logFile.Close()
			}

			return runSync(cmd.Context(), syncArgs{
				vttPath:    vttPath,
				outputPath: outputPath,
				configPath: configPath,
				duration:   durationS,
			})
		},
	}

	cmd.Flags().StringVar(&vttPath, "vtt", "", "path to the input WebVTT caption file (required)")
	cmd.Flags().StringVar(&outputPath, "output", "track.mp3", "path to write the synchronized audio track")
	cmd.Flags().StringVar(&configPath, "config", "", "path to a synctrack YAML config file")
	cmd.Flags().StringVar(&logPath, "log-file", "", "path to a log file (logs always also go to stdout)")
	cmd.Flags().Float64Var(&durationS, "video-duration", 0, "target duration of the final track, in seconds (required)")
	_ = cmd.MarkFlagRequired("vtt")
	_ = cmd.MarkFlagRequired("video-duration")

	return cmd
}

type syncArgs struct {
	vttPath    string
	outputPath string
	configPath string
	duration   float64
}

// runSync carries no whole-run deadline of its own: per spec §5 there is
// no default whole-run timeout, only the per-request TTS timeout already
// enforced inside tts.Fetcher. A SIGINT/SIGTERM cancels ctx directly, so
// in-flight fetches abort and stretch work that has not started yet is
// dropped; the DSP post-chain is a single pass that does not check ctx.
func runSync(parent context.Context, args syncArgs) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, args)
}
