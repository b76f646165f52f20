package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/chaos-io/cutout/pipeline"
	"github.com/chaos-io/cutout/segment"
	"github.com/chaos-io/cutout/util"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cutout <image> [output.png]: 去掉背景并裁掉透明边
func rootCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "cutout <image> [output.png]",
		Short:        "Remove the background of an image and trim it to the subject",
		Args:         cobra.RangeArgs(1, 2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			output := ""
			if len(args) == 2 {
				output = args[1]
			}
			return run(ctx, newLogger(), args[0], output)
		},
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if os.Getenv("CUTOUT_DEBUG") != "" {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func run(ctx context.Context, log *slog.Logger, source, output string) error {
	cfg, err := segment.ONNXConfigFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	detector, err := segment.NewONNXDetector(cfg, log)
	if err != nil {
		return fmt.Errorf("init detector: %w", err)
	}
	defer func() {
		if err := detector.Close(); err != nil {
			log.Warn("close detector", "err", err)
		}
	}()

	fs := afero.NewOsFs()
	p := pipeline.New(segment.NewEngine(detector, log), log)
	o := pipeline.NewOrchestrator(p, func(source string) (pipeline.Resource, error) {
		return pipeline.ParseSource(fs, source)
	}, log)
	defer func() { _ = o.Close() }()

	updates, cancel := o.Subscribe()
	defer cancel()
	go func() {
		for s := range updates {
			log.Debug("state changed", "state", s.State, "source", s.Source)
		}
	}()

	if !util.IsSupported(source) {
		log.Warn("unrecognized image extension, trying to decode anyway", "source", source)
	}
	if err := o.Process(source); err != nil {
		return err
	}
	s, err := o.Wait(ctx)
	if err != nil {
		return err
	}

	if s.State == pipeline.Failed {
		var perr *pipeline.Error
		if errors.As(s.Err, &perr) {
			fmt.Fprintln(os.Stderr, perr.Description())
		}
		return s.Err
	}

	if output == "" {
		output = filepath.Join(filepath.Dir(s.Result.Source), pipeline.SaveName(s.Result.Source))
	}
	if err := pipeline.Save(fs, s.Result.Processed, output); err != nil {
		log.Error("save result", "path", output, "err", err)
		return err
	}
	log.Info("done", "id", s.Result.ID, "output", output, "crop", s.Result.Crop.String())
	return nil
}
