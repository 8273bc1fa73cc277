package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mot/controller"
	"github.com/nvr-ai/go-mot/store"
	"github.com/nvr-ai/go-mot/tracking"
	"github.com/nvr-ai/go-mot/util"
)

type replayOptions struct {
	output string
	dbPath string
	name   string
}

func newReplayCommand(ctx *commandContext) *cobra.Command {
	opts := replayOptions{}

	cmd := &cobra.Command{
		Use:   "replay <detections.jsonl | frames-dir | ->",
		Short: "Track recorded detections and write the emitted tracks as JSON Lines",
		Long: `Track recorded detections and write the emitted tracks as JSON Lines.

The input is a JSON Lines file, "-" for stdin, or a directory of
frame-<N>.json files replayed in frame order.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger(cmd)
			if err != nil {
				return err
			}

			source, closeInput, err := openSource(cmd, args[0])
			if err != nil {
				return err
			}
			defer closeInput()

			out := cmd.OutOrStdout()
			if opts.output != "" && opts.output != "-" {
				file, err := os.Create(opts.output)
				if err != nil {
					return errors.Wrap(err, "create output")
				}
				defer file.Close()
				out = file
			}

			sinks := []controller.Sink{util.NewTrackWriter(out)}

			dbPath := opts.dbPath
			if dbPath == "" {
				dbPath = cfg.Store.Path
			}
			if dbPath != "" {
				st, err := store.Open(cmd.Context(), dbPath)
				if err != nil {
					return err
				}
				defer st.Close()

				name := opts.name
				if name == "" {
					name = filepath.Base(args[0])
				}
				run, err := st.BeginRun(cmd.Context(), name, cfg.TrackerConfig())
				if err != nil {
					return err
				}
				logger.Info("recording run",
					slog.String("run_id", run.ID.String()),
					slog.String("name", name),
					slog.String("db", st.Path()),
				)
				sinks = append(sinks, run)
			}

			tracker := tracking.New(cfg.TrackerConfig(), tracking.WithLogger(logger))
			stats, err := replay(cmd.Context(), source, tracker, sinks...)
			if err != nil {
				return err
			}

			logger.Info("replay complete",
				slog.Int("frames", stats.Frames),
				slog.Int("sequences", stats.Sequences),
				slog.Int("detections", stats.Detections),
				slog.Int("emitted", stats.Emitted),
				slog.Duration("elapsed", stats.Elapsed),
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&opts.dbPath, "db", "", "SQLite database to record the run in (overrides store.path)")
	cmd.Flags().StringVar(&opts.name, "name", "", "Run name stored with the recording (default input file name)")

	return cmd
}

// openSource picks the record source for path: stdin for "-", a frame
// directory, or a JSON Lines file.
func openSource(cmd *cobra.Command, path string) (util.RecordSource, func(), error) {
	if path == "-" {
		return util.NewRecordReader(cmd.InOrStdin()), func() {}, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open input")
	}
	if info.IsDir() {
		records, err := util.LoadDirectoryRecords(path)
		if err != nil {
			return nil, nil, err
		}
		return util.NewRecordSlice(records), func() {}, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open input")
	}
	return util.NewRecordReader(file), func() { file.Close() }, nil
}

type replayStats struct {
	Frames     int
	Sequences  int
	Detections int
	Emitted    int
	Elapsed    time.Duration
}

// replay feeds every record to the tracker and hands the emitted tracks to
// each sink. A record with Reset set restarts the tracker first.
func replay(ctx context.Context, source util.RecordSource, tracker *tracking.Tracker, sinks ...controller.Sink) (replayStats, error) {
	stats := replayStats{Sequences: 1}
	start := time.Now()

	for {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		rec, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, err
		}

		if rec.Reset && tracker.Frame() > 0 {
			tracker.Reset()
			stats.Sequences++
		}

		tracks := tracker.Process(rec.Detections)
		stats.Frames++
		stats.Detections += len(rec.Detections)
		stats.Emitted += len(tracks)

		for _, sink := range sinks {
			if err := sink.WriteFrame(ctx, tracker.Frame(), tracks); err != nil {
				return stats, err
			}
		}
	}

	stats.Elapsed = time.Since(start)
	return stats, nil
}
