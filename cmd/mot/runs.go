package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/nvr-ai/go-mot/store"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	var dbPath string

	openStore := func(cmd *cobra.Command) (*store.Store, error) {
		path := dbPath
		if path == "" {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return nil, err
			}
			path = cfg.Store.Path
		}
		if path == "" {
			return nil, errors.New("no database: pass --db or set store.path")
		}
		return store.Open(cmd.Context(), path)
	}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded replay runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(cmd.Context())
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded")
				return err
			}

			rows := make([][]string, 0, len(runs))
			for _, r := range runs {
				mode := "byte"
				if r.Config.SortMode {
					mode = "sort"
				}
				rows = append(rows, []string{
					r.ID.String(),
					r.Name,
					r.CreatedAt.Local().Format(time.DateTime),
					mode,
					strconv.Itoa(r.Frames),
					strconv.Itoa(r.Tracks),
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Name", "Created", "Mode", "Frames", "Tracks"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight},
			))
			return err
		},
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database (overrides store.path)")

	cmd.AddCommand(&cobra.Command{
		Use:   "track <run-id> <track-id>",
		Short: "Show the recorded history of one track",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return errors.Wrapf(err, "invalid run id %q", args[0])
			}
			trackID, err := strconv.Atoi(args[1])
			if err != nil {
				return errors.Wrapf(err, "invalid track id %q", args[1])
			}

			st, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			history, err := st.Tracks(cmd.Context(), runID, trackID)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				return errors.Errorf("track %d not found in run %s", trackID, runID)
			}

			rows := make([][]string, 0, len(history))
			for _, o := range history {
				state := "coasting"
				if o.FreshlyObserved {
					state = "observed"
				}
				rows = append(rows, []string{
					strconv.Itoa(o.Frame),
					formatCoord(o.Box.X0),
					formatCoord(o.Box.Y0),
					formatCoord(o.Box.X1),
					formatCoord(o.Box.Y1),
					formatCoord(o.Box.Confidence),
					state,
				})
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Frame", "X0", "Y0", "X1", "Y1", "Conf", "State"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			return err
		},
	})

	return cmd
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
