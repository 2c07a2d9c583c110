package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/table"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hkcovid/internal/config"
	"hkcovid/internal/storage"
)

func newRunsCommand(stdout io.Writer) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recent job runs from the run log.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(viper.New(), cmd.Flags())
			// Listing history needs no store credentials.
			if err != nil && !errors.Is(err, config.ErrMissingCredentials) {
				return err
			}
			if cfg.RunLog == "" {
				return errors.New("run_log is not set")
			}

			db, err := storage.New(cfg.RunLog)
			if err != nil {
				return errors.Wrap(err, "open run log")
			}
			defer db.Close()

			logs, err := storage.NewRunLogStore(db).ListRunLogs(limit)
			if err != nil {
				return err
			}

			if len(logs) == 0 {
				fmt.Fprintln(stdout, "no runs recorded")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(stdout)
			t.AppendHeader(table.Row{"Started", "Run", "Job", "Version", "Status", "Read", "Written", "Rejected", "Duration", "Error"})
			for _, l := range logs {
				t.AppendRow(table.Row{
					l.StartedAt.Local().Format(time.DateTime),
					shortID(l.RunID), l.Job, l.Version, l.Status,
					l.RowsRead, l.RowsWritten, l.Rejected,
					l.FinishedAt.Sub(l.StartedAt).Round(time.Millisecond).String(), l.Error,
				})
			}
			t.Render()
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")
	return cmd
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
