package main

import (
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/ghost-audit/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded audit runs",
	RunE:  runRuns,
}

func init() {
	runsCmd.Flags().Int("limit", 20, "maximum number of runs to list")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	limit, _ := cmd.Flags().GetInt("limit")
	runs, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		cmd.Println("no runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	defer w.Flush()
	w.Write([]byte("ID\tSTATUS\tSTARTED\tFINISHED\tINDEX\n"))
	for _, r := range runs {
		finished := ""
		if !r.FinishedAt.IsZero() {
			finished = r.FinishedAt.Format("2006-01-02 15:04:05")
		}
		w.Write([]byte(r.ID + "\t" + string(r.Status) + "\t" +
			r.StartedAt.Format("2006-01-02 15:04:05") + "\t" + finished + "\t" + r.IndexPath + "\n"))
	}
	return nil
}
