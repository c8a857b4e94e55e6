package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mwarner/greenflow/internal/script"
)

func runCmd(newClient func() *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <script-id>",
		Short: "Execute a stored script and print its step log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run, err := newClient().execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, entry := range run.Log {
				fmt.Printf("%s  [%s] %s: %s\n",
					entry.Timestamp.Format("15:04:05"), entry.Status, entry.StepID, entry.Message)
			}
			fmt.Printf("run %s %s (session %s)\n", run.ID, run.Status, run.SessionID)
			if run.Status != script.RunCompleted {
				os.Exit(1)
			}
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "List past script runs, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			runs, err := newClient().listRuns(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tSCRIPT\tSTATUS\tSTARTED\tSTEPS")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\n",
					r.ID, r.ScriptID, r.Status, r.StartedAt.Format("2006-01-02 15:04:05"), r.Steps)
			}
			return w.Flush()
		},
	})
	return cmd
}
