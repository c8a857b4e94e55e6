package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func sessionsCmd(newClient func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List active terminal sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sessions, err := newClient().listSessions(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SESSION\tHOST\tPORT\tTLS\tCONNECTED")
			for _, s := range sessions {
				fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%t\n", s.ID, s.Host, s.Port, s.UseTLS, s.Connected)
			}
			return w.Flush()
		},
	}
}
