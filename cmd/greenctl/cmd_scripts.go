package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func scriptsCmd(newClient func() *client) *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "List stored automation scripts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			scripts, err := newClient().listScripts(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tHOST\tSTEPS")
			for _, s := range scripts {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", s.ID, s.Name, s.Host, s.StepsCount)
			}
			return w.Flush()
		},
	}
}
