package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var serverURL string

	rootCmd := &cobra.Command{
		Use:   "greenctl",
		Short: "CLI for the greenflow terminal automation daemon",
	}
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:8080", "Base URL of the greenflow daemon")

	client := func() *client { return newClient(serverURL) }

	rootCmd.AddCommand(sessionsCmd(client))
	rootCmd.AddCommand(scriptsCmd(client))
	rootCmd.AddCommand(runCmd(client))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
