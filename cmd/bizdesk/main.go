package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

var rootCmd = &cobra.Command{
	Use:   "bizdesk",
	Short: "Backend-for-frontend for the business bookkeeping app",
	Long: `bizdesk serves the form, list and record endpoints of the bookkeeping
frontend and writes through to the upstream business API.

Run "bizdesk serve" to start the HTTP server, or "bizdesk validate" to
check a draft JSON file against the same rules the forms use.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newValidateCmd())

	if err := rootCmd.Execute(); err != nil {
		var invalid *invalidDraftError
		if !errors.As(err, &invalid) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
