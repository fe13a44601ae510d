// Package cmd implements the Interchange CLI using cobra.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// configEncoding names the wire encoding of the Bootstrap blob the
// process reads from standard input (spec §6): json by default, yaml
// for interactive/file-redirected use.
var configEncoding string

var rootCmd = &cobra.Command{
	Use:   "interchange",
	Short: "Interchange - task routing broker between clients and managers",
	Long: `Interchange routes tasks from a client to connected Managers and
forwards results back, matching them by capacity and priority.

It reads its Bootstrap configuration from standard input at startup and
exposes four endpoints: task_in, results_out, command, and
manager_router.`,
	Version: "0.1.0",
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once by main.main().
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configEncoding, "config-encoding", "json",
		"encoding of the Bootstrap configuration blob read from stdin (json or yaml)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(probeCmd)
}

func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
