package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"icx.sh/interchange/internal/config"
)

var validateConfigFile string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a Bootstrap configuration without starting the event loop",
	Long: `Decode and validate a Bootstrap configuration blob (JSON or YAML) without
constructing the Interchange. Useful for pre-checking configuration before
deploying it to a running process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	validateCmd.Flags().StringVarP(&validateConfigFile, "file", "f", "",
		"configuration file to validate; defaults to stdin when omitted")
}

func runValidate() error {
	r := os.Stdin
	if validateConfigFile != "" {
		f, err := os.Open(validateConfigFile)
		if err != nil {
			return fmt.Errorf("opening %s: %w", validateConfigFile, err)
		}
		defer f.Close()
		r = f
	}

	cfg, err := config.Load(r, configEncoding)
	if err != nil {
		fmt.Fprintf(os.Stderr, "INVALID: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("VALID: run_id=%q client_ports=%v worker_port_range=%v monitoring_enabled=%v\n",
		cfg.RunID, cfg.ClientPorts, cfg.WorkerPortRange, cfg.MonitoringEnabled())
	return nil
}
