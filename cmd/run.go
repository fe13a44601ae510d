package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"icx.sh/interchange/internal/config"
	"icx.sh/interchange/internal/interchange"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Read a Bootstrap configuration from stdin and run the Interchange",
	Long: `Decode the Bootstrap configuration blob from standard input, construct
the Interchange, and block running its event loop until SIGTERM/SIGINT.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInterchange()
	},
}

func runInterchange() error {
	cfg, err := config.Load(os.Stdin, configEncoding)
	if err != nil {
		return err
	}

	ic, err := interchange.New(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := ic.Start(ctx); err != nil {
		return err
	}
	return ic.Run(ctx)
}
