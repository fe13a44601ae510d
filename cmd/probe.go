package cmd

import (
	"fmt"
	"math/rand"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	probePort      int
	probeRangeLow  int
	probeRangeHigh int
	probeAddress   string
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Bind a worker port without running the Interchange, for diagnosing connectivity",
	Long: `Binds the given (or range-selected) worker port and reports the bound
port, then exits. A diagnostic twin of the WORKER_BINDS command a Manager
would otherwise need a live Interchange to query — useful when a Manager
cannot reach the Interchange and an operator needs to rule out firewall
or port-range misconfiguration independently of the process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runProbe()
	},
}

func init() {
	probeCmd.Flags().IntVar(&probePort, "port", 0, "exact port to probe; 0 picks a random port between --port-range-low and --port-range-high")
	probeCmd.Flags().IntVar(&probeRangeLow, "port-range-low", 54000, "low end of the worker port range")
	probeCmd.Flags().IntVar(&probeRangeHigh, "port-range-high", 55000, "high end of the worker port range")
	probeCmd.Flags().StringVar(&probeAddress, "address", "0.0.0.0", "address to bind")
}

func runProbe() error {
	port := probePort
	if port == 0 {
		if probeRangeHigh < probeRangeLow {
			return fmt.Errorf("port-range-high must be >= port-range-low")
		}
		port = probeRangeLow + rand.Intn(probeRangeHigh-probeRangeLow+1)
	}

	addr := net.JoinHostPort(probeAddress, strconv.Itoa(port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("binding %s: %w", addr, err)
	}
	defer ln.Close()

	bound := ln.Addr().(*net.TCPAddr)
	fmt.Fprintf(os.Stdout, "bound worker port %d on %s — reachable\n", bound.Port, probeAddress)
	return nil
}
