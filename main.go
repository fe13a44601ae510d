// Package main is the entry point for the Interchange task-routing broker.
package main

import (
	"fmt"
	"os"

	"icx.sh/interchange/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
