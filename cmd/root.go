package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "forkstream-receiver",
	Short: "Receives and records ForkStream telephony audio",
	Long: `forkstream-receiver listens for TLV-framed UDP packets produced by the
Asterisk ForkStream module, demultiplexes them into per-call audio buffers
and writes completed recordings to disk.`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
