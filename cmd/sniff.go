package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/skypro1111/forkstream-receiver/internal/sniffer"
)

var sniffCmd = &cobra.Command{
	Use:   "sniff <host> <port>",
	Short: "Dump raw UDP datagrams for debugging",
	Long: `sniff binds a UDP socket and hex-dumps every datagram it receives,
without decoding or recording anything. Useful for verifying that the
ForkStream module is actually sending traffic.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		port, err := strconv.Atoi(args[1])
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %s", args[1])
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		s := &sniffer.Sniffer{Host: args[0], Port: port}
		return s.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(sniffCmd)
}
