package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/handiism/fetcher/internal/http"
)

var sizeCmd = &cobra.Command{
	Use:   "size <url>...",
	Short: "Print advertised sizes using HEAD requests",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSize,
}

func init() {
	rootCmd.AddCommand(sizeCmd)
}

func runSize(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := http.NewClient(cfg.ToClientOptions())
	out := cmd.OutOrStdout()

	var firstErr error
	for _, u := range args {
		size, err := client.GetFileSize(ctx, u)
		if err != nil {
			fmt.Fprintf(out, "%s\terror: %v\n", u, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		fmt.Fprintf(out, "%s\t%d\t%s\n", u, size, formatBytes(size))
	}
	return firstErr
}
