package main

import (
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/handiism/fetcher/internal/dispatch"
	"github.com/handiism/fetcher/internal/download"
)

var getCmd = &cobra.Command{
	Use:   "get <url>...",
	Short: "Download one or more URLs into the output directory",
	Long: `Download one or more URLs concurrently. Each URL is streamed into its own
file under the output directory; progress is reported per file.

Examples:
  # Download two files
  fetch get https://example.com/a.zip https://example.com/b.zip

  # Number the files and check sizes first
  fetch get --name "{index}-{name}" --probe https://example.com/a.zip`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

func init() {
	f := getCmd.Flags()
	f.StringP("output", "o", "", "output directory (overrides config)")
	f.String("name", "", "file name format: {name}, {host}, {index} (overrides config)")
	f.IntP("concurrency", "c", 0, "maximum concurrent fetches (overrides config)")
	f.Bool("probe", false, "sum advertised sizes with HEAD requests before downloading")
	f.BoolP("verbose", "v", false, "show per-file progress")

	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	f := cmd.Flags()
	if v, _ := f.GetString("output"); v != "" {
		cfg.OutputDir = v
	}
	if v, _ := f.GetString("name"); v != "" {
		cfg.FileNameFormat = v
	}
	if v, _ := f.GetInt("concurrency"); v > 0 {
		cfg.MaxConcurrentFetches = v
	}
	verbose, _ := f.GetBool("verbose")
	probe, _ := f.GetBool("probe")

	urls := download.ParseInputURLs(strings.Join(args, "\n"))
	if len(urls) == 0 {
		return eris.New("no http(s) URLs given")
	}

	out := cmd.OutOrStdout()
	loop := dispatch.NewLoop()
	pool := dispatch.NewPool(cfg.MaxConcurrentFetches)
	manager := download.NewManager(cfg, pool, loop, func(event download.ProgressEvent) {
		printEvent(out, event, verbose)
	})

	if probe {
		if total := manager.Probe(ctx, urls); total > 0 {
			fmt.Fprintf(out, "Total size: %s\n", formatBytes(total))
		}
	}

	zap.L().Info("starting downloads", zap.Int("count", len(urls)), zap.String("output", cfg.OutputDir))

	var summary download.Summary
	manager.Start(ctx, urls, func(s download.Summary) {
		summary = s
		loop.Quit()
	})
	if err := loop.Run(ctx); err != nil {
		return eris.Wrap(err, "interrupted")
	}

	fmt.Fprintf(out, "\n%d succeeded, %d failed in %s\n", summary.Succeeded, summary.Failed, summary.Elapsed.Round(time.Millisecond))
	if summary.Failed > 0 {
		return eris.Errorf("%d of %d downloads failed", summary.Failed, len(summary.Results))
	}
	return nil
}

func printEvent(w io.Writer, event download.ProgressEvent, verbose bool) {
	if event.Level == download.LevelVerbose && !verbose {
		return
	}

	prefix := ""
	switch event.Level {
	case download.LevelError:
		prefix = "✗ "
	case download.LevelWarning:
		prefix = "! "
	case download.LevelSuccess:
		prefix = "✓ "
	case download.LevelInfo:
		prefix = "› "
	default:
		prefix = "  "
	}

	fmt.Fprintln(w, prefix+event.Message)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
