package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/handiism/fetcher/internal/config"
	"github.com/handiism/fetcher/internal/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to config file")
	flag.Parse()

	settings, err := config.Load(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	// The UI owns the terminal, so logs only go to a configured file.
	if settings.Log.File == "" {
		zap.ReplaceGlobals(zap.NewNop())
	} else if err := config.InitLogger(settings.Log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = zap.L().Sync() }()

	if err := tui.Run(settings); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
