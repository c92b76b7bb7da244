package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/handiism/fetcher/internal/dispatch"
	"github.com/handiism/fetcher/internal/fetch"
	"github.com/handiism/fetcher/internal/http"
	"github.com/handiism/fetcher/internal/media"
	"github.com/handiism/fetcher/internal/sink"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <url>",
	Short: "Fetch a URL into memory and describe its content",
	Long: `Fetch a URL into memory and report what it is. Images are decoded for
format and dimensions; MP3 files are read for ID3v2 tags.

Examples:
  fetch inspect https://example.com/cover.png
  fetch inspect --thumbnail cover.jpg --thumbnail-size 200 https://example.com/cover.png`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.String("thumbnail", "", "write a JPEG thumbnail of an image to this path")
	f.Int("thumbnail-size", 128, "maximum thumbnail width and height")

	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	thumbPath, _ := cmd.Flags().GetString("thumbnail")
	thumbSize := 0
	if thumbPath != "" {
		thumbSize, _ = cmd.Flags().GetInt("thumbnail-size")
	}

	loop := dispatch.NewLoop()
	provider := http.NewProvider(cfg.ToClientOptions(), false)
	opts := append(cfg.ToFetchOptions(), fetch.WithLogger(zap.L().Named("inspect")))
	fetcher := fetch.New[media.Info](provider, dispatch.NewPool(1), loop, media.NewInfoParser(thumbSize), opts...)

	var (
		info     media.Info
		fetchErr error
	)
	fetcher.Fetch(ctx, args[0], sink.NewMemoryFactory(),
		fetch.CallbackFuncs[media.Info]{
			OnResult: func(i media.Info) {
				info = i
				loop.Quit()
			},
			OnError: func(err error) {
				fetchErr = err
				loop.Quit()
			},
		},
		nil,
	)
	if err := loop.Run(ctx); err != nil {
		return eris.Wrap(err, "interrupted")
	}
	if fetchErr != nil {
		return fetchErr
	}

	printInfo(cmd.OutOrStdout(), info)

	if thumbPath != "" {
		if info.Image == nil || info.Image.Thumbnail == nil {
			return eris.New("no thumbnail: content is not an image")
		}
		if err := os.WriteFile(thumbPath, info.Image.Thumbnail, 0644); err != nil {
			return eris.Wrapf(err, "write thumbnail %s", thumbPath)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Thumbnail:    %s\n", thumbPath)
	}
	return nil
}

func printInfo(w io.Writer, info media.Info) {
	fmt.Fprintf(w, "Kind:         %s\n", info.Kind)
	fmt.Fprintf(w, "Content type: %s\n", info.ContentType)
	fmt.Fprintf(w, "Size:         %s\n", formatBytes(int64(info.Size)))

	if img := info.Image; img != nil {
		fmt.Fprintf(w, "Format:       %s\n", img.Format)
		fmt.Fprintf(w, "Dimensions:   %dx%d\n", img.Width, img.Height)
	}
	if tags := info.Tags; tags != nil {
		fmt.Fprintf(w, "ID3:          v2.%d\n", tags.Version)
		fmt.Fprintf(w, "Title:        %s\n", tags.Title)
		fmt.Fprintf(w, "Artist:       %s\n", tags.Artist)
		fmt.Fprintf(w, "Album:        %s\n", tags.Album)
		if tags.Year != "" {
			fmt.Fprintf(w, "Year:         %s\n", tags.Year)
		}
		if tags.Genre != "" {
			fmt.Fprintf(w, "Genre:        %s\n", tags.Genre)
		}
		if tags.Track != "" {
			fmt.Fprintf(w, "Track:        %s\n", tags.Track)
		}
		fmt.Fprintf(w, "Artwork:      %t\n", tags.HasArtwork)
	}
}
