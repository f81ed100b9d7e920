package main

import (
	"context"
	"errors"
	"os"

	"github.com/desertthunder/spotbar/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	runner := NewRunner(RunnerOpts{Logger: logger})

	app := &cli.Command{
		Name:     "spotbar",
		Usage:    "Spotify now-playing status and playback controls",
		Version:  "0.1.0",
		Flags:    []cli.Flag{configFlag(), ephemeralFlag()},
		Before:   runner.Configure,
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			os.Exit(130)
		case errors.Is(err, shared.ErrConfiguration), errors.Is(err, shared.ErrInvalidConfig):
			logger.Error("configuration error", "error", err)
			logger.Info("run `spotbar config init` and set spotify.client_id")
			os.Exit(2)
		case errors.Is(err, shared.ErrAuthRequired):
			logger.Error("not authorized", "error", err)
			logger.Info("run `spotbar auth login` first")
			os.Exit(1)
		default:
			logger.Fatalf("application error: %v", err)
		}
	}
}
