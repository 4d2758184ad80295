package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/cubeproducts/internal/app"
	"github.com/vk/cubeproducts/internal/cli"
)

// main is the entrypoint for the cubeproducts application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()

	// The real main function handles errors and exit codes.
	if err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	loader, err := app.LoaderFor(appConfig.ConfigPaths)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	productsApp, err := app.NewApp(outW, appConfig, loader)
	if err != nil {
		return startupExit(err)
	}

	return startupExit(productsApp.Run(ctx))
}

// startupExit maps startup failures to the usage exit code. Other errors are
// returned unchanged.
func startupExit(err error) error {
	if errors.Is(err, app.ErrStartup) {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}
	return err
}
