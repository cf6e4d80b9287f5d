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

	"github.com/vk/bozogo/internal/app"
	"github.com/vk/bozogo/internal/builderr"
	"github.com/vk/bozogo/internal/cli"
)

// main is the entrypoint for the bozogo build runner.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Stdout, os.Args[1:])
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// run encapsulates the main application logic for easier testing and error handling.
func run(ctx context.Context, outW io.Writer, args []string) (err error) {
	appConfig, shouldExit, err := cli.Parse(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("build runner panicked: %v", r)
		}
	}()

	return app.NewApp(ctx, outW, appConfig).Run(ctx)
}

// exitCode reports err on w and returns the process exit status for it.
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return builderr.ExitOK
	}
	var exitErr *cli.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(w, exitErr.Message)
		return exitErr.Code
	}
	fmt.Fprintln(w, err)
	return builderr.ExitCode(err)
}
