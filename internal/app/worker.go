package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/convene/internal/cli"
)

func runWorker(args []string) int {
	fs := flag.NewFlagSet("worker", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	rt, code := setupRuntime(envLoader, 10*time.Second)
	if code != 0 {
		return code
	}
	defer rt.close()

	notifier := rt.notifier()
	defer func() { _ = notifier.Close() }()

	service := rt.newService(notifier)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		rt.logger.Info().Msg("shutdown signal received")
		cancel()
	}()

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rt.logger.Error().Err(err).Msg("worker failed")
		fmt.Fprintf(os.Stderr, "Worker failed: %v\n", err)
		return 1
	}
	return 0
}
