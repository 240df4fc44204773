package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"horse.fit/convene/internal/cli"
	"horse.fit/convene/internal/notify"
)

func runEnqueue(args []string) int {
	fs := flag.NewFlagSet("enqueue", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	file := fs.String("file", "", "Path to the raw document (default: stdin)")
	sourceURL := fs.String("source-url", "", "URL the document was acquired from")
	eventUUID := fs.String("event-uuid", "", "Re-enqueue an existing event instead of submitting a document")
	timeout := fs.Duration("timeout", 30*time.Second, "Submission timeout")

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

	service := rt.newService(notify.NewLogNotifier(rt.logger))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if uuid := strings.TrimSpace(*eventUUID); uuid != "" {
		job, coalesced, err := service.EnqueueEvent(ctx, uuid)
		if err != nil {
			rt.logger.Error().Err(err).Str("event_uuid", uuid).Msg("enqueue failed")
			fmt.Fprintf(os.Stderr, "Enqueue failed: %v\n", err)
			return 1
		}
		if coalesced {
			fmt.Printf("coalesced into active job %s (state %s)\n", job.JobUUID, job.State)
		} else {
			fmt.Printf("queued job %s\n", job.JobUUID)
		}
		return 0
	}

	document, err := readDocument(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read document: %v\n", err)
		return 1
	}

	job, newEventUUID, err := service.SubmitDocument(ctx, strings.TrimSpace(*sourceURL), document, time.Now().UTC())
	if err != nil {
		rt.logger.Error().Err(err).Msg("submit failed")
		fmt.Fprintf(os.Stderr, "Submit failed: %v\n", err)
		return 1
	}

	fmt.Printf("created event %s, queued job %s\n", newEventUUID, job.JobUUID)
	return 0
}

func readDocument(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
