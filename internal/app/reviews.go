package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/convene/internal/cli"
)

func runReviews(args []string) int {
	fs := flag.NewFlagSet("reviews", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	state := fs.String("state", "pending", "Filter by review state (pending, approved, rejected, or all)")
	limit := fs.Int("limit", 50, "Maximum number of reviews to list")
	timeout := fs.Duration("timeout", 10*time.Second, "Query timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	filter := strings.TrimSpace(strings.ToLower(*state))
	switch filter {
	case "pending", "approved", "rejected":
	case "all":
		filter = ""
	default:
		fmt.Fprintln(os.Stderr, "--state must be pending, approved, rejected, or all")
		return 2
	}
	if *limit < 1 {
		fmt.Fprintln(os.Stderr, "--limit must be >= 1")
		return 2
	}

	rt, code := setupRuntime(envLoader, 10*time.Second)
	if code != 0 {
		return code
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	items, err := rt.pool.ListReviewItems(ctx, filter, *limit)
	if err != nil {
		rt.logger.Error().Err(err).Msg("list reviews failed")
		fmt.Fprintf(os.Stderr, "Failed to list reviews: %v\n", err)
		return 1
	}

	if len(items) == 0 {
		fmt.Println("no review items")
		return 0
	}

	for _, item := range items {
		fmt.Printf("%s  %-8s  %-8s  %.4f  entities %d/%d  created %s\n",
			item.ReviewItemUUID,
			item.EntityKind,
			item.State,
			item.Similarity,
			item.LeftEntityID,
			item.RightEntityID,
			item.CreatedAt.Format(time.RFC3339),
		)
	}
	return 0
}
