package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"horse.fit/verso/internal/cli"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/review"
)

func runReview(args []string) int {
	fs := flag.NewFlagSet("review", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	fileUUID := fs.String("file-uuid", "", "Review every eligible segment of one file")
	segmentUUID := fs.String("segment-uuid", "", "Review one segment")
	sourceText := fs.String("source", "", "Ad-hoc review: source text")
	translationText := fs.String("translation", "", "Ad-hoc review: translation text")
	sourceLang := fs.String("source-lang", "", "Ad-hoc review: source language")
	targetLang := fs.String("target-lang", "", "Ad-hoc review: target language")
	provider := fs.String("provider", "", "Completion provider (default from config)")
	concurrency := fs.Int("concurrency", 0, "In-flight reviews per batch (default from config)")
	batchSize := fs.Int("batch-size", 0, "Segments per batch (default from config)")
	stopOnError := fs.Bool("stop-on-error", false, "Abort unstarted reviews after the first failure")
	onlyNew := fs.Bool("only-new", false, "Skip segments that already have a review outcome")
	includeRaw := fs.String("include", "", "Comma-separated segment statuses to review (file mode)")
	excludeRaw := fs.String("exclude", "", "Comma-separated segment statuses to skip (file mode)")
	timeout := fs.Duration("timeout", 30*time.Minute, "Review timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	modes := 0
	if *fileUUID != "" {
		modes++
	}
	if *segmentUUID != "" {
		modes++
	}
	if *sourceText != "" || *translationText != "" {
		modes++
	}
	if modes != 1 {
		fmt.Fprintln(os.Stderr, "exactly one of --file-uuid, --segment-uuid, or --source/--translation is required")
		return 2
	}

	rt, err := openRuntime(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer rt.close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch {
	case *segmentUUID != "":
		result, err := rt.reviewer.ReviewSegment(ctx, *segmentUUID, review.RunOptions{Provider: *provider})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Review failed: %v\n", err)
			return 1
		}
		printJSON(result)
	case *fileUUID != "":
		include, err := parseStatuses(*includeRaw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--include: %v\n", err)
			return 2
		}
		exclude, err := parseStatuses(*excludeRaw)
		if err != nil {
			fmt.Fprintf(os.Stderr, "--exclude: %v\n", err)
			return 2
		}
		result, err := rt.reviewer.ReviewFile(ctx, *fileUUID, review.FileOptions{
			BatchOptions: review.BatchOptions{
				Provider:    *provider,
				Concurrency: *concurrency,
				BatchSize:   *batchSize,
				StopOnError: *stopOnError,
			},
			IncludeStatuses: include,
			ExcludeStatuses: exclude,
			OnlyNew:         *onlyNew,
		}, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Review failed: %v\n", err)
			return 1
		}
		fmt.Printf("reviewed %d/%d segments (%d failed, %d skipped)\n", result.Succeeded, result.Total, result.Failed, result.Skipped)
		if result.FirstError != "" {
			fmt.Printf("first error: %s\n", result.FirstError)
		}
	default:
		if *sourceText == "" || *translationText == "" {
			fmt.Fprintln(os.Stderr, "both --source and --translation are required for an ad-hoc review")
			return 2
		}
		result, err := rt.reviewer.ReviewText(ctx, *sourceText, *translationText, *sourceLang, *targetLang, review.RunOptions{Provider: *provider})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Review failed: %v\n", err)
			return 1
		}
		printJSON(result)
	}

	return 0
}

// parseStatuses splits a comma-separated status list, rejecting values
// outside the segment status set.
func parseStatuses(raw string) ([]db.SegmentStatus, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, ",")
	out := make([]db.SegmentStatus, 0, len(parts))
	for _, part := range parts {
		status := db.SegmentStatus(strings.TrimSpace(part))
		if !db.IsValidSegmentStatus(status) {
			return nil, fmt.Errorf("unknown segment status %q", status)
		}
		out = append(out, status)
	}
	return out, nil
}

func printJSON(value any) {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode result: %v\n", err)
		return
	}
	fmt.Println(string(encoded))
}
