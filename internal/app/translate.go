package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/verso/internal/cli"
	"horse.fit/verso/internal/translation"
)

func runTranslate(args []string) int {
	fs := flag.NewFlagSet("translate", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	fileUUID := fs.String("file-uuid", "", "Translate one file")
	project := fs.String("project", "", "Translate every file of a project")
	provider := fs.String("provider", "", "Completion provider (default from config)")
	requeueFailed := fs.Bool("requeue-failed", false, "Re-queue failed segments before translating")
	timeout := fs.Duration("timeout", 30*time.Minute, "Translation timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if (*fileUUID == "") == (*project == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --file-uuid or --project is required")
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

	opts := translation.RunOptions{
		Provider:      *provider,
		RequeueFailed: *requeueFailed,
	}

	var stats translation.RunStats
	if *fileUUID != "" {
		stats, err = rt.translator.TranslateFile(ctx, *fileUUID, opts, nil)
	} else {
		stats, err = rt.translator.TranslateProject(ctx, *project, opts, nil)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Translation failed: %v\n", err)
		return 1
	}

	fmt.Printf("translated %d/%d segments (%d failed, %d skipped)\n", stats.Translated, stats.Total, stats.Failed, stats.Skipped)
	if stats.FirstError != "" {
		fmt.Printf("first error: %s\n", stats.FirstError)
	}
	return 0
}
