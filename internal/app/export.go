package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"horse.fit/verso/internal/cli"
	"horse.fit/verso/internal/xliff"
)

func runExport(args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	fileUUID := fs.String("file-uuid", "", "UUID of the file to export")
	outPath := fs.String("out", "", "Output path (stdout when empty)")
	timeout := fs.Duration("timeout", 60*time.Second, "Export timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *fileUUID == "" {
		fmt.Fprintln(os.Stderr, "--file-uuid is required")
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

	file, err := rt.pool.GetFileByUUID(ctx, *fileUUID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load file: %v\n", err)
		return 1
	}
	if file.Format != "xliff" {
		fmt.Fprintf(os.Stderr, "File %s is %s; only interchange files can be exported\n", file.Name, file.Format)
		return 1
	}

	dialect, err := xliff.DialectByName(file.Dialect)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	segments, err := rt.pool.ListSegmentsByFile(ctx, file.FileID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load segments: %v\n", err)
		return 1
	}

	out, warnings, err := xliff.Inject(file.OriginalContent, segments, dialect)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export failed: %v\n", err)
		return 1
	}
	for _, w := range warnings {
		rt.logger.Warn().Str("unit_id", w.UnitID).Str("reason", w.Reason).Msg("segment skipped on export")
	}

	if *outPath == "" {
		os.Stdout.Write(out)
		return 0
	}
	if err := os.WriteFile(*outPath, out, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		return 1
	}

	fmt.Printf("exported %s to %s (%d segments, %d skipped)\n", file.Name, *outPath, len(segments), len(warnings))
	return 0
}
