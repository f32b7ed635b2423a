package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"horse.fit/verso/internal/cli"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/importer"
)

func runImport(args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	filePath := fs.String("file", "", "Path to the document to import")
	pageURL := fs.String("url", "", "Fetch and import an HTML page instead of a local file")
	project := fs.String("project", "", "Project the file belongs to")
	name := fs.String("name", "", "Display name (defaults to the file name)")
	format := fs.String("format", "xliff", "Document format: xliff or html")
	dialect := fs.String("dialect", "standard", "Interchange dialect: standard or vendor")
	sourceLang := fs.String("source-lang", "", "Source language (detected when empty)")
	targetLang := fs.String("target-lang", "", "Target language")
	timeout := fs.Duration("timeout", 60*time.Second, "Import timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if (*filePath == "") == (*pageURL == "") {
		fmt.Fprintln(os.Stderr, "exactly one of --file or --url is required")
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

	svc := importer.NewService(rt.pool, rt.logger)
	params := importer.Params{
		Project:    *project,
		Name:       *name,
		Dialect:    *dialect,
		SourceLang: *sourceLang,
		TargetLang: *targetLang,
	}

	var file db.TranslationFile
	switch {
	case *pageURL != "":
		file, err = svc.ImportHTMLFromURL(ctx, *pageURL, params, importer.FetchOptions{})
	default:
		data, readErr := os.ReadFile(*filePath)
		if readErr != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *filePath, readErr)
			return 1
		}
		if params.Name == "" {
			params.Name = filepath.Base(*filePath)
		}
		switch strings.ToLower(strings.TrimSpace(*format)) {
		case "", "xliff":
			file, err = svc.ImportXLIFF(ctx, data, params)
		case "html":
			file, err = svc.ImportHTML(ctx, data, "", params)
		default:
			fmt.Fprintln(os.Stderr, "--format must be xliff or html")
			return 2
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Import failed: %v\n", err)
		return 1
	}

	fmt.Printf("imported %s (%d segments) as %s\n", file.Name, file.SegmentCount, file.FileUUID)
	return 0
}
