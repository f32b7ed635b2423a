package app

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"horse.fit/verso/internal/cli"
	"horse.fit/verso/internal/db"
	"horse.fit/verso/internal/httpapi"
	"horse.fit/verso/internal/importer"
	"horse.fit/verso/internal/queue"
	"horse.fit/verso/internal/review"
	"horse.fit/verso/internal/taskpayload"
	"horse.fit/verso/internal/translation"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	envLoader := cli.AddEnvFlag(fs, ".env", "Path to the .env file")
	host := fs.String("host", "0.0.0.0", "Host interface to bind")
	port := fs.Int("port", 8090, "HTTP port")
	readTimeout := fs.Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	writeTimeout := fs.Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	shutdownTimeout := fs.Duration("shutdown-timeout", 10*time.Second, "Graceful shutdown timeout")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	if *port <= 0 || *port > 65535 {
		fmt.Fprintln(os.Stderr, "--port must be between 1 and 65535")
		return 2
	}

	rt, err := openRuntime(envLoader)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}
	defer rt.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		<-sigCh
		cancel()
	}()

	engine := queue.NewEngine(rt.logger, queue.Options{Workers: rt.cfg.QueueWorkers})
	if err := registerTaskHandlers(engine, rt.translator, rt.reviewer); err != nil {
		rt.logger.Error().Err(err).Msg("task handler registration failed")
		fmt.Fprintf(os.Stderr, "Failed to register task handlers: %v\n", err)
		return 1
	}
	engine.Start(ctx)
	defer engine.Wait()

	imp := importer.NewService(rt.pool, rt.logger)

	srv := httpapi.NewServer(rt.pool, engine, imp, rt.logger, httpapi.Options{
		Host:            *host,
		Port:            *port,
		ReadTimeout:     *readTimeout,
		WriteTimeout:    *writeTimeout,
		ShutdownTimeout: *shutdownTimeout,
	})

	if err := srv.Start(ctx); err != nil {
		rt.logger.Error().Err(err).Str("host", *host).Int("port", *port).Msg("server failed")
		fmt.Fprintf(os.Stderr, "Server failed: %v\n", err)
		return 1
	}

	return 0
}

// registerTaskHandlers binds every task type to its service call. Each
// handler validates and decodes its payload before doing any work, so a
// malformed submission fails without consuming a retry.
func registerTaskHandlers(engine *queue.Engine, translator *translation.Service, reviewer *review.Service) error {
	handlers := map[queue.TaskType]queue.Handler{
		queue.TaskTranslateFile: func(ctx context.Context, payload json.RawMessage, report func(queue.Progress)) (any, error) {
			var p taskpayload.TranslateFile
			if err := taskpayload.Decode(queue.TaskTranslateFile, payload, &p); err != nil {
				return nil, queue.Permanent(err)
			}
			return translator.TranslateFile(ctx, p.FileUUID, translation.RunOptions{
				Provider:      p.Provider,
				RequeueFailed: p.RequeueFailed,
			}, report)
		},
		queue.TaskTranslateProject: func(ctx context.Context, payload json.RawMessage, report func(queue.Progress)) (any, error) {
			var p taskpayload.TranslateProject
			if err := taskpayload.Decode(queue.TaskTranslateProject, payload, &p); err != nil {
				return nil, queue.Permanent(err)
			}
			return translator.TranslateProject(ctx, p.Project, translation.RunOptions{
				Provider:      p.Provider,
				RequeueFailed: p.RequeueFailed,
			}, report)
		},
		queue.TaskReviewSegment: func(ctx context.Context, payload json.RawMessage, report func(queue.Progress)) (any, error) {
			var p taskpayload.ReviewSegment
			if err := taskpayload.Decode(queue.TaskReviewSegment, payload, &p); err != nil {
				return nil, queue.Permanent(err)
			}
			return reviewer.ReviewSegment(ctx, p.SegmentUUID, review.RunOptions{Provider: p.Provider})
		},
		queue.TaskReviewBatch: func(ctx context.Context, payload json.RawMessage, report func(queue.Progress)) (any, error) {
			var p taskpayload.ReviewBatch
			if err := taskpayload.Decode(queue.TaskReviewBatch, payload, &p); err != nil {
				return nil, queue.Permanent(err)
			}
			return reviewer.ReviewBatch(ctx, p.SegmentUUIDs, review.BatchOptions{
				Provider:    p.Provider,
				Concurrency: p.Concurrency,
				BatchSize:   p.BatchSize,
				StopOnError: p.StopOnError,
			}, report)
		},
		queue.TaskReviewFile: func(ctx context.Context, payload json.RawMessage, report func(queue.Progress)) (any, error) {
			var p taskpayload.ReviewFile
			if err := taskpayload.Decode(queue.TaskReviewFile, payload, &p); err != nil {
				return nil, queue.Permanent(err)
			}
			return reviewer.ReviewFile(ctx, p.FileUUID, review.FileOptions{
				BatchOptions: review.BatchOptions{
					Provider:    p.Provider,
					Concurrency: p.Concurrency,
					BatchSize:   p.BatchSize,
					StopOnError: p.StopOnError,
				},
				IncludeStatuses: toStatuses(p.Include),
				ExcludeStatuses: toStatuses(p.Exclude),
				OnlyNew:         p.OnlyNew,
			}, report)
		},
		queue.TaskReviewText: func(ctx context.Context, payload json.RawMessage, report func(queue.Progress)) (any, error) {
			var p taskpayload.ReviewText
			if err := taskpayload.Decode(queue.TaskReviewText, payload, &p); err != nil {
				return nil, queue.Permanent(err)
			}
			return reviewer.ReviewText(ctx, p.SourceText, p.Translation, p.SourceLang, p.TargetLang, review.RunOptions{Provider: p.Provider})
		},
	}

	for taskType, handler := range handlers {
		if err := engine.Register(taskType, handler); err != nil {
			return err
		}
	}
	return nil
}

func toStatuses(raw []string) []db.SegmentStatus {
	if len(raw) == 0 {
		return nil
	}
	out := make([]db.SegmentStatus, 0, len(raw))
	for _, s := range raw {
		out = append(out, db.SegmentStatus(s))
	}
	return out
}
