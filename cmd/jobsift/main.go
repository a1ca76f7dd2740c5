// Copyright 2025 Jobsift Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jobsift/jobsift"
	"github.com/jobsift/jobsift/ai"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "jobsift",
		Usage: "LLM pipeline for job postings and resumes",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the processing pipeline until interrupted",
				Action: serveCommand,
				Flags:  append(systemFlags(), &cli.DurationFlag{
					Name:  "queue-interval",
					Usage: "How often the job queue is processed",
					Value: 30 * time.Second,
				}),
			},
			{
				Name:      "ingest",
				Usage:     "Store a captured document and start its pipeline",
				ArgsUsage: "<file>",
				Action:    ingestCommand,
				Flags: append(systemFlags(),
					&cli.StringFlag{
						Name:     "subject",
						Aliases:  []string{"s"},
						Usage:    "Subject (user) ID owning the document",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "doc",
						Usage: "Document ID (derived from content when omitted)",
					},
					&cli.StringFlag{
						Name:  "url",
						Usage: "Source URL of the captured document",
					},
				),
			},
			{
				Name:  "queue",
				Usage: "Manage the external job queue",
				Subcommands: []*cli.Command{
					{
						Name:      "add",
						Usage:     "Enqueue a scraping job",
						ArgsUsage: "<job-id>",
						Action:    queueAddCommand,
						Flags:     systemFlags(),
					},
					{
						Name:   "process",
						Usage:  "Claim and submit pending jobs once",
						Action: queueProcessCommand,
						Flags:  systemFlags(),
					},
					{
						Name:   "stats",
						Usage:  "Print queue counters",
						Action: queueStatsCommand,
						Flags:  systemFlags(),
					},
					{
						Name:   "requeue-stale",
						Usage:  "Return jobs stuck in processing to pending",
						Action: queueRequeueStaleCommand,
						Flags: append(systemFlags(), &cli.DurationFlag{
							Name:  "older-than",
							Usage: "Age beyond which a processing job counts as stuck",
							Value: 10 * time.Minute,
						}),
					},
					{
						Name:   "errors",
						Usage:  "List jobs that failed permanently",
						Action: queueErrorsCommand,
						Flags:  systemFlags(),
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func systemFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:  "ai-host",
			Usage: "OpenAI-compatible service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "ai-model",
			Usage: "Model name for the OpenAI-compatible service",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:    "ai-token",
			Usage:   "API token for the OpenAI-compatible service",
			EnvVars: []string{"JOBSIFT_AI_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "gemini-key",
			Usage:   "Gemini API key (scoring falls back to ai-host when unset)",
			EnvVars: []string{"JOBSIFT_GEMINI_KEY"},
		},
		&cli.StringFlag{
			Name:  "gemini-model",
			Usage: "Gemini model name",
			Value: "gemini-2.0-flash",
		},
		&cli.StringFlag{
			Name:  "scrape-url",
			Usage: "Base URL of the external scraping service",
			Value: "http://localhost:8090",
		},
		&cli.IntFlag{
			Name:  "max-jobs",
			Usage: "Maximum concurrent external jobs",
			Value: 4,
		},
	}
}

func openSystem(ctx context.Context, c *cli.Context) (*jobsift.System, error) {
	cfg := ai.NewConfig(
		ai.WithHost(c.String("ai-host")),
		ai.WithModel(c.String("ai-model")),
		ai.WithToken(c.String("ai-token")),
		ai.WithGeminiAPIKey(c.String("gemini-key")),
		ai.WithGeminiModel(c.String("gemini-model")),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}

	system, err := jobsift.Open(ctx, c.String("db"),
		jobsift.WithAIConfig(cfg),
		jobsift.WithMaxConcurrentJobs(c.Int("max-jobs"), c.Int("max-jobs")),
		jobsift.WithScrapeServiceURL(c.String("scrape-url")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open system: %w", err)
	}
	return system, nil
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	interval := c.Duration("queue-interval")
	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Queue interval: %s\n", interval)
	fmt.Fprintln(os.Stderr, "Pipeline running; press Ctrl+C to stop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "Shutting down")
			system.Drain()
			return nil
		case <-ticker.C:
			if _, err := system.Queue().RequeueStale(ctx, 10*interval); err != nil {
				slog.Error("stale-job requeue failed", "err", err)
			}
			report, err := system.Queue().ProcessQueue(ctx)
			if err != nil {
				slog.Error("queue processing failed", "err", err)
				continue
			}
			if report.Claimed > 0 {
				slog.Info("queue processed",
					"claimed", report.Claimed,
					"submitted", report.Submitted,
					"requeued", report.Requeued,
					"errored", report.Errored)
			}
		}
	}
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one file argument")
	}

	rawText, err := os.ReadFile(c.Args().First())
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	ctx := context.Background()
	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	docID, err := system.Ingest(ctx, c.String("subject"), c.String("doc"), string(rawText), c.String("url"))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	// Let the pipeline finish before the backend closes.
	system.Drain()

	fmt.Printf("ingested document %s for subject %s\n", docID, c.String("subject"))
	return nil
}

func queueAddCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("expected exactly one job-id argument")
	}

	ctx := context.Background()
	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	if err := system.Queue().AddToQueue(ctx, c.Args().First()); err != nil {
		return fmt.Errorf("failed to enqueue job: %w", err)
	}
	fmt.Printf("job %s enqueued\n", c.Args().First())
	return nil
}

func queueProcessCommand(c *cli.Context) error {
	ctx := context.Background()
	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	report, err := system.Queue().ProcessQueue(ctx)
	if err != nil {
		return fmt.Errorf("queue processing failed: %w", err)
	}

	fmt.Printf("claimed: %d\nsubmitted: %d\nrequeued: %d\nerrored: %d\n",
		report.Claimed, report.Submitted, report.Requeued, report.Errored)
	return nil
}

func queueRequeueStaleCommand(c *cli.Context) error {
	ctx := context.Background()
	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	requeued, err := system.Queue().RequeueStale(ctx, c.Duration("older-than"))
	if err != nil {
		return fmt.Errorf("stale-job requeue failed: %w", err)
	}
	fmt.Printf("requeued: %d\n", requeued)
	return nil
}

func queueErrorsCommand(c *cli.Context) error {
	ctx := context.Background()
	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	entries, err := system.Queue().ErroredJobs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list errored jobs: %w", err)
	}
	for _, entry := range entries {
		fmt.Printf("%s\tretries=%d\tfailed=%s\n", entry.JobID, entry.RetryCount, entry.UpdatedAt.Format(time.RFC3339))
	}
	return nil
}

func queueStatsCommand(c *cli.Context) error {
	ctx := context.Background()
	system, err := openSystem(ctx, c)
	if err != nil {
		return err
	}
	defer system.Close()

	stats, err := system.Queue().Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue stats: %w", err)
	}

	fmt.Printf("pending: %d\nprocessing: %d\nerrored: %d\nactive: %d\n",
		stats.Pending, stats.Processing, stats.Errored, stats.Active)
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
