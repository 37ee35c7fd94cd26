// Copyright 2025 Poiesic Systems
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
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/poiesic/convoflow"
	"github.com/poiesic/convoflow/ai"
	"github.com/poiesic/convoflow/ai/openai"
	"github.com/poiesic/convoflow/index/weaviate"
	"github.com/poiesic/convoflow/queue"
	badgerqueue "github.com/poiesic/convoflow/queue/badger"
	redisqueue "github.com/poiesic/convoflow/queue/redis"
	"github.com/poiesic/convoflow/source"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "convoflow",
		Usage: "Windows chat messages into conversations and indexes them for semantic search",
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
				Name:   "run",
				Usage:  "Run the ingestion pipeline until interrupted",
				Action: runCommand,
				Flags:  concat(queueFlags(), indexFlags(), embeddingFlags(), pipelineFlags()),
			},
			{
				Name:      "import",
				Usage:     "Enqueue messages from a chat export file",
				ArgsUsage: "chat_id=path [chat_id=path ...]",
				Action:    importCommand,
				Flags:     queueFlags(),
			},
			{
				Name:   "migrate",
				Usage:  "Create the conversation class in the vector index",
				Action: migrateCommand,
				Flags:  indexFlags(),
			},
			{
				Name:      "search",
				Usage:     "Run a similarity search against indexed conversations",
				ArgsUsage: "query",
				Action:    searchCommand,
				Flags: concat(indexFlags(), embeddingFlags(), []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"k"},
						Usage:   "Maximum number of results",
						Value:   5,
					},
				}),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func queueFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "redis-url",
			Usage: "Redis connection URL (e.g. redis://localhost:6379/0)",
		},
		&cli.StringFlag{
			Name:  "queue-key",
			Usage: "Redis list key holding pending messages",
			Value: "messages",
		},
		&cli.StringFlag{
			Name:    "db",
			Aliases: []string{"d"},
			Usage:   "Path to a BadgerDB directory for the embedded queue (ignored when --redis-url is set)",
		},
	}
}

func indexFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "weaviate-url",
			Usage: "Weaviate endpoint",
			Value: "http://localhost:8080",
		},
		&cli.StringFlag{
			Name:  "class",
			Usage: "Weaviate class name for conversations",
			Value: "Conversation",
		},
	}
}

func embeddingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "embedding-host",
			Usage: "Embedding service host URL",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
	}
}

func pipelineFlags() []cli.Flag {
	return []cli.Flag{
		&cli.DurationFlag{
			Name:  "session-gap",
			Usage: "Inactivity gap that splits conversations",
			Value: 2 * time.Hour,
		},
		&cli.DurationFlag{
			Name:  "late-grace",
			Usage: "Tolerance for out-of-order messages",
			Value: 30 * time.Second,
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "Target conversations per index upsert",
			Value: 64,
		},
		&cli.DurationFlag{
			Name:  "pacing",
			Usage: "Minimum delay between upsert batches",
			Value: 5 * time.Second,
		},
		&cli.DurationFlag{
			Name:  "poll-interval",
			Usage: "How often the queue is drained",
			Value: 5 * time.Second,
		},
	}
}

// openQueue selects the queue backend from flags: Redis when --redis-url is
// set, otherwise an embedded BadgerDB queue at --db.
func openQueue(c *cli.Context) (queue.Queue, func(), error) {
	if url := c.String("redis-url"); url != "" {
		q, err := redisqueue.NewQueue(redisqueue.Config{
			URL: url,
			Key: c.String("queue-key"),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		return q, func() { q.Close() }, nil
	}

	dbPath := c.String("db")
	if dbPath == "" {
		return nil, nil, fmt.Errorf("either --redis-url or --db is required")
	}

	backend, err := badgerqueue.OpenBackend(dbPath, false)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	q, err := badgerqueue.NewQueue(backend)
	if err != nil {
		backend.Close()
		return nil, nil, fmt.Errorf("failed to create queue: %w", err)
	}
	return q, func() {
		q.Close()
		backend.Close()
	}, nil
}

func concat(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, group := range groups {
		flags = append(flags, group...)
	}
	return flags
}

func newEmbedder(c *cli.Context) (ai.Embedder, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}
	return openai.NewEmbedder(aiConfig)
}

func runCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q, closeQueue, err := openQueue(c)
	if err != nil {
		return err
	}
	defer closeQueue()

	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}

	idx, err := weaviate.NewIndex(weaviate.Config{
		URL:       c.String("weaviate-url"),
		ClassName: c.String("class"),
	}, embedder)
	if err != nil {
		return fmt.Errorf("failed to connect to index: %w", err)
	}
	defer idx.Close()

	config, err := convoflow.NewConfig(
		convoflow.WithSessionGap(c.Duration("session-gap")),
		convoflow.WithLateGrace(c.Duration("late-grace")),
		convoflow.WithTargetBatchSize(c.Int("batch-size")),
		convoflow.WithUpsertPacing(c.Duration("pacing")),
		convoflow.WithPollInterval(c.Duration("poll-interval")),
	)
	if err != nil {
		return err
	}

	pipeline, err := convoflow.NewPipeline(q, idx, config)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	return pipeline.Run(ctx)
}

func importCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() == 0 {
		return fmt.Errorf("at least one chat_id=path argument is required")
	}

	q, closeQueue, err := openQueue(c)
	if err != nil {
		return err
	}
	defer closeQueue()

	total := 0
	for _, arg := range c.Args().Slice() {
		chatID, path, err := parseImportArg(arg)
		if err != nil {
			return err
		}

		msgs, err := source.ReadArchive(chatID, path)
		if err != nil {
			return fmt.Errorf("failed to read archive %s: %w", path, err)
		}
		if len(msgs) == 0 {
			fmt.Fprintf(os.Stderr, "%s: no messages\n", path)
			continue
		}

		if err := q.Enqueue(ctx, msgs...); err != nil {
			return fmt.Errorf("failed to enqueue messages from %s: %w", path, err)
		}

		fmt.Fprintf(os.Stderr, "%s: enqueued %d messages for chat %d\n", path, len(msgs), chatID)
		total += len(msgs)
	}

	fmt.Fprintf(os.Stderr, "enqueued %d messages\n", total)
	return nil
}

func parseImportArg(arg string) (int64, string, error) {
	idStr, path, found := strings.Cut(arg, "=")
	if !found {
		return 0, "", fmt.Errorf("invalid argument %q: expected chat_id=path", arg)
	}
	chatID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid chat id %q: %w", idStr, err)
	}
	return chatID, path, nil
}

func migrateCommand(c *cli.Context) error {
	ctx := context.Background()

	cfg := weaviate.Config{
		URL:       c.String("weaviate-url"),
		ClassName: c.String("class"),
	}
	if err := weaviate.Migrate(ctx, cfg); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Fprintf(os.Stderr, "class %s is ready at %s\n", cfg.ClassName, cfg.URL)
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}

	idx, err := weaviate.NewIndex(weaviate.Config{
		URL:       c.String("weaviate-url"),
		ClassName: c.String("class"),
	}, embedder)
	if err != nil {
		return fmt.Errorf("failed to connect to index: %w", err)
	}
	defer idx.Close()

	matches, err := idx.SimilaritySearch(ctx, query, c.Int("limit"))
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(matches) == 0 {
		fmt.Fprintln(os.Stderr, "no matches")
		return nil
	}

	for i, match := range matches {
		fmt.Printf("%d. [%.3f] chat %d, %s\n", i+1, match.Score, match.Meta.ChatID,
			time.Unix(match.Meta.StartTimestamp, 0).UTC().Format(time.RFC3339))
		fmt.Println(indent(match.Texts))
	}
	return nil
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = "   " + line
	}
	return strings.Join(lines, "\n")
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
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

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
