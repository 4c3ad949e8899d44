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
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/poiesic/docuverse/ai"
	"github.com/poiesic/docuverse/ai/openai"
	"github.com/poiesic/docuverse/httpapi"
	"github.com/poiesic/docuverse/orchestrator"
	"github.com/poiesic/docuverse/queue"
	"github.com/poiesic/docuverse/search"
	"github.com/poiesic/docuverse/storage"
	"github.com/poiesic/docuverse/storage/badger"
	"github.com/poiesic/docuverse/vector"
	"github.com/poiesic/docuverse/worker"
)

func main() {
	// .env is optional; flags and environment always win
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "docuverse",
		Usage: "Asynchronous document processing and semantic search",
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
				Usage:  "Run the orchestrator API server",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "listen",
						Usage:   "Address the API server listens on",
						Value:   ":8080",
						EnvVars: []string{"DOCUVERSE_LISTEN"},
					},
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
						Value:   "docuverse-db",
						EnvVars: []string{"DOCUVERSE_DB"},
					},
					&cli.StringFlag{
						Name:    "uploads-dir",
						Usage:   "Directory uploaded files are stored in (shared with workers)",
						Value:   "uploads",
						EnvVars: []string{"DOCUVERSE_UPLOADS_DIR"},
					},
					&cli.Int64Flag{
						Name:  "max-file-size",
						Usage: "Upload size limit in bytes (0 disables the limit)",
						Value: 50 << 20,
					},
					&cli.DurationFlag{
						Name:  "sweep-interval",
						Usage: "How often abandoned tasks are swept",
						Value: orchestrator.DefaultSweepInterval,
					},
					&cli.DurationFlag{
						Name:  "abandon-after",
						Usage: "Time without updates before an active task is failed",
						Value: orchestrator.DefaultAbandonAfter,
					},
					redisAddrFlag(), redisPasswordFlag(), redisDBFlag(), queueKeyFlag(),
					vectorStoreFlag(), postgresURLFlag(), vectorDimFlag(),
					embeddingHostFlag(), embeddingModelFlag(),
				},
			},
			{
				Name:   "work",
				Usage:  "Run a document processing worker",
				Action: workCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "callback-url",
						Usage:   "Base URL of the orchestrator API",
						Value:   "http://localhost:8080",
						EnvVars: []string{"DOCUVERSE_CALLBACK_URL"},
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Number of documents processed concurrently",
						Value: 2,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum chunk size in characters",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "chunk-overlap",
						Usage: "Overlap between consecutive chunks in characters",
						Value: 200,
					},
					redisAddrFlag(), redisPasswordFlag(), redisDBFlag(), queueKeyFlag(),
					vectorStoreFlag(), postgresURLFlag(), vectorDimFlag(),
					embeddingHostFlag(), embeddingModelFlag(),
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// Flags shared by serve and work.

func redisAddrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "redis-addr",
		Usage:   "Redis address for the job queue",
		Value:   "localhost:6379",
		EnvVars: []string{"DOCUVERSE_REDIS_ADDR"},
	}
}

func redisPasswordFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "redis-password",
		Usage:   "Redis password",
		EnvVars: []string{"DOCUVERSE_REDIS_PASSWORD"},
	}
}

func redisDBFlag() cli.Flag {
	return &cli.IntFlag{
		Name:    "redis-db",
		Usage:   "Redis database number",
		EnvVars: []string{"DOCUVERSE_REDIS_DB"},
	}
}

func queueKeyFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "queue-key",
		Usage: "Redis list key jobs are queued on",
		Value: "docuverse:jobs",
	}
}

func vectorStoreFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "vector-store",
		Usage:   "Vector store backend (redis or postgres)",
		Value:   "redis",
		EnvVars: []string{"DOCUVERSE_VECTOR_STORE"},
	}
}

func postgresURLFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "postgres-url",
		Usage:   "Postgres connection string (vector-store=postgres)",
		EnvVars: []string{"DOCUVERSE_POSTGRES_URL"},
	}
}

func vectorDimFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "vector-dim",
		Usage: "Embedding dimensions (vector-store=postgres)",
		Value: 1536,
	}
}

func embeddingHostFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "embedding-host",
		Usage:   "Embedding service host URL",
		Value:   "http://localhost:11434/v1",
		EnvVars: []string{"DOCUVERSE_EMBEDDING_HOST"},
	}
}

func embeddingModelFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "embedding-model",
		Usage:   "Embedding model name",
		Value:   "nomic-embed-text",
		EnvVars: []string{"DOCUVERSE_EMBEDDING_MODEL"},
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	taskRepo, err := badger.NewTaskRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create task repository: %w", err)
	}
	docRepo, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}

	jobs, err := newJobQueue(ctx, c)
	if err != nil {
		return err
	}
	defer jobs.Close()

	service, err := orchestrator.New(taskRepo, docRepo, jobs,
		orchestrator.WithUploadsDir(c.String("uploads-dir")),
		orchestrator.WithMaxFileSize(c.Int64("max-file-size")),
	)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}
	service.StartSweeper(ctx, c.Duration("sweep-interval"), c.Duration("abandon-after"))

	opts := []httpapi.Option{}
	if searcher, err := newSearcher(ctx, c, docRepo); err != nil {
		slog.Warn("search disabled", "err", err)
	} else {
		opts = append(opts, httpapi.WithSearcher(searcher))
	}

	server, err := httpapi.NewServer(service, opts...)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return server.ListenAndServe(ctx, c.String("listen"))
}

func workCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	jobs, err := newJobQueue(ctx, c)
	if err != nil {
		return err
	}
	defer jobs.Close()

	store, err := newVectorStore(ctx, c)
	if err != nil {
		return err
	}
	defer store.Close()

	embedder, err := newEmbedder(c)
	if err != nil {
		return err
	}

	callback := httpapi.NewCallbackClient(c.String("callback-url"))

	executor, err := worker.NewExecutor(jobs, nil, embedder, store, callback,
		worker.WithPoolSize(c.Int("pool-size")),
		worker.WithChunker(worker.NewChunker(c.Int("chunk-size"), c.Int("chunk-overlap"))),
	)
	if err != nil {
		return fmt.Errorf("failed to create executor: %w", err)
	}
	defer executor.Release()

	slog.Info("worker started",
		"queue", c.String("queue-key"), "pool_size", c.Int("pool-size"))
	return executor.Run(ctx)
}

func newJobQueue(ctx context.Context, c *cli.Context) (queue.JobQueue, error) {
	cfg := queue.DefaultRedisConfig()
	cfg.Addr = c.String("redis-addr")
	cfg.Password = c.String("redis-password")
	cfg.DB = c.Int("redis-db")
	cfg.Key = c.String("queue-key")

	jobs, err := queue.NewRedisQueue(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect job queue: %w", err)
	}
	return jobs, nil
}

func newVectorStore(ctx context.Context, c *cli.Context) (vector.Store, error) {
	switch c.String("vector-store") {
	case "postgres":
		cfg := vector.DefaultPgConfig()
		cfg.ConnString = c.String("postgres-url")
		cfg.Dimensions = c.Int("vector-dim")
		store, err := vector.NewPgStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect postgres vector store: %w", err)
		}
		return store, nil
	case "redis":
		cfg := vector.DefaultRedisConfig()
		cfg.Addr = c.String("redis-addr")
		cfg.Password = c.String("redis-password")
		cfg.DB = c.Int("redis-db")
		store, err := vector.NewRedisStore(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect redis vector store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q: must be redis or postgres", c.String("vector-store"))
	}
}

func newEmbedder(c *cli.Context) (ai.Embedder, error) {
	cfg := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid embedding configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return embedder, nil
}

func newSearcher(ctx context.Context, c *cli.Context, docs storage.DocumentRepository) (*search.Searcher, error) {
	store, err := newVectorStore(ctx, c)
	if err != nil {
		return nil, err
	}
	embedder, err := newEmbedder(c)
	if err != nil {
		store.Close()
		return nil, err
	}
	return search.New(embedder, store, docs)
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
