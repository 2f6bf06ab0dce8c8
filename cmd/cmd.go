package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/pharmvec/pharmvec/internal/models"
	"github.com/pharmvec/pharmvec/pkg/audit"
	"github.com/pharmvec/pharmvec/pkg/auth"
	"github.com/pharmvec/pharmvec/pkg/config"
	"github.com/pharmvec/pharmvec/pkg/documents"
	"github.com/pharmvec/pharmvec/pkg/llm"
	"github.com/pharmvec/pharmvec/pkg/processor"
	"github.com/pharmvec/pharmvec/pkg/queue"
	"github.com/pharmvec/pharmvec/pkg/search"
	"github.com/pharmvec/pharmvec/pkg/store"
	"github.com/pharmvec/pharmvec/pkg/worker"
	"github.com/pharmvec/pharmvec/server"
)

func run(opts Options) error {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Command line flags win over config file and environment
	if opts.DBUrl != "" {
		cfg.Database.URL = opts.DBUrl
	}
	if opts.BaseURL != "" {
		cfg.Embedder.BaseURL = opts.BaseURL
	}
	if opts.Model != "" {
		cfg.Embedder.Model = opts.Model
	}
	if opts.Port != "" {
		cfg.Server.Port = opts.Port
	}
	if opts.VectorDim != 0 {
		cfg.Database.VectorDim = opts.VectorDim
	}
	if opts.Workers != 0 {
		cfg.Worker.Concurrency = opts.Workers
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		for _, e := range errs {
			color.Red("config: %s: %s", e.Field, e.Message)
		}
		return fmt.Errorf("invalid configuration")
	}

	switch opts.Mode {
	case "serve":
		return runServe(cfg)
	case "worker":
		return runWorker(cfg)
	case "reindex":
		return runReindex(cfg)
	default:
		return fmt.Errorf("unknown mode: %s", opts.Mode)
	}
}

func openBackends(cfg *config.Config) (*store.Postgres, *queue.Postgres, error) {
	st, err := store.NewPostgresWithConfig(store.PostgresConfig{
		ConnString: cfg.Database.URL,
		VectorDim:  cfg.Database.VectorDim,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize store: %v", err)
	}

	q, err := queue.NewPostgresWithConfig(queue.PostgresConfig{
		ConnString:        cfg.Database.URL,
		VisibilityTimeout: time.Duration(cfg.Queue.VisibilityTimeoutSeconds) * time.Second,
		PollInterval:      time.Duration(cfg.Queue.PollIntervalMillis) * time.Millisecond,
	})
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("failed to initialize task queue: %v", err)
	}

	return st, q, nil
}

func newEmbedder(cfg *config.Config) (*llm.Embedder, error) {
	return llm.NewEmbedderWithConfig(llm.EmbedderConfig{
		Model:         cfg.Embedder.Model,
		BaseURL:       cfg.Embedder.BaseURL,
		Dimension:     cfg.Database.VectorDim,
		MaxInputChars: cfg.Embedder.MaxInputChars,
		Timeout:       time.Duration(cfg.Embedder.TimeoutSeconds) * time.Second,
	})
}

func runServe(cfg *config.Config) error {
	st, q, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	defer q.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	auditLog := audit.New()
	docs := documents.NewService(st.Documents(), st.Vectors(), q, auditLog)
	coordinator := search.NewWithConfig(search.Config{
		DefaultLimit:  cfg.Search.DefaultLimit,
		MinSimilarity: cfg.Search.MinSimilarity,
	}, embedder, st.Documents(), st.Vectors(), auditLog)

	srv := server.NewWithConfig(server.Config{Port: cfg.Server.Port},
		docs, coordinator, auth.NewStatic(cfg.Auth.Tokens))

	color.Cyan("Serving document API on port %s", cfg.Server.Port)
	return srv.ListenAndServe()
}

func runWorker(cfg *config.Config) error {
	st, q, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	defer q.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize embedder: %v", err)
	}

	w := worker.NewWithConfig(worker.Config{
		Concurrency: cfg.Worker.Concurrency,
		MaxAttempts: cfg.Queue.MaxAttempts,
		RateLimit:   cfg.Embedder.RateLimit,
	}, q, st.Documents(), st.Vectors(), embedder, processor.NewWithConfig(processor.NormalizerConfig{
		MaxChars:  cfg.Embedder.MaxInputChars,
		StripHTML: true,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	color.Cyan("Embedding worker running with %d runners (model %s)",
		cfg.Worker.Concurrency, cfg.Embedder.Model)
	err = w.Start(ctx)
	color.Yellow("Shutting down")
	return err
}

func runReindex(cfg *config.Config) error {
	st, q, err := openBackends(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	defer q.Close()

	docs := documents.NewService(st.Documents(), st.Vectors(), q, audit.New())

	bar := getProgressBar(-1, " Re-enqueueing documents...")
	n, err := docs.Reindex(context.Background(), func(doc models.Document) {
		bar.Add(1)
	})
	bar.Finish()
	if err != nil {
		return fmt.Errorf("reindex failed after %d documents: %v", n, err)
	}

	color.Green("\n✓ Re-enqueued %d documents for embedding\n", n)
	return nil
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}
