// cmd/consolidate/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"mirror/internal/config"
	"mirror/internal/db"
	"mirror/internal/logging"
	"mirror/internal/repository"
	"mirror/internal/services"
)

// One consolidation sweep per invocation; schedule it with cron.
func main() {
	cfg := config.MustLoad()
	log := logging.Must(cfg.LogLevel, cfg.Environment).With(zap.String("job", "consolidate"))
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("consolidation failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	database, err := db.New(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer database.Close()

	llm := services.NewLLMClient(cfg.LLM.APIURL, cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.MaxTokens, cfg.LLM.Timeout)

	var archive services.Archiver
	if cfg.Archive.Bucket != "" {
		s3cfg, err := config.NewS3Config(ctx, cfg.Archive)
		if err != nil {
			return err
		}
		archive = services.NewS3Archiver(s3cfg.Client, s3cfg.Bucket)
		log.Info("archiving consolidation output", zap.String("bucket", s3cfg.Bucket))
	}

	c := services.NewConsolidator(
		repository.NewPatternRepository(database.DB),
		llm,
		archive,
		log,
		cfg.Consolidation.BatchSize,
		cfg.Consolidation.BatchLimit,
	)

	sum, err := c.Run(ctx)
	if err != nil {
		return err
	}
	if sum.Failed > 0 {
		log.Warn("some batches failed", zap.Int("failed", sum.Failed), zap.Int("batches", sum.Batches))
	}
	return nil
}
