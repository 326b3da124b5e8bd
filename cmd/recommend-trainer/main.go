// Package main 推荐模型离线训练入口：读库、训练、落盘权重
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"muse-chat-api/internal/application/recommend"
	"muse-chat-api/internal/config"
	"muse-chat-api/internal/infrastructure/persistence/postgres"
	"muse-chat-api/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		logger.Fatal(ctx, "failed to init postgres", err)
	}
	defer func() { _ = pgClient.Close() }()

	svc := recommend.NewService(
		postgres.NewMusicalRepository(pgClient),
		nil, // 训练只走数据库，不经过目录缓存
		recommend.ServiceOptions{
			WeightsPath:      cfg.Recommend.WeightsPath,
			EmbeddingDim:     cfg.Recommend.EmbeddingDim,
			Epochs:           cfg.Recommend.Epochs,
			BatchSize:        cfg.Recommend.BatchSize,
			LearningRate:     cfg.Recommend.LearningRate,
			NegativeRatio:    cfg.Recommend.NegativeRatio,
			MinCastPositives: cfg.Recommend.MinCastPositives,
			Seed:             cfg.Recommend.Seed,
		},
	)

	logger.Info(ctx, "recommend training started", "weights_path", cfg.Recommend.WeightsPath)
	if err := svc.Train(ctx); err != nil {
		logger.Fatal(ctx, "recommend training failed", err)
	}
	logger.Info(ctx, "recommend training finished", "weights_path", cfg.Recommend.WeightsPath)
}
