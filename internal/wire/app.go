// Package wire 提供依赖装配
package wire

import (
	"context"
	"fmt"

	"muse-chat-api/internal/application/chat"
	"muse-chat-api/internal/application/recommend"
	"muse-chat-api/internal/config"
	infraembedding "muse-chat-api/internal/infrastructure/embedding"
	"muse-chat-api/internal/infrastructure/llm"
	"muse-chat-api/internal/infrastructure/persistence/milvus"
	"muse-chat-api/internal/infrastructure/persistence/postgres"
	"muse-chat-api/internal/infrastructure/persistence/redis"
	"muse-chat-api/internal/infrastructure/rerank"
	"muse-chat-api/internal/interfaces/http/handler"
	"muse-chat-api/internal/interfaces/http/router"
	"muse-chat-api/internal/workflow/chain"
	"muse-chat-api/pkg/logger"
)

// App 装配完成的应用
type App struct {
	Config *config.Config
	Router *router.Router

	PgClient     *postgres.Client
	RedisClient  *redis.Client
	MilvusClient *milvus.Client

	ChatService      *chat.Service
	RecommendService *recommend.Service
	VectorRepo       *milvus.ChatVectorRepository
}

// DataLayer 数据层依赖容器
type DataLayer struct {
	PgClient    *postgres.Client
	TxManager   *postgres.TxManager
	SessionRepo *postgres.ChatSessionRepository
	TurnRepo    *postgres.ChatTurnRepository
	ExhibitRepo *postgres.ExhibitionRepository
	MusicalRepo *postgres.MusicalRepository

	RedisClient *redis.Client
	Cache       *redis.Cache
	Pending     *redis.PendingStateStore
	RateLimiter *redis.RateLimiter

	MilvusClient *milvus.Client
	VectorRepo   *milvus.ChatVectorRepository
}

// InitializeDataLayer 初始化数据层
func InitializeDataLayer(ctx context.Context, cfg *config.Config) (*DataLayer, func(), error) {
	pgClient, err := postgres.NewClient(&cfg.Database.Postgres)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init postgres: %w", err)
	}

	redisClient, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		_ = pgClient.Close()
		return nil, nil, fmt.Errorf("failed to init redis: %w", err)
	}

	// Milvus 可选：未配置时检索阶段返回向量库不可用
	var milvusClient *milvus.Client
	var vectorRepo *milvus.ChatVectorRepository
	if cfg.Vector.Milvus.Host != "" {
		milvusClient, err = milvus.NewClient(ctx, &cfg.Vector.Milvus)
		if err != nil {
			_ = pgClient.Close()
			_ = redisClient.Close()
			return nil, nil, fmt.Errorf("failed to init milvus: %w", err)
		}
		vectorRepo = milvus.NewChatVectorRepository(milvus.NewRepository(milvusClient))
	} else {
		logger.Warn(ctx, "milvus host not configured, vector retrieval disabled")
	}

	dl := &DataLayer{
		PgClient:     pgClient,
		TxManager:    postgres.NewTxManager(pgClient),
		SessionRepo:  postgres.NewChatSessionRepository(pgClient),
		TurnRepo:     postgres.NewChatTurnRepository(pgClient),
		ExhibitRepo:  postgres.NewExhibitionRepository(pgClient),
		MusicalRepo:  postgres.NewMusicalRepository(pgClient),
		RedisClient:  redisClient,
		Cache:        redis.NewCache(redisClient),
		Pending:      redis.NewPendingStateStore(redisClient),
		RateLimiter:  redis.NewRateLimiter(redisClient),
		MilvusClient: milvusClient,
		VectorRepo:   vectorRepo,
	}

	cleanup := func() {
		if milvusClient != nil {
			_ = milvusClient.Close()
		}
		_ = redisClient.Close()
		_ = pgClient.Close()
	}
	return dl, cleanup, nil
}

// InitializeApp 装配完整应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	dl, cleanup, err := InitializeDataLayer(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// Embedding 与 LLM 工作流
	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to init embedder: %w", err)
	}

	factory := llm.NewEinoFactory(cfg)
	hydeChain := chain.NewHydeChain(factory)
	rewriteChain := chain.NewRewriteChain(factory)
	chatProvider := chain.NewChatProvider(hydeChain, rewriteChain, &cfg.LLM)

	rerankClient := rerank.NewClient(&cfg.Rerank)

	pipeline := chat.NewPipeline(
		chatProvider,
		chatProvider,
		embedder,
		dl.VectorRepo,
		rerankClient,
		dl.ExhibitRepo,
		chat.Options{
			TopK:                cfg.Pipeline.TopK,
			ExactSearch:         cfg.Pipeline.ExactSearch,
			SimilarityThreshold: cfg.Pipeline.SimilarityThreshold,
			MaxRewrites:         cfg.Pipeline.MaxRewrites,
			StageTimeout:        cfg.Pipeline.StageTimeout,
		},
	)

	chatService := chat.NewService(pipeline, dl.SessionRepo, dl.TurnRepo, dl.Pending, dl.TxManager, chat.ServiceOptions{
		PendingTTL:   cfg.Pipeline.PendingTTL,
		HistoryLimit: cfg.Pipeline.HistoryLimit,
	})

	recommendService := recommend.NewService(dl.MusicalRepo, dl.Cache, recommend.ServiceOptions{
		WeightsPath:      cfg.Recommend.WeightsPath,
		CatalogCacheKey:  redis.CatalogKey(),
		CatalogCacheTTL:  cfg.Recommend.CatalogCacheTTL,
		EmbeddingDim:     cfg.Recommend.EmbeddingDim,
		Epochs:           cfg.Recommend.Epochs,
		BatchSize:        cfg.Recommend.BatchSize,
		LearningRate:     cfg.Recommend.LearningRate,
		NegativeRatio:    cfg.Recommend.NegativeRatio,
		MinCastPositives: cfg.Recommend.MinCastPositives,
		Seed:             cfg.Recommend.Seed,
	})
	if err := recommendService.LoadModel(ctx); err != nil {
		cleanup()
		return nil, nil, err
	}

	// HTTP 层
	handlers := router.Handlers{
		Health:    handler.NewHealthHandler(dl.PgClient, dl.RedisClient, dl.MilvusClient),
		Chat:      handler.NewChatHandler(chatService),
		Recommend: handler.NewRecommendHandler(recommendService),
	}
	r := router.New(cfg, handlers, dl.RateLimiter)

	app := &App{
		Config:           cfg,
		Router:           r,
		PgClient:         dl.PgClient,
		RedisClient:      dl.RedisClient,
		MilvusClient:     dl.MilvusClient,
		ChatService:      chatService,
		RecommendService: recommendService,
		VectorRepo:       dl.VectorRepo,
	}
	return app, cleanup, nil
}
