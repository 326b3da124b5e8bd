package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"muse-chat-api/internal/domain/entity"
	"muse-chat-api/internal/domain/repository"
	apperrors "muse-chat-api/pkg/errors"
	"muse-chat-api/pkg/logger"
	"muse-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("recommend")

// CatalogCache 目录缓存端口，由 Redis 缓存实现
type CatalogCache interface {
	GetOrLoadSafe(ctx context.Context, key string, ttl time.Duration, loader func() (interface{}, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// ServiceOptions 推荐服务配置
type ServiceOptions struct {
	WeightsPath      string
	CatalogCacheKey  string
	CatalogCacheTTL  time.Duration
	EmbeddingDim     int
	Epochs           int
	BatchSize        int
	LearningRate     float64
	NegativeRatio    int
	MinCastPositives int
	Seed             int64
}

func (o ServiceOptions) normalized() ServiceOptions {
	if o.CatalogCacheKey == "" {
		o.CatalogCacheKey = "recommend:catalog"
	}
	if o.CatalogCacheTTL <= 0 {
		o.CatalogCacheTTL = 10 * time.Minute
	}
	return o
}

// Service 推荐应用服务，持有已加载的模型并提供训练入口
type Service struct {
	musicals repository.MusicalRepository
	cache    CatalogCache
	opts     ServiceOptions

	mu  sync.RWMutex
	rec *Recommender
}

// NewService 创建推荐服务
func NewService(musicals repository.MusicalRepository, cache CatalogCache, opts ServiceOptions) *Service {
	return &Service{
		musicals: musicals,
		cache:    cache,
		opts:     opts.normalized(),
	}
}

// LoadModel 从磁盘加载训练快照，文件不存在时保持未训练状态
func (s *Service) LoadModel(ctx context.Context) error {
	snap, err := LoadSnapshot(s.opts.WeightsPath)
	if err != nil {
		return fmt.Errorf("failed to load recommend snapshot: %w", err)
	}
	if snap == nil {
		logger.Warn(ctx, "recommend model snapshot not found, recommendations disabled",
			"path", s.opts.WeightsPath)
		return nil
	}

	s.mu.Lock()
	s.rec = NewRecommender(snap)
	s.mu.Unlock()

	logger.Info(ctx, "recommend model loaded",
		"path", s.opts.WeightsPath,
		"titles", snap.Titles.Len(),
		"casts", snap.Casts.Len(),
		"genres", snap.Genres.Len(),
		"triples", len(snap.Triples),
	)
	return nil
}

// Recommend 按演员与流派给出至多 10 条推荐，按预测分升序排列
func (s *Service) Recommend(ctx context.Context, cast, genre string) ([]Recommendation, error) {
	ctx, span := tracer.Start(ctx, "recommend.Service.Recommend",
		trace.WithAttributes(
			attribute.String("recommend.cast", cast),
			attribute.String("recommend.genre", genre),
		))
	defer span.End()

	rec := s.recommender()
	if rec == nil {
		metrics.RecommendRequestsTotal.WithLabelValues("not_trained").Inc()
		return nil, apperrors.ErrModelNotTrained
	}

	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		span.RecordError(err)
		metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	start := time.Now()
	results, err := rec.Recommend(cast, genre, catalog)
	metrics.RecommendScoreDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		if apperrors.AsAppError(err).Code == apperrors.CodeUnrecognizedEntity {
			metrics.RecommendRequestsTotal.WithLabelValues("unrecognized").Inc()
		} else {
			metrics.RecommendRequestsTotal.WithLabelValues("error").Inc()
		}
		return nil, err
	}

	metrics.RecommendRequestsTotal.WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("recommend.results", len(results)))
	return results, nil
}

// TopActiveTitles 返回当前在演剧目中预测分最高的标题，用于会话内轻量推荐
func (s *Service) TopActiveTitles(ctx context.Context, cast, genre string) ([]string, error) {
	rec := s.recommender()
	if rec == nil {
		return nil, apperrors.ErrModelNotTrained
	}
	catalog, err := s.loadCatalog(ctx)
	if err != nil {
		return nil, err
	}
	today := time.Now().Format("2006.01.02")
	return rec.TopActiveTitles(cast, genre, today, catalog), nil
}

// Train 全量拉取目录、重建数据集并训练，成功后落盘并热替换在线模型
func (s *Service) Train(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "recommend.Service.Train")
	defer span.End()

	musicals, err := s.musicals.ListAll(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load musical catalog: %w", err)
	}
	if len(musicals) == 0 {
		return fmt.Errorf("musical catalog is empty, nothing to train on")
	}

	ds := BuildDataset(musicals, DatasetOptions{
		MinCastPositives: s.opts.MinCastPositives,
		NegativeRatio:    s.opts.NegativeRatio,
		Seed:             s.opts.Seed,
	})

	model, err := Train(ctx, ds, TrainOptions{
		EmbeddingDim: s.opts.EmbeddingDim,
		Epochs:       s.opts.Epochs,
		BatchSize:    s.opts.BatchSize,
		LearningRate: s.opts.LearningRate,
		Seed:         s.opts.Seed,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	snap := &Snapshot{
		Model:   model,
		Titles:  ds.Titles,
		Casts:   ds.Casts,
		Genres:  ds.Genres,
		Triples: ds.UniqueTriples(),
	}
	if err := SaveSnapshot(s.opts.WeightsPath, snap); err != nil {
		span.RecordError(err)
		return err
	}

	s.mu.Lock()
	s.rec = NewRecommender(snap)
	s.mu.Unlock()

	logger.Info(ctx, "recommend model trained and saved",
		"path", s.opts.WeightsPath,
		"samples", len(ds.Samples),
	)
	return nil
}

func (s *Service) recommender() *Recommender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rec
}

// loadCatalog 经缓存读取剧目目录，miss 时回源数据库
func (s *Service) loadCatalog(ctx context.Context) ([]*entity.Musical, error) {
	if s.cache == nil {
		return s.musicals.ListAll(ctx)
	}

	data, err := s.cache.GetOrLoadSafe(ctx, s.opts.CatalogCacheKey, s.opts.CatalogCacheTTL, func() (interface{}, error) {
		musicals, err := s.musicals.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		return musicals, nil
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to load musical catalog")
	}

	var catalog []*entity.Musical
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode cached catalog: %w", err)
	}
	return catalog, nil
}
