package chat

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/embedding"

	"muse-chat-api/internal/domain/repository"
	apperrors "muse-chat-api/pkg/errors"
	"muse-chat-api/pkg/logger"
	"muse-chat-api/pkg/metrics"
)

// Options 流水线参数
type Options struct {
	TopK                int
	ExactSearch         bool
	SimilarityThreshold float64
	MaxRewrites         int
	StageTimeout        time.Duration
}

func (o Options) normalized() Options {
	if o.TopK <= 0 {
		o.TopK = 10
	}
	if o.MaxRewrites < 0 {
		o.MaxRewrites = 0
	}
	return o
}

// Outcome 一次运行的终态
type Outcome string

const (
	OutcomeAnswered   Outcome = "answered"
	OutcomeNoResult   Outcome = "no_result"
	OutcomeCycleLimit Outcome = "cycle_limit"
)

// Result 流水线运行结果
type Result struct {
	State   *PipelineState
	Outcome Outcome
	// AwaitingFeedback 为 true 时本轮应答已生成，等待用户接受或拒绝
	AwaitingFeedback bool
}

// Pipeline 对话检索流水线。依赖全部为端口，便于替换与测试。
type Pipeline struct {
	hyde        HydeGenerator
	rewriter    QueryRewriter
	embedder    embedding.Embedder
	vectors     VectorRepository
	reranker    RerankProvider
	exhibitions repository.ExhibitionRepository
	opts        Options
}

func NewPipeline(
	hyde HydeGenerator,
	rewriter QueryRewriter,
	embedder embedding.Embedder,
	vectors VectorRepository,
	reranker RerankProvider,
	exhibitions repository.ExhibitionRepository,
	opts Options,
) *Pipeline {
	return &Pipeline{
		hyde:        hyde,
		rewriter:    rewriter,
		embedder:    embedder,
		vectors:     vectors,
		reranker:    reranker,
		exhibitions: exhibitions,
		opts:        opts.normalized(),
	}
}

// Run 从头执行一次流水线，直到应答或无结果
func (p *Pipeline) Run(ctx context.Context, st *PipelineState) (*Result, error) {
	if p == nil {
		return nil, fmt.Errorf("pipeline not configured")
	}
	if st == nil {
		return nil, apperrors.New(apperrors.CodeStateInvalid, "pipeline state is nil")
	}

	// 分支选择：带图片走多模态生成
	st.Branch = BranchSingleModal
	if len(st.ImageURLs) > 0 {
		st.Branch = BranchMultiModal
	}

	return p.runCycle(ctx, st)
}

// ResumeWithFeedback 消费用户反馈。接受则终结；拒绝则改写查询并重新走一轮，
// 改写次数触顶时返回历史最优应答。
func (p *Pipeline) ResumeWithFeedback(ctx context.Context, st *PipelineState, accept bool) (*Result, error) {
	if st == nil {
		return nil, apperrors.ErrNoPendingRun
	}

	if accept {
		metrics.PipelineRewriteCycles.Observe(float64(st.Cycle))
		return &Result{State: st, Outcome: OutcomeAnswered, AwaitingFeedback: false}, nil
	}

	if st.Cycle >= p.opts.MaxRewrites {
		st.Response = cycleLimitResponse(st)
		st.Aggregated = st.BestAggregated
		metrics.PipelineRewriteCycles.Observe(float64(st.Cycle))
		metrics.PipelineRunsTotal.WithLabelValues(string(st.Branch), string(OutcomeCycleLimit)).Inc()
		logger.Warn(ctx, "rewrite cycle limit reached, returning best-so-far response",
			"session_id", st.SessionID,
			"cycles", st.Cycle,
		)
		return &Result{State: st, Outcome: OutcomeCycleLimit, AwaitingFeedback: false}, nil
	}

	if err := p.runStage(ctx, st, StageRewrite, p.stageRewrite); err != nil {
		return nil, err
	}
	st.Cycle++
	st.resetDerived()

	// 改写后的循环从全新的假设文档开始
	return p.runCycle(ctx, st)
}

// runCycle 显式阶段机，单条前进边，唯一的回边（改写）由 ResumeWithFeedback 驱动
func (p *Pipeline) runCycle(ctx context.Context, st *PipelineState) (*Result, error) {
	outcome := OutcomeAnswered
	stage := StageGenerateHyde

	for {
		switch stage {
		case StageGenerateHyde:
			if err := p.runStage(ctx, st, stage, p.stageGenerateHyde); err != nil {
				return nil, err
			}
			stage = StageEmbed

		case StageEmbed:
			if err := p.runStage(ctx, st, stage, p.stageEmbed); err != nil {
				return nil, err
			}
			stage = StageRetrieve

		case StageRetrieve:
			if err := p.runStage(ctx, st, stage, p.stageRetrieve); err != nil {
				return nil, err
			}
			if len(st.Documents) == 0 {
				st.Response = NoResultMessage
				outcome = OutcomeNoResult
				stage = StageEnd
				continue
			}
			stage = StageSimilarityRerank

		case StageSimilarityRerank:
			if err := p.runStage(ctx, st, stage, p.stageRerank); err != nil {
				return nil, err
			}
			// 相似度门限：最高分不达标视为检索失败，阈值 0 关闭该门限
			if p.opts.SimilarityThreshold > 0 && st.topRelevance() < p.opts.SimilarityThreshold {
				logger.Info(ctx, "top relevance below threshold",
					"session_id", st.SessionID,
					"top_relevance", st.topRelevance(),
					"threshold", p.opts.SimilarityThreshold,
				)
				st.Response = NoResultMessage
				outcome = OutcomeNoResult
				stage = StageEnd
				continue
			}
			stage = StageAggregate

		case StageAggregate:
			if err := p.runStage(ctx, st, stage, p.stageAggregate); err != nil {
				return nil, err
			}
			stage = StageRespond

		case StageRespond:
			if err := p.runStage(ctx, st, stage, p.stageRespond); err != nil {
				return nil, err
			}
			st.rememberBest()
			stage = StageAwaitFeedback

		case StageAwaitFeedback:
			metrics.PipelineRunsTotal.WithLabelValues(string(st.Branch), string(OutcomeAnswered)).Inc()
			return &Result{State: st, Outcome: OutcomeAnswered, AwaitingFeedback: true}, nil

		case StageEnd:
			metrics.PipelineRunsTotal.WithLabelValues(string(st.Branch), string(outcome)).Inc()
			metrics.PipelineRewriteCycles.Observe(float64(st.Cycle))
			return &Result{State: st, Outcome: outcome, AwaitingFeedback: false}, nil

		default:
			return nil, apperrors.New(apperrors.CodeStateInvalid, fmt.Sprintf("unexpected stage %s", stage))
		}
	}
}

// runStage 统一做前置校验、单阶段超时与耗时指标
func (p *Pipeline) runStage(ctx context.Context, st *PipelineState, stage Stage, fn func(context.Context, *PipelineState) error) error {
	if err := st.ready(stage); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStateInvalid, "pipeline state validation failed")
	}

	stageCtx := ctx
	if p.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(ctx, p.opts.StageTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx, st)
	metrics.PipelineStageDuration.WithLabelValues(stage.String()).Observe(time.Since(start).Seconds())
	return err
}
