package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"muse-chat-api/internal/domain/entity"
	"muse-chat-api/internal/domain/repository"
	apperrors "muse-chat-api/pkg/errors"
	"muse-chat-api/pkg/logger"
	"muse-chat-api/pkg/metrics"
)

// ServiceOptions 会话服务参数
type ServiceOptions struct {
	PendingTTL   time.Duration
	HistoryLimit int
}

// Service 会话层：历史加载、流水线调度、轮次落库与等待反馈状态管理
type Service struct {
	pipeline *Pipeline
	sessions repository.ChatSessionRepository
	turns    repository.ChatTurnRepository
	pending  PendingStore
	tx       repository.Transactor
	opts     ServiceOptions
}

func NewService(
	pipeline *Pipeline,
	sessions repository.ChatSessionRepository,
	turns repository.ChatTurnRepository,
	pending PendingStore,
	tx repository.Transactor,
	opts ServiceOptions,
) *Service {
	if opts.PendingTTL <= 0 {
		opts.PendingTTL = 30 * time.Minute
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	return &Service{
		pipeline: pipeline,
		sessions: sessions,
		turns:    turns,
		pending:  pending,
		tx:       tx,
		opts:     opts,
	}
}

// Chat 处理一条用户消息：建会话、注入历史、跑流水线、落库并挂起等待反馈
func (s *Service) Chat(ctx context.Context, sessionID, query string, imageURLs []string) (*Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperrors.ErrInvalidParam.WithDetail("query is empty")
	}

	sessionID, err := s.ensureSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)

	// 同一会话上尚未消费的反馈状态作废
	if s.pending != nil {
		if prev, _ := s.pending.Load(ctx, sessionID); prev != nil {
			_ = s.pending.Delete(ctx, sessionID)
			metrics.ActiveSessions.Dec()
		}
	}

	history, err := s.recentHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	st := NewPipelineState(sessionID, query, imageURLs, history)
	result, err := s.pipeline.Run(ctx, st)
	if err != nil {
		return nil, err
	}

	s.appendTurns(ctx, sessionID, query, result.State.Response)
	s.savePending(ctx, result)
	return result, nil
}

// Feedback 消费等待中的反馈：接受则结束，拒绝则改写重试
func (s *Service) Feedback(ctx context.Context, sessionID string, accept bool) (*Result, error) {
	if s.pending == nil {
		return nil, apperrors.ErrNoPendingRun
	}
	ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)

	st, err := s.pending.Load(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCacheError, "failed to load pending state")
	}
	if st == nil {
		return nil, apperrors.ErrNoPendingRun
	}

	if err := s.pending.Delete(ctx, sessionID); err != nil {
		logger.Warn(ctx, "failed to delete pending state", "error", err.Error())
	}
	metrics.ActiveSessions.Dec()

	result, err := s.pipeline.ResumeWithFeedback(ctx, st, accept)
	if err != nil {
		return nil, err
	}

	if !accept {
		// 新一轮应答（或触顶兜底应答）也进入会话历史
		s.appendTurns(ctx, sessionID, result.State.Query, result.State.Response)
	}
	s.savePending(ctx, result)
	return result, nil
}

// History 分页返回会话历史
func (s *Service) History(ctx context.Context, sessionID string, pagination repository.Pagination) (*repository.PagedResult[*entity.ChatTurn], error) {
	if s.turns == nil {
		return nil, apperrors.ErrInternalError.WithDetail("turn repository not configured")
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load session")
	}
	if session == nil {
		return nil, apperrors.ErrSessionNotFound
	}
	return s.turns.ListBySession(ctx, sessionID, pagination)
}

func (s *Service) ensureSession(ctx context.Context, sessionID string) (string, error) {
	if s.sessions == nil {
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		return sessionID, nil
	}

	if sessionID == "" {
		sessionID = uuid.NewString()
		if err := s.sessions.Create(ctx, entity.NewChatSession(sessionID)); err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create session")
		}
		return sessionID, nil
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load session")
	}
	if session == nil {
		if err := s.sessions.Create(ctx, entity.NewChatSession(sessionID)); err != nil {
			return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to create session")
		}
	}
	return sessionID, nil
}

func (s *Service) recentHistory(ctx context.Context, sessionID string) (string, error) {
	if s.turns == nil {
		return "", nil
	}
	turns, err := s.turns.Recent(ctx, sessionID, s.opts.HistoryLimit)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load chat history")
	}
	return entity.FormatChatHistory(turns), nil
}

// appendTurns 在一个事务内追加本轮问答；历史落库失败不阻塞应答
func (s *Service) appendTurns(ctx context.Context, sessionID, query, response string) {
	if s.turns == nil {
		return
	}
	write := func(txCtx context.Context) error {
		if err := s.turns.Create(txCtx, entity.NewChatTurn(sessionID, entity.RoleUser, query)); err != nil {
			return err
		}
		if response == "" {
			return nil
		}
		return s.turns.Create(txCtx, entity.NewChatTurn(sessionID, entity.RoleAssistant, response))
	}

	var err error
	if s.tx != nil {
		err = s.tx.WithTransaction(ctx, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		logger.Warn(ctx, "failed to persist chat turns", "error", err.Error())
	}
}

func (s *Service) savePending(ctx context.Context, result *Result) {
	if s.pending == nil || result == nil || !result.AwaitingFeedback {
		return
	}
	if err := s.pending.Save(ctx, result.State.SessionID, result.State, s.opts.PendingTTL); err != nil {
		logger.Warn(ctx, "failed to save pending state", "error", err.Error())
		return
	}
	metrics.ActiveSessions.Inc()
}
