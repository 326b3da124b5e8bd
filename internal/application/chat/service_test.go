package chat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-chat-api/internal/domain/entity"
	"muse-chat-api/internal/domain/repository"
	apperrors "muse-chat-api/pkg/errors"
)

type memSessionRepo struct {
	sessions map[string]*entity.ChatSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: make(map[string]*entity.ChatSession)}
}

func (r *memSessionRepo) Create(_ context.Context, s *entity.ChatSession) error {
	r.sessions[s.ID] = s
	return nil
}

func (r *memSessionRepo) GetByID(_ context.Context, id string) (*entity.ChatSession, error) {
	return r.sessions[id], nil
}

func (r *memSessionRepo) Update(_ context.Context, s *entity.ChatSession) error {
	r.sessions[s.ID] = s
	return nil
}

type memTurnRepo struct {
	turns []*entity.ChatTurn
}

func (r *memTurnRepo) Create(_ context.Context, turn *entity.ChatTurn) error {
	r.turns = append(r.turns, turn)
	return nil
}

func (r *memTurnRepo) ListBySession(_ context.Context, sessionID string, p repository.Pagination) (*repository.PagedResult[*entity.ChatTurn], error) {
	var items []*entity.ChatTurn
	for _, t := range r.turns {
		if t.SessionID == sessionID {
			items = append(items, t)
		}
	}
	return repository.NewPagedResult(items, int64(len(items)), p), nil
}

func (r *memTurnRepo) Recent(_ context.Context, sessionID string, limit int) ([]*entity.ChatTurn, error) {
	var items []*entity.ChatTurn
	for _, t := range r.turns {
		if t.SessionID == sessionID {
			items = append(items, t)
		}
	}
	if len(items) > limit {
		items = items[len(items)-limit:]
	}
	return items, nil
}

type memPendingStore struct {
	states map[string]*PipelineState
}

func newMemPendingStore() *memPendingStore {
	return &memPendingStore{states: make(map[string]*PipelineState)}
}

func (s *memPendingStore) Save(_ context.Context, sessionID string, st *PipelineState, _ time.Duration) error {
	s.states[sessionID] = st
	return nil
}

func (s *memPendingStore) Load(_ context.Context, sessionID string) (*PipelineState, error) {
	return s.states[sessionID], nil
}

func (s *memPendingStore) Delete(_ context.Context, sessionID string) error {
	delete(s.states, sessionID)
	return nil
}

type spyTransactor struct {
	calls int
}

func (t *spyTransactor) WithTransaction(ctx context.Context, fn func(context.Context) error) error {
	t.calls++
	return fn(ctx)
}

func newTestService(t *testing.T) (*Service, *memSessionRepo, *memTurnRepo, *memPendingStore, *spyTransactor) {
	t.Helper()
	p, _, _, _, _, _ := newTestPipeline(Options{MaxRewrites: 2})
	sessions := newMemSessionRepo()
	turns := &memTurnRepo{}
	pending := newMemPendingStore()
	tx := &spyTransactor{}
	svc := NewService(p, sessions, turns, pending, tx, ServiceOptions{})
	return svc, sessions, turns, pending, tx
}

func TestServiceChatCreatesSessionAndPersistsTurns(t *testing.T) {
	svc, sessions, turns, pending, tx := newTestService(t)

	result, err := svc.Chat(context.Background(), "", "show me exhibitions", nil)
	require.NoError(t, err)

	sid := result.State.SessionID
	require.NotEmpty(t, sid)
	assert.NotNil(t, sessions.sessions[sid])

	// user query and assistant response, written in one transaction
	require.Len(t, turns.turns, 2)
	assert.Equal(t, entity.RoleUser, turns.turns[0].Role)
	assert.Equal(t, entity.RoleAssistant, turns.turns[1].Role)
	assert.Equal(t, 1, tx.calls)

	// run is awaiting feedback, state parked in the pending store
	assert.True(t, result.AwaitingFeedback)
	assert.NotNil(t, pending.states[sid])
}

func TestServiceChatRejectsEmptyQuery(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Chat(context.Background(), "", "   ", nil)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrInvalidParam.Code, appErr.Code)
}

func TestServiceChatInvalidatesStalePendingState(t *testing.T) {
	svc, _, _, pending, _ := newTestService(t)

	first, err := svc.Chat(context.Background(), "", "first question", nil)
	require.NoError(t, err)
	sid := first.State.SessionID
	require.NotNil(t, pending.states[sid])

	// a new message on the same session discards the unconsumed feedback state
	second, err := svc.Chat(context.Background(), sid, "second question", nil)
	require.NoError(t, err)
	assert.Equal(t, sid, second.State.SessionID)
	assert.Equal(t, "second question", pending.states[sid].Query)
}

func TestServiceFeedbackAcceptConsumesPendingState(t *testing.T) {
	svc, _, _, pending, _ := newTestService(t)

	result, err := svc.Chat(context.Background(), "", "question", nil)
	require.NoError(t, err)
	sid := result.State.SessionID

	final, err := svc.Feedback(context.Background(), sid, true)
	require.NoError(t, err)

	assert.Equal(t, OutcomeAnswered, final.Outcome)
	assert.False(t, final.AwaitingFeedback)
	assert.Nil(t, pending.states[sid])
}

func TestServiceFeedbackRejectReruns(t *testing.T) {
	svc, _, turns, pending, _ := newTestService(t)

	result, err := svc.Chat(context.Background(), "", "question", nil)
	require.NoError(t, err)
	sid := result.State.SessionID
	require.Len(t, turns.turns, 2)

	rerun, err := svc.Feedback(context.Background(), sid, false)
	require.NoError(t, err)

	assert.True(t, rerun.AwaitingFeedback)
	assert.Equal(t, 1, rerun.State.Cycle)
	// the rewritten query and fresh response are appended to history
	assert.Len(t, turns.turns, 4)
	assert.NotNil(t, pending.states[sid])
}

func TestServiceFeedbackWithoutPendingRun(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Feedback(context.Background(), "unknown-session", true)
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrNoPendingRun.Code, appErr.Code)
}

func TestServiceHistoryUnknownSession(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.History(context.Background(), "missing", repository.NewPagination(1, 20))
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, apperrors.ErrSessionNotFound.Code, appErr.Code)
}

func TestServiceHistoryReturnsPagedTurns(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	result, err := svc.Chat(context.Background(), "", "question", nil)
	require.NoError(t, err)
	sid := result.State.SessionID

	page, err := svc.History(context.Background(), sid, repository.NewPagination(1, 20))
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Len(t, page.Items, 2)
}
