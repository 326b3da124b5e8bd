package handler

import (
	"github.com/gin-gonic/gin"

	"muse-chat-api/internal/application/chat"
	"muse-chat-api/internal/domain/repository"
	"muse-chat-api/internal/interfaces/http/dto"
	apperrors "muse-chat-api/pkg/errors"
	"muse-chat-api/pkg/logger"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler 创建对话处理器
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// Chat 发送用户消息并运行检索流水线
// @Summary 发送消息
// @Description 运行检索增强流水线并返回展览推荐应答，成功应答后进入等待反馈状态
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.ChatRequest true "对话请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/chat [post]
func (h *ChatHandler) Chat(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Chat(ctx, req.SessionID, req.Query, req.ImageURLs)
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(ctx, "chat pipeline failed", err)
		}
		writeAppError(c, err)
		return
	}

	dto.Success(c, dto.ToChatResponse(result))
}

// Feedback 对最近一次应答提交反馈
// @Summary 提交反馈
// @Description 采纳则结束本轮，拒绝则改写查询并重新检索
// @Tags Chat
// @Accept json
// @Produce json
// @Param body body dto.FeedbackRequest true "反馈请求"
// @Success 200 {object} dto.Response[dto.ChatResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/chat/feedback [post]
func (h *ChatHandler) Feedback(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	result, err := h.svc.Feedback(ctx, req.SessionID, *req.Accept)
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(ctx, "chat feedback failed", err)
		}
		writeAppError(c, err)
		return
	}

	dto.Success(c, dto.ToChatResponse(result))
}

// History 分页获取会话历史
// @Summary 获取会话历史
// @Tags Chat
// @Produce json
// @Param sid path string true "会话 ID"
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数" default(20)
// @Success 200 {object} dto.Response[dto.ChatHistoryResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/chat/sessions/{sid}/history [get]
func (h *ChatHandler) History(c *gin.Context) {
	ctx := c.Request.Context()
	sessionID := dto.BindSessionID(c)

	pageReq := dto.BindPage(c)
	result, err := h.svc.History(ctx, sessionID, repository.NewPagination(pageReq.Page, pageReq.PageSize))
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(ctx, "failed to load chat history", err)
		}
		writeAppError(c, err)
		return
	}

	turns := make([]*dto.ChatTurnResponse, 0, len(result.Items))
	for i := range result.Items {
		turns = append(turns, dto.ToChatTurnResponse(result.Items[i]))
	}
	dto.SuccessWithPage(c,
		&dto.ChatHistoryResponse{SessionID: sessionID, Turns: turns},
		dto.NewPageMeta(pageReq.Page, pageReq.PageSize, int(result.Total)))
}
