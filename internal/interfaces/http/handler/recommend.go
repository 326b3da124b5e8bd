package handler

import (
	"github.com/gin-gonic/gin"

	"muse-chat-api/internal/application/recommend"
	"muse-chat-api/internal/interfaces/http/dto"
	apperrors "muse-chat-api/pkg/errors"
	"muse-chat-api/pkg/logger"
)

// RecommendHandler 音乐剧推荐处理器
type RecommendHandler struct {
	svc *recommend.Service
}

// NewRecommendHandler 创建推荐处理器
func NewRecommendHandler(svc *recommend.Service) *RecommendHandler {
	return &RecommendHandler{svc: svc}
}

// Recommend 按演员与流派推荐音乐剧
// @Summary 音乐剧推荐
// @Description 返回至多 10 条推荐，按预测分升序排列
// @Tags Recommend
// @Accept json
// @Produce json
// @Param body body dto.RecommendRequest true "推荐请求"
// @Success 200 {object} dto.Response[dto.RecommendResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 422 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/recommend [post]
func (h *RecommendHandler) Recommend(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	items, err := h.svc.Recommend(ctx, req.Cast, req.Genre)
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(ctx, "recommend failed", err)
		}
		writeAppError(c, err)
		return
	}

	dto.Success(c, dto.ToRecommendResponse(items))
}

// Active 在演剧目轻量推荐
// @Summary 在演剧目推荐
// @Description 返回当前在演剧目中预测分最高的至多 7 个标题
// @Tags Recommend
// @Accept json
// @Produce json
// @Param body body dto.RecommendRequest true "推荐请求"
// @Success 200 {object} dto.Response[dto.ActiveTitlesResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/recommend/active [post]
func (h *RecommendHandler) Active(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RecommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	titles, err := h.svc.TopActiveTitles(ctx, req.Cast, req.Genre)
	if err != nil {
		if !apperrors.IsAppError(err) {
			logger.Error(ctx, "active titles lookup failed", err)
		}
		writeAppError(c, err)
		return
	}

	dto.Success(c, &dto.ActiveTitlesResponse{Titles: titles})
}
