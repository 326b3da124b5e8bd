// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"muse-chat-api/internal/interfaces/http/dto"
	apperrors "muse-chat-api/pkg/errors"
)

// writeAppError 将应用错误映射为统一错误响应，未知错误归一为 500
func writeAppError(c *gin.Context, err error) {
	appErr := apperrors.AsAppError(err)

	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	var detail *dto.ErrorDetail
	if appErr.Detail != "" || appErr.Code != "" {
		detail = &dto.ErrorDetail{
			ErrorCode: string(appErr.Code),
			Details:   appErr.Detail,
		}
	}
	dto.ErrorWithDetail(c, status, appErr.Message, detail)
}
