// Package router 提供 HTTP 路由配置
package router

import (
	"muse-chat-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	chatHandler *handler.ChatHandler,
	recommendHandler *handler.RecommendHandler,
) {
	// 对话
	chat := v1.Group("/chat")
	{
		chat.POST("", chatHandler.Chat)
		chat.POST("/feedback", chatHandler.Feedback)
		chat.GET("/sessions/:sid/history", chatHandler.History)
	}

	// 音乐剧推荐
	v1.POST("/recommend", recommendHandler.Recommend)
	v1.POST("/recommend/active", recommendHandler.Active)
}
