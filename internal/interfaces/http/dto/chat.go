// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"time"

	"muse-chat-api/internal/application/chat"
	"muse-chat-api/internal/domain/entity"
)

// ChatRequest 对话请求
type ChatRequest struct {
	SessionID string   `json:"session_id,omitempty"`
	Query     string   `json:"query" binding:"required"`
	ImageURLs []string `json:"image_urls,omitempty"`
}

// FeedbackRequest 对话反馈请求
type FeedbackRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	// Accept 为 true 表示采纳当前应答，false 表示要求改写重试
	Accept *bool `json:"accept" binding:"required"`
}

// ExhibitionResponse 展览条目响应
type ExhibitionResponse struct {
	ID             string  `json:"id"`
	Title          string  `json:"title"`
	Context        string  `json:"context"`
	Poster         string  `json:"poster,omitempty"`
	Price          string  `json:"price,omitempty"`
	Place          string  `json:"place,omitempty"`
	Date           string  `json:"date,omitempty"`
	Link           string  `json:"link,omitempty"`
	Popularity     int64   `json:"popularity"`
	RelevanceScore float64 `json:"relevance_score"`
}

// ChatResponse 对话响应
type ChatResponse struct {
	SessionID        string                `json:"session_id"`
	Response         string                `json:"response"`
	Branch           string                `json:"branch"`
	Outcome          string                `json:"outcome"`
	AwaitingFeedback bool                  `json:"awaiting_feedback"`
	Cycle            int                   `json:"cycle"`
	Exhibitions      []*ExhibitionResponse `json:"exhibitions,omitempty"`
}

// ToChatResponse 由流水线结果构造响应
func ToChatResponse(result *chat.Result) *ChatResponse {
	if result == nil || result.State == nil {
		return nil
	}
	st := result.State
	resp := &ChatResponse{
		SessionID:        st.SessionID,
		Response:         st.Response,
		Branch:           string(st.Branch),
		Outcome:          string(result.Outcome),
		AwaitingFeedback: result.AwaitingFeedback,
		Cycle:            st.Cycle,
	}
	for i := range st.Aggregated {
		resp.Exhibitions = append(resp.Exhibitions, toExhibitionResponse(st.Aggregated[i]))
	}
	return resp
}

func toExhibitionResponse(r chat.RankedExhibition) *ExhibitionResponse {
	e := r.Exhibition
	if e == nil {
		return &ExhibitionResponse{RelevanceScore: r.RelevanceScore}
	}
	return &ExhibitionResponse{
		ID:             e.ID,
		Title:          e.Title,
		Context:        e.Context,
		Poster:         e.Poster,
		Price:          e.Price,
		Place:          e.Place,
		Date:           e.Date,
		Link:           e.Link,
		Popularity:     e.Popularity(),
		RelevanceScore: r.RelevanceScore,
	}
}

// ChatTurnResponse 会话轮次响应
type ChatTurnResponse struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// ChatHistoryResponse 会话历史响应
type ChatHistoryResponse struct {
	SessionID string              `json:"session_id"`
	Turns     []*ChatTurnResponse `json:"turns"`
}

// ToChatTurnResponse 由实体构造轮次响应
func ToChatTurnResponse(t *entity.ChatTurn) *ChatTurnResponse {
	if t == nil {
		return nil
	}
	return &ChatTurnResponse{
		ID:        t.ID,
		Role:      string(t.Role),
		Content:   t.Content,
		CreatedAt: t.CreatedAt.Format(time.RFC3339),
	}
}
