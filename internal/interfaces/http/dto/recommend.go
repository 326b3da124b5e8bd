// Package dto 提供 HTTP 层数据传输对象
package dto

import (
	"muse-chat-api/internal/application/recommend"
)

// RecommendRequest 推荐请求
type RecommendRequest struct {
	Cast  string `json:"cast" binding:"required"`
	Genre string `json:"genre" binding:"required"`
}

// RecommendItemResponse 推荐条目响应
type RecommendItemResponse struct {
	Title       string  `json:"title"`
	Place       string  `json:"place,omitempty"`
	Cast        string  `json:"cast,omitempty"`
	Genre       string  `json:"genre,omitempty"`
	TicketPrice string  `json:"ticket_price,omitempty"`
	Poster      string  `json:"poster,omitempty"`
	Score       float64 `json:"score"`
}

// RecommendResponse 推荐响应，条目按预测分升序排列
type RecommendResponse struct {
	Items []*RecommendItemResponse `json:"items"`
}

// ActiveTitlesResponse 在演剧目轻量推荐响应
type ActiveTitlesResponse struct {
	Titles []string `json:"titles"`
}

// ToRecommendResponse 由推荐结果构造响应
func ToRecommendResponse(items []recommend.Recommendation) *RecommendResponse {
	resp := &RecommendResponse{Items: make([]*RecommendItemResponse, 0, len(items))}
	for i := range items {
		r := items[i]
		resp.Items = append(resp.Items, &RecommendItemResponse{
			Title:       r.Title,
			Place:       r.Place,
			Cast:        r.Cast,
			Genre:       r.Genre,
			TicketPrice: r.TicketPrice,
			Poster:      r.Poster,
			Score:       r.Score,
		})
	}
	return resp
}
