// Package rerank 提供交叉编码器重排序服务客户端
package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"muse-chat-api/internal/application/chat"
	"muse-chat-api/internal/config"
	"muse-chat-api/pkg/metrics"
)

var tracer = otel.Tracer("rerank")

// Client Cohere 风格的重排序 API 客户端
type Client struct {
	endpoint   string
	apiKey     string
	model      string
	topN       int
	httpClient *http.Client
}

var _ chat.RerankProvider = (*Client)(nil)

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// NewClient 创建重排序客户端
func NewClient(cfg *config.RerankConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		topN:     cfg.TopN,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Rerank 根据查询对文档重排序，返回按相关性降序的 (文档下标, 分数) 列表
func (c *Client) Rerank(ctx context.Context, query string, documents []string, topN int) ([]chat.RerankResult, error) {
	if c == nil || c.httpClient == nil {
		return nil, fmt.Errorf("rerank client not initialized")
	}
	if len(documents) == 0 {
		return []chat.RerankResult{}, nil
	}
	if topN <= 0 {
		topN = c.topN
	}
	if topN <= 0 || topN > len(documents) {
		topN = len(documents)
	}

	ctx, span := tracer.Start(ctx, "rerank.Client.Rerank",
		trace.WithAttributes(
			attribute.String("rerank.model", c.model),
			attribute.Int("rerank.documents", len(documents)),
			attribute.Int("rerank.top_n", topN),
		))
	defer span.End()

	start := time.Now()
	results, err := c.doRerank(ctx, query, documents, topN)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
	}
	metrics.RerankCallDuration.WithLabelValues(c.model).Observe(time.Since(start).Seconds())
	metrics.RerankCallTotal.WithLabelValues(c.model, status).Inc()
	if err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.Int("rerank.results", len(results)))
	return results, nil
}

func (c *Client) doRerank(ctx context.Context, query string, documents []string, topN int) ([]chat.RerankResult, error) {
	reqBody, err := json.Marshal(&rerankRequest{
		Model:     c.model,
		Query:     query,
		Documents: documents,
		TopN:      topN,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	if c.endpoint == "" {
		return nil, fmt.Errorf("rerank endpoint is empty")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(httpResp.Body, 4096))
		return nil, fmt.Errorf("rerank request failed: status=%d body=%s", httpResp.StatusCode, string(body))
	}

	var resp rerankResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}

	results := make([]chat.RerankResult, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, chat.RerankResult{
			Index:          r.Index,
			RelevanceScore: r.RelevanceScore,
		})
	}
	return results, nil
}
