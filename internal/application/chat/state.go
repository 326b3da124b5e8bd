package chat

import (
	"fmt"
	"strings"

	"muse-chat-api/internal/domain/entity"
)

// Stage 流水线阶段
type Stage int

const (
	StageBranchSelect Stage = iota
	StageGenerateHyde
	StageEmbed
	StageRetrieve
	StageSimilarityRerank
	StageAggregate
	StageRespond
	StageAwaitFeedback
	StageRewrite
	StageEnd
)

func (s Stage) String() string {
	switch s {
	case StageBranchSelect:
		return "branch_select"
	case StageGenerateHyde:
		return "generate_hyde"
	case StageEmbed:
		return "embed"
	case StageRetrieve:
		return "retrieve"
	case StageSimilarityRerank:
		return "similarity_rerank"
	case StageAggregate:
		return "aggregate"
	case StageRespond:
		return "respond"
	case StageAwaitFeedback:
		return "await_feedback"
	case StageRewrite:
		return "rewrite"
	case StageEnd:
		return "end"
	default:
		return "unknown"
	}
}

// Branch 生成分支
type Branch string

const (
	BranchSingleModal Branch = "single"
	BranchMultiModal  Branch = "multi"
)

// Document 向量检索出的展览文档
type Document struct {
	ID     string  `json:"id"`
	ItemID string  `json:"item_id"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// ScoredDocument 交叉编码重排后的文档
type ScoredDocument struct {
	Document       Document `json:"document"`
	RelevanceScore float64  `json:"relevance_score"`
}

// RankedExhibition 聚合了完整元数据的展览
type RankedExhibition struct {
	Exhibition     *entity.Exhibition `json:"exhibition"`
	RelevanceScore float64            `json:"relevance_score"`
}

// PipelineState 单次流水线运行的全部中间产物。
// 字段齐备且可 JSON 序列化，等待反馈期间整体落入缓存。
type PipelineState struct {
	SessionID string `json:"session_id"`

	Query       string   `json:"query"`
	ImageURLs   []string `json:"image_urls,omitempty"`
	ChatHistory string   `json:"chat_history,omitempty"`
	Branch      Branch   `json:"branch"`

	HypotheticalDoc string             `json:"hypothetical_doc,omitempty"`
	Embedding       []float32          `json:"embedding,omitempty"`
	Documents       []Document         `json:"documents,omitempty"`
	Reranked        []ScoredDocument   `json:"reranked,omitempty"`
	Aggregated      []RankedExhibition `json:"aggregated,omitempty"`
	Response        string             `json:"response,omitempty"`

	// Cycle 已消耗的改写次数，从 0 开始
	Cycle int `json:"cycle"`

	// 历次循环中重排最高分的应答，循环触顶时兜底返回
	BestResponse   string             `json:"best_response,omitempty"`
	BestAggregated []RankedExhibition `json:"best_aggregated,omitempty"`
	BestScore      float64            `json:"best_score"`
}

// NewPipelineState 构造初始状态
func NewPipelineState(sessionID, query string, imageURLs []string, chatHistory string) *PipelineState {
	return &PipelineState{
		SessionID:   sessionID,
		Query:       query,
		ImageURLs:   imageURLs,
		ChatHistory: chatHistory,
	}
}

// ready 校验进入某阶段所需的前置字段
func (s *PipelineState) ready(stage Stage) error {
	if s == nil {
		return fmt.Errorf("pipeline state is nil")
	}
	switch stage {
	case StageGenerateHyde:
		if strings.TrimSpace(s.Query) == "" {
			return fmt.Errorf("stage %s: query is empty", stage)
		}
	case StageEmbed:
		if strings.TrimSpace(s.HypotheticalDoc) == "" {
			return fmt.Errorf("stage %s: hypothetical document is empty", stage)
		}
	case StageRetrieve:
		if len(s.Embedding) == 0 {
			return fmt.Errorf("stage %s: embedding is empty", stage)
		}
	case StageSimilarityRerank:
		if strings.TrimSpace(s.HypotheticalDoc) == "" {
			return fmt.Errorf("stage %s: hypothetical document is empty", stage)
		}
	case StageRewrite:
		if strings.TrimSpace(s.Query) == "" {
			return fmt.Errorf("stage %s: query is empty", stage)
		}
	}
	return nil
}

// resetDerived 清空上一循环的派生产物，改写后从假设文档重新开始
func (s *PipelineState) resetDerived() {
	s.HypotheticalDoc = ""
	s.Embedding = nil
	s.Documents = nil
	s.Reranked = nil
	s.Aggregated = nil
	s.Response = ""
}

// topRelevance 当前循环重排最高分
func (s *PipelineState) topRelevance() float64 {
	if len(s.Reranked) == 0 {
		return 0
	}
	return s.Reranked[0].RelevanceScore
}

// rememberBest 记录历史最优应答
func (s *PipelineState) rememberBest() {
	if s.Response == "" {
		return
	}
	if s.BestResponse == "" || s.topRelevance() > s.BestScore {
		s.BestResponse = s.Response
		s.BestAggregated = s.Aggregated
		s.BestScore = s.topRelevance()
	}
}
