package chat

import (
	"fmt"
	"strings"
)

// NoResultMessage 检索为空或相似度不达标时的固定应答
const NoResultMessage = "조건에 맞는 전시를 찾지 못했어요. 다른 분위기나 키워드로 다시 질문해 주시겠어요?"

// cycleLimitNote 改写循环触顶时附加在历史最优应答前的说明
const cycleLimitNote = "더 나은 결과를 찾지 못해, 지금까지 중 가장 적합했던 추천을 다시 보여드릴게요."

// RenderExhibitions 把聚合结果渲染成最终应答文本
func RenderExhibitions(items []RankedExhibition) string {
	if len(items) == 0 {
		return NoResultMessage
	}

	var b strings.Builder
	b.WriteString("지금 인기 있는 전시 중에서 질문과 잘 맞는 곳을 골라봤어요!\n")

	for i, item := range items {
		e := item.Exhibition
		if e == nil {
			continue
		}
		fmt.Fprintf(&b, "\n%d. **%s**\n", i+1, e.Title)
		if ctxText := summarize(e.Context, 200); ctxText != "" {
			fmt.Fprintf(&b, "   - 전시회 내용: %s\n", ctxText)
		}
		if e.Place != "" {
			fmt.Fprintf(&b, "   - 전시회 장소: %s\n", e.Place)
		}
		if e.Date != "" {
			fmt.Fprintf(&b, "   - 전시회 기간: %s\n", e.Date)
		}
		if e.Price != "" {
			fmt.Fprintf(&b, "   - 전시회 가격: %s\n", e.Price)
		}
		fmt.Fprintf(&b, "   - 전시회 인기도: %d\n", e.TicketCast)
		if e.Link != "" {
			fmt.Fprintf(&b, "   - 예매 링크: %s\n", e.Link)
		}
		if e.Poster != "" {
			fmt.Fprintf(&b, "   - ![poster](%s)\n", e.Poster)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func cycleLimitResponse(st *PipelineState) string {
	if st == nil || st.BestResponse == "" {
		return NoResultMessage
	}
	return cycleLimitNote + "\n\n" + st.BestResponse
}

// summarize 截断长文本，按 rune 截断避免拆碎多字节字符
func summarize(s string, max int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
