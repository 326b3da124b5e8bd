package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"muse-chat-api/internal/domain/entity"
)

func TestRenderExhibitionsEmpty(t *testing.T) {
	assert.Equal(t, NoResultMessage, RenderExhibitions(nil))
	assert.Equal(t, NoResultMessage, RenderExhibitions([]RankedExhibition{}))
}

func TestRenderExhibitionsIncludesMetadata(t *testing.T) {
	out := RenderExhibitions([]RankedExhibition{
		{
			Exhibition: &entity.Exhibition{
				ID:         "ex1",
				Title:      "빛의 정원",
				Context:    "몰입형 미디어아트 전시",
				Place:      "성수동",
				Date:       "2026.01.01 ~ 2026.03.01",
				Price:      "성인 15,000원",
				Link:       "https://ticket.example/ex1",
				Poster:     "https://img.example/ex1.jpg",
				TicketCast: 1200,
			},
			RelevanceScore: 0.92,
		},
	})

	assert.Contains(t, out, "1. **빛의 정원**")
	assert.Contains(t, out, "성수동")
	assert.Contains(t, out, "2026.01.01 ~ 2026.03.01")
	assert.Contains(t, out, "성인 15,000원")
	assert.Contains(t, out, "1200")
	assert.Contains(t, out, "https://ticket.example/ex1")
	assert.Contains(t, out, "![poster](https://img.example/ex1.jpg)")
}

func TestRenderExhibitionsSkipsNilAndEmptyFields(t *testing.T) {
	out := RenderExhibitions([]RankedExhibition{
		{Exhibition: nil, RelevanceScore: 0.9},
		{Exhibition: &entity.Exhibition{ID: "ex2", Title: "무제"}, RelevanceScore: 0.8},
	})

	assert.Contains(t, out, "무제")
	assert.NotContains(t, out, "예매 링크")
	assert.NotContains(t, out, "전시회 장소")
}

func TestSummarizeTruncatesByRune(t *testing.T) {
	long := strings.Repeat("가", 250)
	got := summarize(long, 200)
	assert.Equal(t, 201, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "…"))

	assert.Equal(t, "short", summarize("  short \n", 200))
	assert.Equal(t, "", summarize("   ", 200))
}

func TestCycleLimitResponseFallsBackToNoResult(t *testing.T) {
	assert.Equal(t, NoResultMessage, cycleLimitResponse(nil))
	assert.Equal(t, NoResultMessage, cycleLimitResponse(&PipelineState{}))

	st := &PipelineState{BestResponse: "best answer"}
	got := cycleLimitResponse(st)
	assert.True(t, strings.HasPrefix(got, cycleLimitNote))
	assert.True(t, strings.HasSuffix(got, "best answer"))
}
