package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"muse-chat-api/internal/application/recommend"
	"muse-chat-api/internal/domain/entity"
)

type staticMusicalRepo struct {
	catalog []*entity.Musical
}

func (r *staticMusicalRepo) ListAll(context.Context) ([]*entity.Musical, error) {
	return r.catalog, nil
}

func (r *staticMusicalRepo) ListActive(_ context.Context, date string) ([]*entity.Musical, error) {
	var out []*entity.Musical
	for _, m := range r.catalog {
		if m.EndDate > date {
			out = append(out, m)
		}
	}
	return out, nil
}

func handlerMusical(title, cast, genre, endDate string) *entity.Musical {
	return &entity.Musical{Title: title, Cast: cast, Genre: genre, EndDate: endDate}
}

func handlerCatalog() []*entity.Musical {
	return []*entity.Musical{
		handlerMusical("그날들", "김도현, 박은태", "대학로", "2099.12.31"),
		handlerMusical("빨래", "김도현, 박은태", "대학로", "2099.12.31"),
		handlerMusical("사의찬미", "김도현", "대학로", "2020.01.01"),
		handlerMusical("오페라의 유령", "조승우, 아이비", "라이선스", "2099.12.31"),
		handlerMusical("시카고", "조승우, 아이비", "라이선스", "2020.01.01"),
		handlerMusical("레베카", "옥주현, 조승우", "라이선스", "2099.12.31"),
		handlerMusical("엘리자벳", "옥주현, 아이비", "라이선스", "2020.01.01"),
	}
}

func newRecommendRouter(t *testing.T, trained bool) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	svc := recommend.NewService(&staticMusicalRepo{catalog: handlerCatalog()}, nil, recommend.ServiceOptions{
		WeightsPath:      filepath.Join(t.TempDir(), "weights.json"),
		EmbeddingDim:     8,
		Epochs:           3,
		BatchSize:        8,
		LearningRate:     0.01,
		NegativeRatio:    4,
		MinCastPositives: 2,
		Seed:             42,
	})
	if trained {
		require.NoError(t, svc.Train(context.Background()))
	}

	h := NewRecommendHandler(svc)
	engine := gin.New()
	engine.POST("/v1/recommend/active", h.Active)
	return engine
}

func postJSON(t *testing.T, engine *gin.Engine, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestActiveReturnsRunningTitlesOnly(t *testing.T) {
	engine := newRecommendRouter(t, true)

	w := postJSON(t, engine, "/v1/recommend/active", map[string]string{"cast": "김도현", "genre": "대학로"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Titles []string `json:"titles"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.LessOrEqual(t, len(resp.Data.Titles), 7)

	// closed shows never surface regardless of score
	closed := map[string]bool{"사의찬미": true, "시카고": true, "엘리자벳": true}
	for _, title := range resp.Data.Titles {
		assert.False(t, closed[title], "title %q has already closed", title)
	}
}

func TestActiveModelNotTrained(t *testing.T) {
	engine := newRecommendRouter(t, false)

	w := postJSON(t, engine, "/v1/recommend/active", map[string]string{"cast": "김도현", "genre": "대학로"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestActiveRejectsMissingFields(t *testing.T) {
	engine := newRecommendRouter(t, true)

	w := postJSON(t, engine, "/v1/recommend/active", map[string]string{"cast": "김도현"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
