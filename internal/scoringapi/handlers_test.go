package scoringapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-data-explorer/backend/internal/coreengine/comparison"
	"speech-data-explorer/backend/internal/coreengine/scorer"
	"speech-data-explorer/backend/internal/coreengine/tokenizer"
)

func newRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandlers(opts).RegisterRoutes(router.Group("/api/v1"))
	return router
}

func post(t *testing.T, router http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestScore(t *testing.T) {
	router := newRouter(Options{})
	w := post(t, router, "/api/v1/score", `{"reference":"the cat sat on the mat","hypothesis":"the cat on the mat"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var card scorer.Scorecard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.Equal(t, 1, card.Word.Deletions)
	assert.Equal(t, 6, card.Word.ReferenceLength)
	assert.Equal(t, tokenizer.Char, card.Char.Granularity)
	assert.NotEmpty(t, card.Diff)
}

func TestScoreNormalization(t *testing.T) {
	router := newRouter(Options{DefaultNormalization: "standard"})
	w := post(t, router, "/api/v1/score", `{"reference":"Hello, World!","hypothesis":"hello world"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var card scorer.Scorecard
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.Equal(t, 0, card.Word.Errors())

	w = post(t, router, "/api/v1/score", `{"reference":"Hello, World!","hypothesis":"hello world","normalization":"none"}`)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &card))
	assert.Equal(t, 2, card.Word.Errors())
}

func TestScoreUndefinedRate(t *testing.T) {
	router := newRouter(Options{})
	w := post(t, router, "/api/v1/score", `{"reference":"","hypothesis":"uh"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Word struct {
			ErrorRate struct {
				Value     *float64 `json:"value"`
				Undefined bool     `json:"undefined"`
			} `json:"error_rate"`
		} `json:"word"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Nil(t, body.Word.ErrorRate.Value)
	assert.True(t, body.Word.ErrorRate.Undefined)
}

func TestDistance(t *testing.T) {
	router := newRouter(Options{})
	w := post(t, router, "/api/v1/distance", `{"reference":"kitten","hypothesis":"sitting","granularity":"char"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var result scorer.DistanceResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 3, result.Distance)
	assert.Equal(t, 6, result.ReferenceLength)
	assert.Equal(t, tokenizer.Char, result.Granularity)
}

func TestCompare(t *testing.T) {
	router := newRouter(Options{})
	w := post(t, router, "/api/v1/compare", `{"key":"u1","reference":"a b c","hypothesis_a":"a b","hypothesis_b":"a b c"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var record comparison.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, "u1", record.Key)
	assert.Equal(t, comparison.BBetter, record.Classification)
}

func TestRequestErrors(t *testing.T) {
	router := newRouter(Options{})
	tests := []struct {
		name string
		path string
		body string
		want int
	}{
		{name: "malformed", path: "/api/v1/score", body: `{"reference":`, want: http.StatusBadRequest},
		{name: "missing_hypothesis", path: "/api/v1/score", body: `{"reference":"a"}`, want: http.StatusUnprocessableEntity},
		{name: "unknown_policy", path: "/api/v1/score", body: `{"reference":"a","hypothesis":"a","normalization":"stem"}`, want: http.StatusBadRequest},
		{name: "unknown_granularity", path: "/api/v1/distance", body: `{"reference":"a","hypothesis":"a","granularity":"phoneme"}`, want: http.StatusBadRequest},
		{name: "distance_missing_hypothesis", path: "/api/v1/distance", body: `{"reference":"a"}`, want: http.StatusUnprocessableEntity},
		{name: "missing_hypothesis_b", path: "/api/v1/compare", body: `{"reference":"a","hypothesis_a":"a"}`, want: http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, router, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestNormalizations(t *testing.T) {
	router := newRouter(Options{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/normalizations", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"policies":["lower","none","standard"],"default":"none"}`, w.Body.String())
}
