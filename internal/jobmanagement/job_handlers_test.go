package jobmanagement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speech-data-explorer/backend/internal/datastore"
)

func newTestRouter(t *testing.T, archive ReportArchive) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	service := NewJobService(openStore(t), archive, ServiceOptions{})
	router := gin.New()
	NewHandlers(service, nil).RegisterRoutes(router.Group("/jobs"))
	return router
}

func do(router http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

const singleJobBody = `{
	"job_name": "api",
	"utterances": [
		{"key": "1", "reference": "a b c", "hypothesis": "a b d"},
		{"key": "2", "reference": "x y"}
	]
}`

func TestJobHandlersRoundTrip(t *testing.T) {
	router := newTestRouter(t, newFakeArchive())

	w := do(router, http.MethodPost, "/jobs", singleJobBody)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job datastore.EvaluationJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, datastore.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.Failed)

	w = do(router, http.MethodGet, "/jobs/1", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = do(router, http.MethodGet, "/jobs?job_type=single&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	var jobs []datastore.EvaluationJob
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &jobs))
	assert.Len(t, jobs, 1)

	w = do(router, http.MethodGet, "/jobs/1/results", "")
	require.Equal(t, http.StatusOK, w.Code)
	var results []datastore.ASREvaluationResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &results))
	assert.Len(t, results, 2)

	w = do(router, http.MethodGet, "/jobs/1/report", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"job_id":1`)
}

func TestJobHandlersErrors(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		want   int
	}{
		{name: "malformed_body", method: http.MethodPost, path: "/jobs", body: "{", want: http.StatusBadRequest},
		{name: "invalid_request", method: http.MethodPost, path: "/jobs", body: `{"job_type":"x"}`, want: http.StatusBadRequest},
		{name: "bad_id", method: http.MethodGet, path: "/jobs/abc", want: http.StatusBadRequest},
		{name: "missing_job", method: http.MethodGet, path: "/jobs/99", want: http.StatusNotFound},
		{name: "missing_results", method: http.MethodGet, path: "/jobs/99/results", want: http.StatusNotFound},
		{name: "archive_disabled", method: http.MethodGet, path: "/jobs/1/report", want: http.StatusNotFound},
		{name: "bad_limit", method: http.MethodGet, path: "/jobs?limit=-1", want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(router, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}
