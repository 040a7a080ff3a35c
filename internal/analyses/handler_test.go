package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contract-analyzer/internal/extract"
	"contract-analyzer/internal/shared/auth"
	"contract-analyzer/internal/shared/server/middleware"
)

func newHandlerRouter(t *testing.T, f *fixture, async bool) *gin.Engine {
	t.Helper()
	t.Setenv("JWT_SECRET", "analyses-secret")
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Auth())
	NewHandler(f.svc, f.docs, async).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func do(t *testing.T, r http.Handler, method, path, userID string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := auth.SignJWT(auth.Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: userID}})
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func errorCode(t *testing.T, resp *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &envelope))
	return envelope.Error.Code
}

func TestAnalyzeEndpointSync(t *testing.T) {
	f := newFixture(t, validResponse)
	f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, buildDocx(t, "Term: 2 years"))
	r := newHandlerRouter(t, f, false)

	resp := do(t, r, http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var body map[string]any
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Len(t, body, 3)
	assert.Equal(t, "Two-year supply deal.", body["summary"])
	assert.Contains(t, body, "key_information")
	assert.Contains(t, body, "risk_assessment")
}

func TestAnalyzeEndpointNotOwned(t *testing.T) {
	f := newFixture(t, validResponse)
	f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, buildDocx(t, "x"))
	r := newHandlerRouter(t, f, false)

	resp := do(t, r, http.MethodPost, "/api/v1/documents/doc-1/analyze", "mallory")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	assert.Equal(t, "not_found", errorCode(t, resp))
	assert.Zero(t, f.analyzer.calls)

	resp = do(t, r, http.MethodPost, "/api/v1/documents/missing/analyze", "alice")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestAnalyzeEndpointErrorMapping(t *testing.T) {
	t.Run("in progress", func(t *testing.T) {
		f := newFixture(t, validResponse)
		f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, buildDocx(t, "x"))
		unlock, err := f.locker.TryLock(context.Background(), "document:doc-1")
		require.NoError(t, err)
		defer unlock()

		resp := do(t, newHandlerRouter(t, f, false), http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice")
		assert.Equal(t, http.StatusConflict, resp.Code)
		assert.Equal(t, "analysis_in_progress", errorCode(t, resp))
	})
	t.Run("rejected unsupported", func(t *testing.T) {
		f := newFixture(t, validResponse)
		f.svc.RejectUnsupported = true
		f.addDocument(t, "doc-1", "alice", "image/png", []byte("\x89PNG"))

		resp := do(t, newHandlerRouter(t, f, false), http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice")
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.Code)
		assert.Equal(t, "unsupported_format", errorCode(t, resp))
	})
	t.Run("corrupt document", func(t *testing.T) {
		f := newFixture(t, validResponse)
		f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, []byte("not a zip"))

		resp := do(t, newHandlerRouter(t, f, false), http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, "document_parse_error", errorCode(t, resp))
	})
	t.Run("storage failure", func(t *testing.T) {
		f := newFixture(t, validResponse)
		f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, nil)

		resp := do(t, newHandlerRouter(t, f, false), http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice")
		assert.Equal(t, http.StatusInternalServerError, resp.Code)
		assert.Equal(t, "analysis_failed", errorCode(t, resp))
	})
}

func TestAnalyzeEndpointAsync(t *testing.T) {
	f := newFixture(t, validResponse)
	q := &fakeQueue{}
	f.svc.Queue = q
	f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, buildDocx(t, "x"))
	r := newHandlerRouter(t, f, true)

	resp := do(t, r, http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice")
	require.Equal(t, http.StatusAccepted, resp.Code)
	require.Len(t, q.sent, 1)
	assert.Equal(t, "doc-1", q.sent[0].DocumentID)
	assert.Equal(t, resp.Header().Get("X-Request-Id"), q.sent[0].RequestID)
	assert.Zero(t, f.analyzer.calls)
}

func TestDocumentDetailEmbedsAnalyses(t *testing.T) {
	f := newFixture(t, validResponse)
	f.addDocument(t, "doc-1", "alice", extract.MimeDOCX, buildDocx(t, "x"))
	r := newHandlerRouter(t, f, false)

	require.Equal(t, http.StatusOK, do(t, r, http.MethodPost, "/api/v1/documents/doc-1/analyze", "alice").Code)

	resp := do(t, r, http.MethodGet, "/api/v1/documents/doc-1", "alice")
	require.Equal(t, http.StatusOK, resp.Code)
	var detail struct {
		DocumentID      string `json:"documentId"`
		Status          string `json:"status"`
		AnalysisResults []struct {
			DocumentID     string `json:"document_id"`
			Summary        string `json:"summary"`
			ProcessingTime int    `json:"processing_time"`
		} `json:"analysisResults"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &detail))
	assert.Equal(t, "doc-1", detail.DocumentID)
	assert.Equal(t, "analyzed", detail.Status)
	require.Len(t, detail.AnalysisResults, 1)
	assert.Equal(t, "Two-year supply deal.", detail.AnalysisResults[0].Summary)
	assert.Equal(t, 2, detail.AnalysisResults[0].ProcessingTime)

	resp = do(t, r, http.MethodGet, "/api/v1/documents/doc-1/analyses", "alice")
	require.Equal(t, http.StatusOK, resp.Code)
	var list []AnalysisResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &list))
	assert.Len(t, list, 1)

	resp = do(t, r, http.MethodGet, "/api/v1/documents/doc-1", "bob")
	assert.Equal(t, http.StatusNotFound, resp.Code)
}
