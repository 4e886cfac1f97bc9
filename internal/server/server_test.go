package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azaliaz/bookstore/internal/config"
	"github.com/azaliaz/bookstore/internal/domain/models"
	"github.com/azaliaz/bookstore/internal/logger"
	"github.com/azaliaz/bookstore/internal/server/mocks"
)

const testSecret = "test-secret"

func init() {
	gin.SetMode(gin.ReleaseMode)
	logger.Get(false)
}

func newTestServer(t *testing.T) (*Server, *mocks.MockStorage) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockStorage := mocks.NewMockStorage(ctrl)
	return New(config.Config{Addr: ":0", JWTSecret: testSecret}, mockStorage), mockStorage
}

func request(t *testing.T, h http.Handler, method, path, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error  string       `json:"error"`
	Errors []fieldError `json:"errors"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func fields(body errorBody) []string {
	out := make([]string, 0, len(body.Errors))
	for _, fe := range body.Errors {
		out = append(out, fe.Field)
	}
	return out
}

func TestServer_health(t *testing.T) {
	s, mockStorage := newTestServer(t)
	router := s.Router()

	t.Run("ok", func(t *testing.T) {
		mockStorage.EXPECT().Ping(gomock.Any()).Return(nil)
		w := request(t, router, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	})

	t.Run("store down", func(t *testing.T) {
		mockStorage.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))
		w := request(t, router, http.MethodGet, "/health", "", "")
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("hello", func(t *testing.T) {
		w := request(t, router, http.MethodGet, "/", "", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "Hello", w.Body.String())
	})
}

func TestServer_notFoundRoute(t *testing.T) {
	s, _ := newTestServer(t)
	w := request(t, s.Router(), http.MethodGet, "/api/unknown", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Route not found", decodeError(t, w).Error)
}

func TestServer_recoversPanics(t *testing.T) {
	s, mockStorage := newTestServer(t)
	token, err := s.tokens.Issue("user1")
	require.NoError(t, err)

	mockStorage.EXPECT().GetBook(gomock.Any(), "b1").DoAndReturn(func(_ context.Context, _ string) (models.Book, error) {
		panic("boom")
	})
	w := request(t, s.Router(), http.MethodGet, "/api/books/b1", "", token)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgInternal, decodeError(t, w).Error)
	assert.NotContains(t, w.Body.String(), "boom")
}

func TestServer_errorHandler(t *testing.T) {
	r := gin.New()
	r.Use(errorHandler())
	r.GET("/silent", func(ctx *gin.Context) { _ = ctx.Error(errors.New("lost")) })
	r.GET("/answered", func(ctx *gin.Context) {
		_ = ctx.Error(errors.New("handled"))
		ctx.String(http.StatusTeapot, "tea")
	})

	w := request(t, r, http.MethodGet, "/silent", "", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, msgInternal, decodeError(t, w).Error)

	w = request(t, r, http.MethodGet, "/answered", "", "")
	assert.Equal(t, http.StatusTeapot, w.Code)
}

func TestServer_metrics(t *testing.T) {
	s, mockStorage := newTestServer(t)
	router := s.Router()
	mockStorage.EXPECT().Ping(gomock.Any()).Return(nil)
	request(t, router, http.MethodGet, "/health", "", "")

	w := request(t, router, http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `bookstore_http_requests_total{method="GET",route="/health",status="200"} 1`)
	assert.Contains(t, w.Body.String(), "bookstore_http_request_duration_seconds")
}

func TestServer_cors(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/books", nil)
	req.Header.Set("Origin", "http://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
