package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdamiba/sandstone-project/common"
)

func doRequest(e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// TestErrorHandlerAppError renders the uniform error body
func TestErrorHandlerAppError(t *testing.T) {
	e := NewEchoServer(DefaultServerConfig())
	e.GET("/boom", func(c echo.Context) error {
		return common.Conflict("resource already exists").WithDetails("constraint", "uniq")
	})

	rec := doRequest(e, http.MethodGet, "/boom")
	assert.Equal(t, http.StatusConflict, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "resource already exists", body.Error)
	assert.Equal(t, http.StatusConflict, body.Code)
	assert.Equal(t, "uniq", body.Details["constraint"])
	assert.NotEmpty(t, body.Timestamp)
}

// TestErrorHandlerEchoError maps framework errors into the same shape
func TestErrorHandlerEchoError(t *testing.T) {
	e := NewEchoServer(DefaultServerConfig())

	rec := doRequest(e, http.MethodGet, "/no-such-route")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, http.StatusNotFound, body.Code)
	assert.NotEmpty(t, body.Error)
}

// TestErrorHandlerOpaqueError hides internals behind a generic 500
func TestErrorHandlerOpaqueError(t *testing.T) {
	e := NewEchoServer(DefaultServerConfig())
	e.GET("/internal", func(c echo.Context) error {
		return assert.AnError
	})

	rec := doRequest(e, http.MethodGet, "/internal")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())
}

// TestHealthCheckHandler reports the service identity
func TestHealthCheckHandler(t *testing.T) {
	e := NewEchoServer(DefaultServerConfig())
	e.GET("/health", HealthCheckHandler("sandstone", "1.2.3"))

	rec := doRequest(e, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "sandstone", body.Service)
	assert.Equal(t, "1.2.3", body.Version)
}

// TestRateLimiter returns 429 with the uniform body once the bucket
// empties
func TestRateLimiter(t *testing.T) {
	cfg := DefaultServerConfig()
	cfg.RateLimit = 1
	e := NewEchoServer(cfg)
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })

	limited := false
	for i := 0; i < 50; i++ {
		rec := doRequest(e, http.MethodGet, "/ping")
		if rec.Code == http.StatusTooManyRequests {
			var body ErrorBody
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, http.StatusTooManyRequests, body.Code)
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected the rate limiter to trip")
}
