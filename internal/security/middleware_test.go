package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
)

func newServer() *echo.Echo {
	e := echo.New()
	SetupSecurityMiddleware(e, nil)
	e.Use(LoggingMiddleware)
	return e
}

func TestSetupSecurityMiddleware_Headers(t *testing.T) {
	e := newServer()
	e.GET("/ping", func(c echo.Context) error { return c.String(http.StatusOK, "pong") })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(echo.HeaderOrigin, "https://example.com")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "nosniff", rec.Header().Get(echo.HeaderXContentTypeOptions))
	require.Equal(t, "DENY", rec.Header().Get(echo.HeaderXFrameOptions))
	require.Contains(t, rec.Header().Get(echo.HeaderContentSecurityPolicy), "img-src 'self' data: https:")
	require.Equal(t, "*", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	require.NotEmpty(t, rec.Header().Get(echo.HeaderXRequestID))
}

func TestSetupSecurityMiddleware_RecoversPanics(t *testing.T) {
	e := newServer()
	e.GET("/boom", func(c echo.Context) error { panic("boom") })

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTimeoutMiddleware(t *testing.T) {
	e := echo.New()
	e.GET("/slow", func(c echo.Context) error {
		select {
		case <-c.Request().Context().Done():
			return c.Request().Context().Err()
		case <-time.After(time.Second):
		}
		return c.NoContent(http.StatusOK)
	}, TimeoutMiddleware(20*time.Millisecond))
	e.GET("/own-answer", func(c echo.Context) error {
		<-c.Request().Context().Done()
		return c.JSON(http.StatusOK, map[string]string{"error": "late"})
	}, TimeoutMiddleware(20*time.Millisecond))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/slow", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/own-answer", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"error": "late"}`, rec.Body.String())
}
