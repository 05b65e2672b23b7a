package stream

import (
	"net/http"
	"time"

	utils "livewall/pkg/utils"

	"github.com/labstack/echo/v4"
)

type Handler struct {
	service *StreamService
	version string
}

func NewHandler(service *StreamService, version string) *Handler {
	return &Handler{
		service: service,
		version: version,
	}
}

// GetStreams serves the reconciled stream list. Snapshot failures and requests
// outliving their deadline still answer 200 with an empty list and an error field.
func (h *Handler) GetStreams(c echo.Context) error {
	ctx := c.Request().Context()
	done := make(chan StreamsResponse, 1)
	go func() {
		resp, _ := h.service.View(ctx)
		done <- resp
	}()

	select {
	case resp := <-done:
		return c.JSON(http.StatusOK, resp)
	case <-ctx.Done():
		utils.WithField("error", ctx.Err().Error()).Warn("Stream view did not finish in time")
		return c.JSON(http.StatusOK, StreamsResponse{Streams: []PublicStreamItem{}, Error: TimeoutMessage})
	}
}

// Health reports liveness of the read API
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	})
}

// RegisterRoutes mounts the read API on e
func (h *Handler) RegisterRoutes(e *echo.Echo, m ...echo.MiddlewareFunc) {
	e.GET("/api/streams", h.GetStreams, m...)
	e.GET("/health", h.Health)
}
