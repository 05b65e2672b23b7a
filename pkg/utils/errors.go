package pkg

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

// CustomHTTPErrorHandler handles errors across the application
func CustomHTTPErrorHandler(err error, c echo.Context) {
	var appErr *AppError
	var he *echo.HTTPError

	switch {
	case errors.As(err, &appErr):
		appErr = &AppError{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
	case errors.As(err, &he):
		appErr = &AppError{
			Code:    he.Code,
			Message: fmt.Sprintf("%v", he.Message),
		}
	default:
		appErr = &AppError{
			Code:    http.StatusInternalServerError,
			Message: "Internal server error",
			Details: err.Error(),
		}
	}

	WithFields(map[string]interface{}{
		"error":  err.Error(),
		"code":   appErr.Code,
		"path":   c.Request().URL.Path,
		"method": c.Request().Method,
	}).Error("HTTP Error")

	// Don't expose internal error details
	if appErr.Code == http.StatusInternalServerError {
		appErr.Details = ""
	}

	if !c.Response().Committed {
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.Code)
			return
		}
		_ = c.JSON(appErr.Code, appErr)
	}
}
