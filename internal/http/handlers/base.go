// Package handlers contains the HTTP handlers that trigger reports on demand.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v5"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
)

const (
	// ContextKeyRequestID stores the request id (X-Request-ID) for logging and client error references.
	ContextKeyRequestID = "request_id"

	// InternalErrorCode is a stable error code safe to return to clients.
	InternalErrorCode = "INTERNAL_ERROR"
)

// Handlers groups all HTTP handlers and shared dependencies.
type Handlers struct {
	Reports *reports.Registry
	Logger  *slog.Logger
}

// HandleHealthz returns a simple health check response.
func (h *Handlers) HandleHealthz(c *echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// RenderError returns a plain text error response without the error detail.
func (h *Handlers) RenderError(c *echo.Context, err error) error {
	requestID, _ := c.Get(ContextKeyRequestID).(string)
	h.logger(c).Error("http error",
		"request_id", requestID,
		"method", c.Request().Method,
		"path", c.Request().URL.Path,
		"ip", c.RealIP(),
		"err", err,
	)

	msg := "Internal server error."
	if requestID != "" {
		msg = fmt.Sprintf("%s Reference: %s.", msg, requestID)
	}
	msg = fmt.Sprintf("%s Code: %s.", msg, InternalErrorCode)
	return c.String(http.StatusInternalServerError, msg)
}

// RenderNotFound returns a 404 response.
func RenderNotFound(c *echo.Context) error {
	return c.String(http.StatusNotFound, "404 page not found")
}

func (h *Handlers) logger(c *echo.Context) *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	if l := c.Logger(); l != nil {
		return l
	}
	return slog.Default()
}
