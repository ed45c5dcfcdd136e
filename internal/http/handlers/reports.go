package handlers

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
)

// maxFilterBody bounds the plain-text filter accepted in a trigger request.
const maxFilterBody = 64 << 10

// HandleReport runs the named report synchronously with the request body as
// its filter. A failed run answers 500 with the error text.
func (h *Handlers) HandleReport(name string) echo.HandlerFunc {
	return func(c *echo.Context) error {
		return h.runReport(c, name)
	}
}

// HandleReportByName is HandleReport with the report taken from the :name
// path parameter.
func (h *Handlers) HandleReportByName(c *echo.Context) error {
	return h.runReport(c, c.Param("name"))
}

func (h *Handlers) runReport(c *echo.Context, name string) error {
	report, err := h.Reports.Get(name)
	if errors.Is(err, reports.ErrUnknownReport) {
		return RenderNotFound(c)
	}
	if err != nil {
		return h.RenderError(c, err)
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFilterBody))
	if err != nil {
		return h.RenderError(c, err)
	}

	requestID, _ := c.Get(ContextKeyRequestID).(string)
	logger := h.logger(c).With("request_id", requestID)
	ctx := reports.WithLogger(c.Request().Context(), logger)

	start := time.Now()
	if err := report.Run(ctx, string(body)); err != nil {
		logger.Error("on-demand report failed", "report", report.Name(), "duration", time.Since(start), "err", err)
		return c.String(http.StatusInternalServerError, err.Error())
	}
	logger.Info("on-demand report completed", "report", report.Name(), "duration", time.Since(start))
	return c.NoContent(http.StatusOK)
}
