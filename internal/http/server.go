package httpapp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v5"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/http/handlers"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/logging"
	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
)

const (
	headerRequestID   = "X-Request-ID"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

// Trigger routes kept from the function app this service replaces.
const (
	FileShareTriggerPath = "/api/FileShareSpaceMonitoringHttp"
	SecretsTriggerPath   = "/api/GraphSecretsHttp"
)

// EchoServer is the HTTP server wrapper.
type EchoServer struct {
	h      *handlers.Handlers
	e      *echo.Echo
	logger *slog.Logger
}

// Routes maps a trigger path to the report it runs.
type Routes map[string]string

// DefaultRoutes wires the legacy trigger paths to the built-in reports.
func DefaultRoutes(fileShareReport, secretsReport string) Routes {
	return Routes{
		FileShareTriggerPath: fileShareReport,
		SecretsTriggerPath:   secretsReport,
	}
}

// NewEchoServer creates a new HTTP server.
func NewEchoServer(reg *reports.Registry, routes Routes, logger *slog.Logger) (*EchoServer, error) {
	if reg == nil {
		return nil, errors.New("report registry is required")
	}
	logger = logging.OrDefault(logger)
	h := &handlers.Handlers{Reports: reg, Logger: logger}
	e := echo.New()
	e.Logger = logger
	es := &EchoServer{h: h, e: e, logger: logger}
	e.HTTPErrorHandler = es.httpErrorHandler
	es.registerRoutes(routes)
	return es, nil
}

func (es *EchoServer) registerRoutes(routes Routes) {
	es.e.Use(requestID, es.accessLog)

	es.e.GET("/healthz", es.h.HandleHealthz)
	for path, name := range routes {
		es.e.POST(path, es.h.HandleReport(name))
	}
	es.e.POST("/api/reports/:name", es.h.HandleReportByName)
}

// Handler exposes the router, mainly for tests.
func (es *EchoServer) Handler() http.Handler {
	return es.e
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (es *EchoServer) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           es.e,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		es.logger.Info("http listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestID(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		id := strings.TrimSpace(c.Request().Header.Get(headerRequestID))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		c.Set(handlers.ContextKeyRequestID, id)
		c.Response().Header().Set(headerRequestID, id)
		return next(c)
	}
}

func (es *EchoServer) accessLog(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c *echo.Context) error {
		start := time.Now()
		err := next(c)
		reqID, _ := c.Get(handlers.ContextKeyRequestID).(string)
		es.logger.Debug("http request",
			"request_id", reqID,
			"method", c.Request().Method,
			"path", c.Request().URL.Path,
			"duration", time.Since(start),
		)
		return err
	}
}

func (es *EchoServer) httpErrorHandler(c *echo.Context, err error) {
	status := httpStatusFromError(err)
	switch {
	case status == http.StatusNotFound:
		_ = handlers.RenderNotFound(c)
	case status >= http.StatusInternalServerError:
		_ = es.h.RenderError(c, err)
	default:
		_ = c.String(status, http.StatusText(status))
	}
}

type statusCoder interface {
	StatusCode() int
}

func httpStatusFromError(err error) int {
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() != 0 {
		return sc.StatusCode()
	}
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Code != 0 {
		return he.Code
	}
	return http.StatusInternalServerError
}
