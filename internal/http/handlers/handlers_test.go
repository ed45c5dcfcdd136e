package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v5"

	"github.com/lucapisano/Az.Monitor.Extensions/internal/reports"
)

type stubReport struct {
	name   string
	err    error
	filter string
	calls  int
}

func (r *stubReport) Name() string { return r.name }

func (r *stubReport) Run(_ context.Context, filter string) error {
	r.calls++
	r.filter = filter
	return r.err
}

func newTestHandlers(t *testing.T, rs ...reports.Report) *Handlers {
	t.Helper()
	reg, err := reports.NewRegistry(rs...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return &Handlers{Reports: reg, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func newContext(method, target, body string) (*echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestHandleReportPassesBodyAsFilter(t *testing.T) {
	r := &stubReport{name: "secrets"}
	h := newTestHandlers(t, r)

	c, rec := newContext(http.MethodPost, "/api/GraphSecretsHttp", "11111111-2222-3333-4444-555555555555")
	if err := h.HandleReport("secrets")(c); err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusOK)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("body=%q want empty", rec.Body.String())
	}
	if r.calls != 1 || r.filter != "11111111-2222-3333-4444-555555555555" {
		t.Fatalf("calls=%d filter=%q", r.calls, r.filter)
	}
}

func TestHandleReportFailureReturnsErrorText(t *testing.T) {
	r := &stubReport{name: "fileshares", err: errors.New("list subscriptions: authorization failed")}
	h := newTestHandlers(t, r)

	c, rec := newContext(http.MethodPost, "/api/FileShareSpaceMonitoringHttp", "")
	if err := h.HandleReport("fileshares")(c); err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}
	if got := rec.Body.String(); got != "list subscriptions: authorization failed" {
		t.Fatalf("body=%q", got)
	}
}

func TestHandleReportUnknownName(t *testing.T) {
	h := newTestHandlers(t, &stubReport{name: "secrets"})

	c, rec := newContext(http.MethodPost, "/api/reports/nope", "")
	if err := h.HandleReport("nope")(c); err != nil {
		t.Fatalf("HandleReport: %v", err)
	}
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestRenderErrorDoesNotLeakError(t *testing.T) {
	c, rec := newContext(http.MethodGet, "http://example.com/test", "")
	c.Set(ContextKeyRequestID, "req-123")

	h := &Handlers{}
	if err := h.RenderError(c, errors.New("token=secret")); err != nil {
		t.Fatalf("RenderError: %v", err)
	}

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d want %d", rec.Code, http.StatusInternalServerError)
	}
	body := rec.Body.String()
	if strings.Contains(body, "secret") {
		t.Fatalf("response leaked error details: %q", body)
	}
	if !strings.Contains(body, "Reference: req-123") {
		t.Fatalf("response missing request reference: %q", body)
	}
	if !strings.Contains(body, "Code: "+InternalErrorCode) {
		t.Fatalf("response missing error code: %q", body)
	}
}

func TestHandleHealthz(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/healthz", "")
	if err := (&Handlers{}).HandleHealthz(c); err != nil {
		t.Fatalf("HandleHealthz: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("status=%d body=%q", rec.Code, rec.Body.String())
	}
}
