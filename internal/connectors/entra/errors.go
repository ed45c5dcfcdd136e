package entra

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// APIError is a non-2xx Graph response.
type APIError struct {
	Prefix     string
	StatusCode int
	Status     string
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	switch {
	case e.Message != "" && e.Details != "":
		return fmt.Sprintf("%s: %s: %s (%s)", e.Prefix, e.Status, e.Message, e.Details)
	case e.Message != "":
		return fmt.Sprintf("%s: %s: %s", e.Prefix, e.Status, e.Message)
	case e.Details != "":
		return fmt.Sprintf("%s: %s (%s)", e.Prefix, e.Status, e.Details)
	default:
		return fmt.Sprintf("%s: %s", e.Prefix, e.Status)
	}
}

func newAPIError(prefix, reqURL string, resp *http.Response, body []byte) *APIError {
	return &APIError{
		Prefix:     prefix,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    extractGraphAPIErrorMessage(body),
		Details:    formatGraphAPIErrorDetails(reqURL, resp),
	}
}

func extractGraphAPIErrorMessage(body []byte) string {
	var payload struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		msg := strings.TrimSpace(payload.Error.Message)
		code := strings.TrimSpace(payload.Error.Code)
		switch {
		case msg != "" && code != "":
			return code + ": " + msg
		case msg != "":
			return msg
		case code != "":
			return code
		}
	}

	msg := strings.Join(strings.Fields(string(body)), " ")
	const maxLen = 300
	if len(msg) > maxLen {
		msg = msg[:maxLen] + "…"
	}
	return msg
}

func formatGraphAPIErrorDetails(reqURL string, resp *http.Response) string {
	var parts []string
	if v := safeURL(reqURL); v != "" {
		parts = append(parts, "url="+v)
	}
	for _, h := range []struct{ header, key string }{
		{"request-id", "request_id"},
		{"client-request-id", "client_request_id"},
		{"Retry-After", "retry_after"},
	} {
		if v := strings.TrimSpace(resp.Header.Get(h.header)); v != "" {
			parts = append(parts, h.key+"="+v)
		}
	}
	return strings.Join(parts, ", ")
}

// safeURL drops userinfo and fragments before a URL is put in an error.
func safeURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	if u.RawQuery != "" {
		return u.Scheme + "://" + u.Host + u.Path + "?" + u.RawQuery
	}
	return u.Scheme + "://" + u.Host + u.Path
}
