package telemetry

import (
	"errors"
	"strings"
)

const trackPath = "/v2/track"

// ConnectionSettings is the parsed form of an Application Insights connection string.
type ConnectionSettings struct {
	InstrumentationKey string
	// EndpointURL is the full ingestion URL, empty to use the library default.
	EndpointURL string
}

// ParseConnectionString parses "InstrumentationKey=...;IngestionEndpoint=...".
// Keys are case-insensitive and unknown keys are ignored.
func ParseConnectionString(raw string) (ConnectionSettings, error) {
	var out ConnectionSettings
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return ConnectionSettings{}, errors.New("malformed connection string segment")
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "instrumentationkey":
			out.InstrumentationKey = value
		case "ingestionendpoint":
			if value != "" {
				out.EndpointURL = strings.TrimRight(value, "/") + trackPath
			}
		}
	}
	if out.InstrumentationKey == "" {
		return ConnectionSettings{}, errors.New("connection string has no InstrumentationKey")
	}
	return out, nil
}
