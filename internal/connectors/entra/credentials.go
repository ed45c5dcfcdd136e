package entra

import (
	"strings"
	"time"
)

// ParseGraphTime parses a Graph DateTimeOffset value. An empty value reports
// ok=false with no error.
func ParseGraphTime(raw string) (t time.Time, ok bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), true, nil
}
