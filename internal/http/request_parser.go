package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"famfin/internal/core"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// errMalformed marks requests that could not be parsed at all (400), as
// opposed to parsed requests that fail validation (422).
var errMalformed = errors.New("malformed request")

// decodeJSON reads a single JSON document from the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errMalformed)
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body larger than %d bytes", errMalformed, maxErr.Limit)
		default:
			return fmt.Errorf("%w: %v", errMalformed, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON body", errMalformed)
	}
	return nil
}

// pathID parses a positive integer path value.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid %s %q", errMalformed, name, raw)
	}
	return id, nil
}

// monthParam validates a YYYY-MM value; empty stays empty.
func monthParam(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	d, err := core.ParseMonth(raw)
	if err != nil {
		return "", fmt.Errorf("%w: month must be YYYY-MM, got %q", errMalformed, raw)
	}
	return d.MonthKey(), nil
}

// dateParam parses an optional YYYY-MM-DD value.
func dateParam(raw, field string) (core.Date, error) {
	if strings.TrimSpace(raw) == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s must be YYYY-MM-DD", errMalformed, field)
	}
	return d, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// parseUserID reads the caller id from the X-User-ID header.
func parseUserID(r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(r.Header.Get(headerUserID))
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
