package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}
	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"Rossi"}`, false},
		{"unknown fields ignored", `{"name":"Rossi","extra":1}`, false},
		{"empty", ``, true},
		{"broken", `{"name":`, true},
		{"wrong type", `{"name":5}`, true},
		{"trailing", `{"name":"a"}{"name":"b"}`, true},
		{"too large", `{"name":"` + strings.Repeat("x", maxBodyBytes) + `"}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			var p payload
			err := decodeJSON(httptest.NewRecorder(), r, &p)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errMalformed) {
				t.Errorf("err = %v, want errMalformed", err)
			}
		})
	}
}

func TestPathID(t *testing.T) {
	for raw, ok := range map[string]bool{"12": true, "0": false, "-1": false, "abc": false} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.SetPathValue("id", raw)
		id, err := pathID(r, "id")
		if (err == nil) != ok {
			t.Errorf("pathID(%q) = %d, %v", raw, id, err)
		}
	}
}

func TestMonthAndDateParams(t *testing.T) {
	if m, err := monthParam(" 2024-06 "); err != nil || m != "2024-06" {
		t.Errorf("monthParam = %q, %v", m, err)
	}
	if m, err := monthParam(""); err != nil || m != "" {
		t.Errorf("empty monthParam = %q, %v", m, err)
	}
	if _, err := monthParam("2024-13"); !errors.Is(err, errMalformed) {
		t.Errorf("monthParam(2024-13) err = %v", err)
	}
	if d, err := dateParam("2024-06-30", "date"); err != nil || d.String() != "2024-06-30" {
		t.Errorf("dateParam = %v, %v", d, err)
	}
	if d, err := dateParam("", "date"); err != nil || !d.IsZero() {
		t.Errorf("empty dateParam = %v, %v", d, err)
	}
	if _, err := dateParam("30/06/2024", "date"); !errors.Is(err, errMalformed) {
		t.Errorf("bad date err = %v", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  Spesa\x00 settimanale\x07 "); got != "Spesa settimanale" {
		t.Errorf("sanitizeInput = %q", got)
	}
}

func TestParseUserID(t *testing.T) {
	for raw, want := range map[string]int64{"7": 7, " 42 ": 42, "": 0, "x": 0, "-3": 0} {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if raw != "" {
			r.Header.Set(headerUserID, raw)
		}
		id, ok := parseUserID(r)
		if id != want || ok != (want > 0) {
			t.Errorf("parseUserID(%q) = %d, %v", raw, id, ok)
		}
	}
}
