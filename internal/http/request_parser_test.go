package http

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestParseAsOf(t *testing.T) {
	now := time.Date(2024, 2, 10, 23, 30, 0, 0, time.UTC)
	tests := []struct {
		name    string
		query   url.Values
		want    string
		wantErr bool
	}{
		{name: "defaults to today", query: url.Values{}, want: "2024-02-10"},
		{name: "calendar date", query: url.Values{"asOf": {"2024-03-01"}}, want: "2024-03-01"},
		{name: "timestamp truncated", query: url.Values{"asOf": {"2024-03-01T18:00:00Z"}}, want: "2024-03-01"},
		{name: "malformed", query: url.Values{"asOf": {"yesterday"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAsOf(tt.query, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseAsOf() = %v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAsOf() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAsOf() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 50},
		{"10", 10},
		{"0", 50},
		{"-3", 50},
		{"abc", 50},
		{"900", 500},
	}
	for _, tt := range tests {
		if got := ParseLimit(url.Values{"limit": {tt.raw}}, 50, 500); got != tt.want {
			t.Errorf("ParseLimit(%q) = %d, want %d", tt.raw, got, tt.want)
		}
	}
}

func TestRequestBodyParser_JSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"nextDue":" 2024-03-01 ","n":12.5,"flag":true}`))
	req.Header.Set("Content-Type", "application/json")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.Get("nextDue"); got != "2024-03-01" {
		t.Errorf("Get(nextDue) = %q", got)
	}
	if got := p.Get("n"); got != "12.5" {
		t.Errorf("Get(n) = %q", got)
	}
	if got := p.Get("flag"); got != "true" {
		t.Errorf("Get(flag) = %q", got)
	}
	if got := p.Get("missing"); got != "" {
		t.Errorf("Get(missing) = %q", got)
	}
}

func TestRequestBodyParser_Form(t *testing.T) {
	req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader("nextDue=2024-03-01"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if got := p.Get("nextDue"); got != "2024-03-01" {
		t.Errorf("Get(nextDue) = %q", got)
	}
}

func TestRequestBodyParser_Errors(t *testing.T) {
	t.Run("invalid json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(`{"nextDue":`))
		if err := NewRequestBodyParser(req).Parse(); err == nil {
			t.Error("Parse() error = nil, want error")
		}
	})

	t.Run("body too large", func(t *testing.T) {
		big := `{"x":"` + strings.Repeat("a", maxRequestBody) + `"}`
		req := httptest.NewRequest(http.MethodPatch, "/", strings.NewReader(big))
		if err := NewRequestBodyParser(req).Parse(); err == nil {
			t.Error("Parse() error = nil, want error")
		}
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/", nil)
		p := NewRequestBodyParser(req)
		if err := p.Parse(); err != nil {
			t.Errorf("Parse() error = %v", err)
		}
		if p.Get("nextDue") != "" {
			t.Error("empty body should yield empty values")
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput(" a\x00b\tc "); got != "ab\tc" {
		t.Errorf("sanitizeInput() = %q", got)
	}
}
