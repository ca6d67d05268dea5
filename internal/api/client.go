// Package api is the REST client for the collaborator finance API.
//
// Every call carries the bearer credential from a single oauth2.TokenSource,
// runs under a bounded per-request timeout, and fails with one of the core
// error sentinels so callers can branch with errors.Is.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"fintrack/internal/core"
)

const (
	DefaultTimeout = 10 * time.Second

	// RequestIDHeader carries a per-request correlation id.
	RequestIDHeader = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

var recordPaths = map[core.RecordKind]string{
	core.KindIncome:  "/api/income",
	core.KindExpense: "/api/expenses",
	core.KindBudget:  "/api/budgets",
	core.KindGoal:    "/api/goals",
}

const (
	totalsPath      = "/api/transactions/totals"
	obligationsPath = "/api/expenses/recurring"
)

// Config configures a Client.
type Config struct {
	BaseURL string
	// Timeout bounds each request. Zero means DefaultTimeout.
	Timeout time.Duration
	// TokenSource supplies the bearer credential. Nil sends no credential.
	TokenSource oauth2.TokenSource
	// OnAuthExpired is called whenever the API answers 401.
	OnAuthExpired func()
	// Transport is the base round tripper. Nil means http.DefaultTransport.
	Transport http.RoundTripper
}

type Client struct {
	base          *url.URL
	http          *http.Client
	timeout       time.Duration
	onAuthExpired func()
}

// NewTokenSource wraps the single configured credential.
func NewTokenSource(token string) oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
}

func New(cfg Config) (*Client, error) {
	raw := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if raw == "" {
		return nil, errors.New("missing api base url")
	}
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid api base url %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := cfg.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if cfg.TokenSource != nil {
		transport = &oauth2.Transport{Source: cfg.TokenSource, Base: transport}
	}

	return &Client{
		base:          base,
		http:          &http.Client{Transport: transport},
		timeout:       timeout,
		onAuthExpired: cfg.OnAuthExpired,
	}, nil
}

// FetchRecords returns one raw record collection. Elements that are not
// JSON objects come back as empty records, so they aggregate as zero
// instead of failing the collection.
func (c *Client) FetchRecords(ctx context.Context, kind core.RecordKind) ([]core.Record, error) {
	path, ok := recordPaths[kind]
	if !ok {
		return nil, fmt.Errorf("unknown record kind %q: %w", kind, core.ErrValidation)
	}
	var raw []json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}

	out := make([]core.Record, 0, len(raw))
	skipped := 0
	for _, elem := range raw {
		rec, ok := decodeRecord(elem)
		if !ok {
			skipped++
		}
		out = append(out, rec)
	}
	if skipped > 0 {
		slog.WarnContext(ctx, "Non-object records counted as zero", "path", path, "count", skipped)
	}
	return out, nil
}

func decodeRecord(elem json.RawMessage) (core.Record, bool) {
	dec := json.NewDecoder(bytes.NewReader(elem))
	dec.UseNumber()
	var rec core.Record
	if err := dec.Decode(&rec); err != nil || rec == nil {
		return core.Record{}, false
	}
	return rec, true
}

// FetchTotals returns the server-side totals object as decoded.
func (c *Client) FetchTotals(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, http.MethodGet, totalsPath, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListObligations(ctx context.Context) ([]core.RecurringObligation, error) {
	var wire []obligationWire
	if err := c.do(ctx, http.MethodGet, obligationsPath, nil, &wire); err != nil {
		return nil, err
	}
	out := make([]core.RecurringObligation, 0, len(wire))
	for _, w := range wire {
		out = append(out, w.toDomain(ctx))
	}
	return out, nil
}

// UpdateNextDue persists a new due date. The returned obligation is the
// server's echo and may be empty when the server sends no body.
func (c *Client) UpdateNextDue(ctx context.Context, id string, nextDue core.Date) (core.RecurringObligation, error) {
	body := map[string]string{"nextDue": nextDue.Format(time.RFC3339)}
	var w obligationWire
	if err := c.do(ctx, http.MethodPatch, obligationPath(id), body, &w); err != nil {
		return core.RecurringObligation{}, err
	}
	return w.toDomain(ctx), nil
}

func (c *Client) DeleteObligation(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, obligationPath(id), nil, nil)
}

func obligationPath(id string) string {
	return obligationsPath + "/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w: %w", method, path, core.ErrNetwork, err)
	}
	reqID := uuid.NewString()
	req.Header.Set(RequestIDHeader, reqID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, context.Canceled) {
			// A sibling fetch failed or the caller went away.
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "API request failed", "method", method, "path", path, "request_id", reqID, "error", err)
		return fmt.Errorf("%s %s: %w: %w", method, path, core.ErrNetwork, err)
	}
	defer resp.Body.Close()

	slog.DebugContext(ctx, "API request completed",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", reqID,
		"duration_ms", time.Since(start).Milliseconds())

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %w", method, path, core.ErrNetwork, err)
	}

	if err := c.checkStatus(resp.StatusCode, data); err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%s %s: unexpected response: %w: %w", method, path, core.ErrNetwork, err)
	}
	return nil
}

func (c *Client) checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := serverMessage(body)
	switch status {
	case http.StatusUnauthorized:
		if c.onAuthExpired != nil {
			c.onAuthExpired()
		}
		return fmt.Errorf("status %d: %w", status, core.ErrAuthExpired)
	case http.StatusNotFound:
		return fmt.Errorf("status %d: %w", status, core.ErrNotFound)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Errorf("status %d %s: %w", status, msg, core.ErrValidation)
	default:
		return fmt.Errorf("status %d %s: %w", status, msg, core.ErrNetwork)
	}
}

// serverMessage extracts {"message": "..."} or {"error": "..."} when present.
func serverMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
