package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type countingLimiter struct {
	limit int64
	seen  map[string]int64
	err   error
}

func (c *countingLimiter) FixedWindowAllow(_ context.Context, scope string, limit int64, _ time.Duration) (bool, int64, error) {
	if c.err != nil {
		return false, 0, c.err
	}
	if c.seen == nil {
		c.seen = map[string]int64{}
	}
	c.seen[scope]++
	return c.seen[scope] <= limit, c.seen[scope], nil
}

func TestRequireSignature(t *testing.T) {
	var got string
	handler := RequireSignature("shh", nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = string(body)
		w.WriteHeader(http.StatusOK)
	}))
	body := `{"order_id":"1001"}`

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(signatureHeader, "sha256="+Sign("shh", []byte(body)))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || got != body {
		t.Fatalf("expected signed request to pass with body intact, got %d %q", resp.Code, got)
	}

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	req.Header.Set(signatureHeader, Sign("other", []byte(body)))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong secret, got %d", resp.Code)
	}
}

func TestRequireSignatureDisabledWithoutSecret(t *testing.T) {
	handler := RequireSignature("", nil)(okHandler())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{}")))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
}

func TestRateLimitBlocksPerIP(t *testing.T) {
	limiter := &countingLimiter{}
	handler := RateLimit(NewRateLimitPolicy("Track", time.Minute, 2), limiter, nil)(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		codes = append(codes, resp.Code)
	}
	if codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}
	if limiter.seen["track:ip:203.0.113.9"] != 3 {
		t.Fatalf("expected scope keyed by first forwarded hop, got %v", limiter.seen)
	}
}

func TestSoftRateLimitFlagsAndFailsOpen(t *testing.T) {
	var limited []bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		limited = append(limited, RateLimited(r.Context()))
		w.WriteHeader(http.StatusFound)
	})
	handler := SoftRateLimit(NewRateLimitPolicy("recovery", time.Minute, 1), &countingLimiter{}, nil)(next)
	for i := 0; i < 2; i++ {
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
		if resp.Code != http.StatusFound {
			t.Fatalf("soft limit must never reject, got %d", resp.Code)
		}
	}
	if limited[0] || !limited[1] {
		t.Fatalf("unexpected flags %v", limited)
	}

	limited = nil
	broken := SoftRateLimit(NewRateLimitPolicy("recovery", time.Minute, 1), &countingLimiter{err: errors.New("down")}, nil)(next)
	broken.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if limited[0] {
		t.Fatalf("redis failure should fail open")
	}
}

func TestClientIPPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5000"
	if got := ClientIP(req); got != "192.0.2.1" {
		t.Fatalf("expected socket peer, got %q", got)
	}
	req.Header.Set("X-Real-IP", "198.51.100.2")
	if got := ClientIP(req); got != "198.51.100.2" {
		t.Fatalf("expected X-Real-IP, got %q", got)
	}
	req.Header.Set("Client-IP", "198.51.100.3")
	if got := ClientIP(req); got != "198.51.100.3" {
		t.Fatalf("expected Client-IP, got %q", got)
	}
}

func TestRequestIDReplacesMalformedHeader(t *testing.T) {
	handler := RequestID(nil)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Header().Get(requestIDHeader) != "abc-123" {
		t.Fatalf("expected upstream id echoed")
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "bad id\nwith newline")
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if got := resp.Header().Get(requestIDHeader); got == "" || strings.Contains(got, " ") {
		t.Fatalf("expected generated id, got %q", got)
	}
}

func TestRecovererReturns500(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
