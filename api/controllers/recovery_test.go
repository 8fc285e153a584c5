package controllers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/angelmondragon/recovero-backend/api/middleware"
	"github.com/angelmondragon/recovero-backend/internal/recovery"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
)

type stubResolver struct {
	calls []recovery.Request
	res   recovery.Result
	err   error
}

func (s *stubResolver) Resolve(_ context.Context, req recovery.Request) (recovery.Result, error) {
	s.calls = append(s.calls, req)
	return s.res, s.err
}

const checkoutURL = "https://shop.example.com/checkout"

func TestRecoveryLinkResolvesAndRedirects(t *testing.T) {
	resolver := &stubResolver{res: recovery.Result{CartID: 7, Recovered: true, Status: enums.CartStatusRecovered}}
	handler := RecoveryLink(checkoutURL, resolver, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/?recovero_token=tok123&recovero_cart=7", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "sess-1"})
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", resp.Code)
	}
	if loc := resp.Header().Get("Location"); loc != checkoutURL {
		t.Fatalf("unexpected location %q", loc)
	}
	if len(resolver.calls) != 1 {
		t.Fatalf("expected one resolve call, got %d", len(resolver.calls))
	}
	got := resolver.calls[0]
	if got.Token != "tok123" || got.CartID != 7 || got.SessionID != "sess-1" {
		t.Fatalf("unexpected request %+v", got)
	}
	if len(resp.Result().Cookies()) != 0 {
		t.Fatalf("existing session cookie should not be replaced")
	}
}

func TestRecoveryLinkMintsSessionCookie(t *testing.T) {
	resolver := &stubResolver{}
	handler := RecoveryLink(checkoutURL, resolver, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/?recovero_token=tok123", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	cookies := resp.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != SessionCookie || cookies[0].Value == "" {
		t.Fatalf("expected minted session cookie, got %v", cookies)
	}
	if resolver.calls[0].SessionID != cookies[0].Value {
		t.Fatalf("resolver should receive the minted session id")
	}
}

func TestRecoveryLinkAlwaysRedirects(t *testing.T) {
	cases := map[string]struct {
		url      string
		resolver *stubResolver
		calls    int
	}{
		"no token":       {url: "/", resolver: &stubResolver{}, calls: 0},
		"resolver error": {url: "/?recovero_token=x", resolver: &stubResolver{err: errors.New("db down")}, calls: 1},
		"bad cart id":    {url: "/?recovero_token=x&recovero_cart=abc", resolver: &stubResolver{}, calls: 1},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			RecoveryLink(checkoutURL, tc.resolver, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, tc.url, nil))
			if resp.Code != http.StatusFound || resp.Header().Get("Location") != checkoutURL {
				t.Fatalf("expected redirect to checkout, got %d %q", resp.Code, resp.Header().Get("Location"))
			}
			if len(tc.resolver.calls) != tc.calls {
				t.Fatalf("expected %d resolve calls, got %d", tc.calls, len(tc.resolver.calls))
			}
		})
	}
}

type denyAll struct{}

func (denyAll) FixedWindowAllow(context.Context, string, int64, time.Duration) (bool, int64, error) {
	return false, 99, nil
}

func TestRecoveryLinkRateLimitedSkipsResolution(t *testing.T) {
	resolver := &stubResolver{}
	policy := middleware.NewRateLimitPolicy("recovery", time.Minute, 5)
	handler := middleware.SoftRateLimit(policy, denyAll{}, testLogger())(RecoveryLink(checkoutURL, resolver, testLogger()))

	req := httptest.NewRequest(http.MethodGet, "/?recovero_token=tok123", nil)
	req.RemoteAddr = "203.0.113.9:5000"
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Fatalf("expected 302 got %d", resp.Code)
	}
	if len(resolver.calls) != 0 {
		t.Fatalf("rate limited visit should not resolve")
	}
}
