package middleware

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type fakeStore struct {
	data map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: make(map[string]string)}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func requestWithPattern(method, url, pattern string, body io.Reader) *http.Request {
	req := httptest.NewRequest(method, url, body)
	rc := chi.NewRouteContext()
	rc.RoutePatterns = []string{pattern}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"sent":true}`))
	}))

	pattern := "/api/v1/admin/carts/{id}/resend"
	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/admin/carts/7/resend", pattern, strings.NewReader(`{}`))
		req.Header.Set(idempotencyHeader, "retry-1")
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK || resp.Body.String() != `{"sent":true}` {
			t.Fatalf("call %d: unexpected response %d %s", i, resp.Code, resp.Body.String())
		}
		if i == 1 && resp.Header().Get("Idempotent-Replay") != "true" {
			t.Fatalf("expected replay header on retry")
		}
	}
	if calls != 1 {
		t.Fatalf("expected handler once, got %d", calls)
	}
}

func TestIdempotencyRejectsDifferentBody(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	pattern := "/api/v1/admin/carts/bulk"

	first := requestWithPattern(http.MethodPost, "/api/v1/admin/carts/bulk", pattern, strings.NewReader(`{"ids":[1]}`))
	first.Header.Set(idempotencyHeader, "bulk-1")
	handler.ServeHTTP(httptest.NewRecorder(), first)

	second := requestWithPattern(http.MethodPost, "/api/v1/admin/carts/bulk", pattern, strings.NewReader(`{"ids":[2]}`))
	second.Header.Set(idempotencyHeader, "bulk-1")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, second)
	if resp.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", resp.Code)
	}
}

func TestIdempotencyDoesNotStoreServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	pattern := "/api/v1/admin/email/test"
	for i := 0; i < 2; i++ {
		req := requestWithPattern(http.MethodPost, "/api/v1/admin/email/test", pattern, strings.NewReader(`{}`))
		req.Header.Set(idempotencyHeader, "mail-1")
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both attempts to reach the handler, got %d", calls)
	}
}

func TestIdempotencyIgnoresUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(okHandler())
	req := requestWithPattern(http.MethodPost, "/api/v1/track/cart", "/api/v1/track/cart", strings.NewReader(`{}`))
	req.Header.Set(idempotencyHeader, "k")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	if len(store.data) != 0 {
		t.Fatalf("expected nothing stored, got %v", store.data)
	}
}
