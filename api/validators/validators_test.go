package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

type sampleBody struct {
	Email string `json:"email" validate:"required,email"`
	Count int    `json:"count" validate:"gt=0"`
}

func TestDecodeJSONBodyValidates(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","count":0}`))
	var body sampleBody
	err := DecodeJSONBody(req, &body)
	if !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestDecodeJSONBodyAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","count":2}`))
	var body sampleBody
	if err := DecodeJSONBody(req, &body); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if body.Count != 2 {
		t.Fatalf("unexpected body %#v", body)
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	if _, err := ParseQueryInt(req, "limit", 50, 1, 200); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected range error, got %v", err)
	}
	v, err := ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 50, 1, 200)
	if err != nil || v != 50 {
		t.Fatalf("expected default, got %d %v", v, err)
	}
}

func TestParseQueryBool(t *testing.T) {
	for raw, want := range map[string]bool{"": false, "1": true, "TRUE": true, "no": false} {
		got, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?download="+raw, nil), "download")
		if err != nil || got != want {
			t.Fatalf("%q: expected %v, got %v %v", raw, want, got, err)
		}
	}
	if _, err := ParseQueryBool(httptest.NewRequest(http.MethodGet, "/?download=maybe", nil), "download"); err == nil {
		t.Fatalf("expected error for maybe")
	}
}

func TestSanitizeString(t *testing.T) {
	if got := SanitizeString("  Mozilla/5.0\x00\n ", 0); got != "Mozilla/5.0" {
		t.Fatalf("unexpected %q", got)
	}
	if got := SanitizeString("héllo", 2); got != "h" {
		t.Fatalf("expected rune-safe cut, got %q", got)
	}
}
