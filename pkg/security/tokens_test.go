package security_test

import (
	"regexp"
	"testing"

	"github.com/angelmondragon/recovero-backend/pkg/security"
)

func TestNewRecoveryToken(t *testing.T) {
	seen := map[string]bool{}
	pattern := regexp.MustCompile(`^[A-Za-z0-9]{20}$`)
	for i := 0; i < 50; i++ {
		token, err := security.NewRecoveryToken()
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		if !pattern.MatchString(token) {
			t.Fatalf("unexpected token shape %q", token)
		}
		if seen[token] {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = true
	}
}

func TestNewCouponCode(t *testing.T) {
	code, err := security.NewCouponCode("recovero-")
	if err != nil {
		t.Fatalf("coupon: %v", err)
	}
	if !regexp.MustCompile(`^RECOVERO-[A-Z0-9]{6}$`).MatchString(code) {
		t.Fatalf("unexpected coupon code %q", code)
	}
}

func TestNewSessionID(t *testing.T) {
	sid, err := security.NewSessionID()
	if err != nil || len(sid) != 32 {
		t.Fatalf("unexpected session id %q err=%v", sid, err)
	}
}
