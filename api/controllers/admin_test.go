package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/angelmondragon/recovero-backend/api/middleware"
	"github.com/angelmondragon/recovero-backend/internal/auth"
	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/licenses"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/pagination"
)

type stubAuthService struct {
	resp      *auth.LoginResponse
	err       error
	loggedOut string
}

func (s *stubAuthService) Login(context.Context, auth.LoginRequest) (*auth.LoginResponse, error) {
	return s.resp, s.err
}

func (s *stubAuthService) Logout(_ context.Context, tokenID string) error {
	s.loggedOut = tokenID
	return s.err
}

func TestAdminLogin(t *testing.T) {
	svc := &stubAuthService{resp: &auth.LoginResponse{AccessToken: "access-token", TokenType: "Bearer"}}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(`{"email":"owner@example.com","password":"pw"}`))
	resp := httptest.NewRecorder()
	AdminLogin(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("X-Recovero-Token"); got != "access-token" {
		t.Fatalf("expected token header, got %q", got)
	}

	svc.err = pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	resp = httptest.NewRecorder()
	AdminLogin(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/login", strings.NewReader(`{"email":"owner@example.com","password":"bad"}`)))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if env := decodeError(t, resp); env.Error.Message != "invalid credentials" {
		t.Fatalf("unexpected message %q", env.Error.Message)
	}
}

func TestAdminLogoutRevokesTokenID(t *testing.T) {
	svc := &stubAuthService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/logout", nil)
	req = req.WithContext(middleware.WithAdmin(req.Context(), "owner@example.com", "admin", "jti-42"))
	resp := httptest.NewRecorder()
	AdminLogout(svc, testLogger()).ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent || svc.loggedOut != "jti-42" {
		t.Fatalf("expected 204 and jti-42 revoked, got %d %q", resp.Code, svc.loggedOut)
	}
}

type stubCartAdmin struct {
	listParams  pagination.Params
	listFilters carts.ListFilters
	deleted     []int64
	recovered   []int64
	missing     map[int64]bool
}

func (s *stubCartAdmin) List(_ context.Context, params pagination.Params, filters carts.ListFilters) (*carts.CartList, error) {
	s.listParams, s.listFilters = params, filters
	return &carts.CartList{}, nil
}

func (s *stubCartAdmin) Get(_ context.Context, id int64) (*carts.CartDetail, error) {
	if s.missing[id] {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	return &carts.CartDetail{Cart: models.AbandonedCart{ID: id}}, nil
}

func (s *stubCartAdmin) Delete(_ context.Context, id int64) error {
	if s.missing[id] {
		return pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubCartAdmin) MarkRecovered(_ context.Context, id int64) error {
	s.recovered = append(s.recovered, id)
	return nil
}

type stubResender struct{ sent []int64 }

func (s *stubResender) Resend(_ context.Context, id int64) error {
	s.sent = append(s.sent, id)
	return nil
}

func TestAdminListCartsParsesQuery(t *testing.T) {
	svc := &stubCartAdmin{}
	resp := httptest.NewRecorder()
	AdminListCarts(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/admin/carts?status=recovered&limit=10&cursor=abc", nil))

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if svc.listParams.Limit != 10 || svc.listParams.Cursor != "abc" {
		t.Fatalf("unexpected params %+v", svc.listParams)
	}
	if svc.listFilters.Status == nil || *svc.listFilters.Status != enums.CartStatusRecovered {
		t.Fatalf("expected recovered filter")
	}

	resp = httptest.NewRecorder()
	AdminListCarts(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/admin/carts?status=lost", nil))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", resp.Code)
	}
}

func TestAdminGetCart(t *testing.T) {
	svc := &stubCartAdmin{missing: map[int64]bool{9: true}}

	resp := httptest.NewRecorder()
	AdminGetCart(svc, testLogger()).ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/admin/carts/4?download=1", nil), "id", "4"))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if got := resp.Header().Get("Content-Disposition"); !strings.Contains(got, "cart-4.json") {
		t.Fatalf("expected export filename, got %q", got)
	}

	resp = httptest.NewRecorder()
	AdminGetCart(svc, testLogger()).ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/admin/carts/9", nil), "id", "9"))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	AdminGetCart(svc, testLogger()).ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodGet, "/api/v1/admin/carts/x", nil), "id", "x"))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}

func TestAdminDeleteAndResend(t *testing.T) {
	admin := &stubCartAdmin{}
	resender := &stubResender{}

	resp := httptest.NewRecorder()
	AdminDeleteCart(admin, testLogger()).ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/carts/5", nil), "id", "5"))
	if resp.Code != http.StatusNoContent || len(admin.deleted) != 1 {
		t.Fatalf("expected delete, got %d %v", resp.Code, admin.deleted)
	}

	resp = httptest.NewRecorder()
	AdminResendCart(resender, testLogger()).ServeHTTP(resp, withURLParam(httptest.NewRequest(http.MethodPost, "/api/v1/admin/carts/5/resend", nil), "id", "5"))
	if resp.Code != http.StatusOK || len(resender.sent) != 1 || resender.sent[0] != 5 {
		t.Fatalf("expected resend, got %d %v", resp.Code, resender.sent)
	}
}

func TestAdminBulkCarts(t *testing.T) {
	admin := &stubCartAdmin{missing: map[int64]bool{3: true}}
	resender := &stubResender{}
	handler := AdminBulkCarts(admin, resender, testLogger())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/carts/bulk", strings.NewReader(`{"action":"delete","ids":[1,3,1,2]}`)))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	var out BulkResult
	decodeData(t, resp, &out)
	if len(out.Succeeded) != 2 || out.Failed[3] != string(pkgerrors.CodeNotFound) {
		t.Fatalf("unexpected bulk result %+v", out)
	}
	if len(admin.deleted) != 2 {
		t.Fatalf("duplicates should be applied once, got %v", admin.deleted)
	}

	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/carts/bulk", strings.NewReader(`{"action":"mark_recovered","ids":[8]}`)))
	if resp.Code != http.StatusOK || len(admin.recovered) != 1 {
		t.Fatalf("expected mark_recovered applied, got %d %v", resp.Code, admin.recovered)
	}

	for _, body := range []string{`{"action":"archive","ids":[1]}`, `{"action":"resend","ids":[]}`, `{"action":"resend","ids":[0]}`} {
		resp = httptest.NewRecorder()
		handler.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/carts/bulk", strings.NewReader(body)))
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for %s, got %d", body, resp.Code)
		}
	}
	if len(resender.sent) != 0 {
		t.Fatalf("invalid requests must not send")
	}
}

type stubLicenses struct {
	activated string
	status    licenses.Status
}

func (s *stubLicenses) Status(context.Context) (licenses.Status, error) { return s.status, nil }

func (s *stubLicenses) Activate(_ context.Context, key string) (licenses.Status, error) {
	s.activated = key
	s.status = licenses.Status{Status: enums.LicenseStatusActive, Pro: true}
	return s.status, nil
}

func (s *stubLicenses) Deactivate(context.Context) (licenses.Status, error) {
	s.status = licenses.Status{Status: enums.LicenseStatusInactive}
	return s.status, nil
}

func TestAdminLicenseEndpoints(t *testing.T) {
	svc := &stubLicenses{}

	resp := httptest.NewRecorder()
	AdminActivateLicense(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/license/activate", strings.NewReader(`{"license_key":"ABCD-1234"}`)))
	if resp.Code != http.StatusOK || svc.activated != "ABCD-1234" {
		t.Fatalf("expected activation, got %d %q", resp.Code, svc.activated)
	}
	var status licenses.Status
	decodeData(t, resp, &status)
	if !status.Pro {
		t.Fatalf("expected pro status")
	}

	resp = httptest.NewRecorder()
	AdminActivateLicense(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/license/activate", strings.NewReader(`{}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}

	resp = httptest.NewRecorder()
	AdminDeactivateLicense(svc, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/license/deactivate", nil))
	if resp.Code != http.StatusOK || svc.status.Status != enums.LicenseStatusInactive {
		t.Fatalf("expected deactivation, got %d", resp.Code)
	}
}

type stubMailer struct{ to string }

func (s *stubMailer) SendTestEmail(_ context.Context, to string) error {
	s.to = to
	return nil
}

func TestAdminTestEmail(t *testing.T) {
	mailer := &stubMailer{}
	resp := httptest.NewRecorder()
	AdminTestEmail(mailer, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/email/test", strings.NewReader(`{"to":"ops@example.com"}`)))
	if resp.Code != http.StatusOK || mailer.to != "ops@example.com" {
		t.Fatalf("expected test email, got %d %q", resp.Code, mailer.to)
	}

	resp = httptest.NewRecorder()
	AdminTestEmail(mailer, testLogger()).ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/admin/email/test", strings.NewReader(`{"to":"nope"}`)))
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
