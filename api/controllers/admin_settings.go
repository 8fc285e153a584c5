package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/recovero-backend/api/responses"
	"github.com/angelmondragon/recovero-backend/api/validators"
	"github.com/angelmondragon/recovero-backend/internal/licenses"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

type testMailer interface {
	SendTestEmail(ctx context.Context, to string) error
}

type licenseManager interface {
	Status(ctx context.Context) (licenses.Status, error)
	Activate(ctx context.Context, key string) (licenses.Status, error)
	Deactivate(ctx context.Context) (licenses.Status, error)
}

type TestEmailRequest struct {
	To string `json:"to" validate:"required,email"`
}

type ActivateLicenseRequest struct {
	LicenseKey string `json:"license_key" validate:"required,max=128"`
}

func AdminTestEmail(svc testMailer, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reminder service unavailable"))
			return
		}
		var body TestEmailRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SendTestEmail(r.Context(), body.To); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"to": body.To, "sent": true})
	}
}

func AdminLicenseStatus(svc licenseManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}
		status, err := svc.Status(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func AdminActivateLicense(svc licenseManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}
		var body ActivateLicenseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := svc.Activate(r.Context(), body.LicenseKey)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}

func AdminDeactivateLicense(svc licenseManager, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}
		status, err := svc.Deactivate(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, status)
	}
}
