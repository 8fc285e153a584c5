package controllers

import (
	"net/http"

	"github.com/angelmondragon/recovero-backend/api/middleware"
	"github.com/angelmondragon/recovero-backend/api/responses"
	"github.com/angelmondragon/recovero-backend/api/validators"
	"github.com/angelmondragon/recovero-backend/internal/auth"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

// AdminLogin wires the operator login endpoint into the HTTP layer.
func AdminLogin(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}

		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		w.Header().Set("X-Recovero-Token", result.AccessToken)
		responses.WriteSuccess(w, result)
	}
}

func AdminLogout(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "auth service unavailable"))
			return
		}
		if err := svc.Logout(r.Context(), middleware.TokenIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
