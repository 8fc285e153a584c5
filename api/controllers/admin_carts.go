package controllers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/angelmondragon/recovero-backend/api/responses"
	"github.com/angelmondragon/recovero-backend/api/validators"
	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/pagination"
)

type cartAdmin interface {
	List(ctx context.Context, params pagination.Params, filters carts.ListFilters) (*carts.CartList, error)
	Get(ctx context.Context, id int64) (*carts.CartDetail, error)
	Delete(ctx context.Context, id int64) error
	MarkRecovered(ctx context.Context, id int64) error
}

type emailResender interface {
	Resend(ctx context.Context, cartID int64) error
}

// BulkRequest applies one action to several carts.
type BulkRequest struct {
	Action string  `json:"action" validate:"required,oneof=resend delete mark_recovered"`
	IDs    []int64 `json:"ids" validate:"required,min=1,max=200,dive,gt=0"`
}

// BulkResult reports per-cart outcomes; one failing cart does not stop the rest.
type BulkResult struct {
	Action    string           `json:"action"`
	Succeeded []int64          `json:"succeeded"`
	Failed    map[int64]string `json:"failed,omitempty"`
}

func AdminListCarts(svc cartAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var filters carts.ListFilters
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseCartStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status").WithDetails(map[string]any{"field": "status"}))
				return
			}
			filters.Status = &status
		}

		list, err := svc.List(r.Context(), pagination.Params{
			Limit:  limit,
			Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
		}, filters)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, list)
	}
}

// AdminGetCart returns the cart with its recovery history. The payload
// doubles as the cart export.
func AdminGetCart(svc cartAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		download, err := validators.ParseQueryBool(r, "download")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if download {
			w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="cart-%d.json"`, id))
		}
		responses.WriteSuccess(w, detail)
	}
}

func AdminDeleteCart(svc cartAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func AdminResendCart(svc emailResender, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reminder service unavailable"))
			return
		}
		id, err := validators.ParseIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Resend(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"cart_id": id, "sent": true})
	}
}

func AdminBulkCarts(admin cartAdmin, resender emailResender, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if admin == nil || resender == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var body BulkRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var apply func(ctx context.Context, id int64) error
		switch body.Action {
		case "resend":
			apply = resender.Resend
		case "delete":
			apply = admin.Delete
		case "mark_recovered":
			apply = admin.MarkRecovered
		}

		result := BulkResult{Action: body.Action, Succeeded: make([]int64, 0, len(body.IDs))}
		seen := make(map[int64]struct{}, len(body.IDs))
		for _, id := range body.IDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			if err := apply(r.Context(), id); err != nil {
				if result.Failed == nil {
					result.Failed = map[int64]string{}
				}
				result.Failed[id] = bulkFailure(err)
				logg.Warn(logg.WithFields(logg.WithCartID(r.Context(), id), map[string]any{"action": body.Action}), "bulk action failed: "+err.Error())
				continue
			}
			result.Succeeded = append(result.Succeeded, id)
		}
		responses.WriteSuccess(w, result)
	}
}

func bulkFailure(err error) string {
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}
