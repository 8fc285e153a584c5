package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/recovero-backend/api/middleware"
	"github.com/angelmondragon/recovero-backend/api/responses"
	"github.com/angelmondragon/recovero-backend/api/validators"
	"github.com/angelmondragon/recovero-backend/internal/carts"
	"github.com/angelmondragon/recovero-backend/internal/recovery"
	"github.com/angelmondragon/recovero-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/types"
)

const maxUserAgentLen = 512

type geoRecorder interface {
	Record(ctx context.Context, ip, userAgent string) (string, error)
}

// TrackResponse acknowledges an ingested storefront event.
type TrackResponse struct {
	Tracked bool   `json:"tracked"`
	CartID  int64  `json:"cart_id,omitempty"`
	Status  string `json:"status,omitempty"`
}

func trackResponse(cart *models.AbandonedCart) TrackResponse {
	if cart == nil {
		return TrackResponse{}
	}
	return TrackResponse{Tracked: true, CartID: cart.ID, Status: cart.Status.String()}
}

// TrackCart ingests a cart snapshot. The geo sample is best effort and
// never fails the request.
func TrackCart(tracker carts.Tracker, recorder geoRecorder, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart tracker unavailable"))
			return
		}

		var event carts.CartChangedEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event.IPAddress = middleware.ClientIP(r)
		event.UserAgent = validators.SanitizeString(r.UserAgent(), maxUserAgentLen)

		if recorder != nil && len(event.Items) > 0 {
			location, err := recorder.Record(r.Context(), event.IPAddress, event.UserAgent)
			if err != nil {
				logg.Warn(logg.WithField(r.Context(), "ip", event.IPAddress), "geo sample: "+err.Error())
			}
			event.Location = location
		}

		cart, err := tracker.OnCartChanged(r.Context(), event)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trackResponse(cart))
	}
}

func TrackCheckout(tracker carts.Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart tracker unavailable"))
			return
		}

		var event carts.CheckoutEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := tracker.OnCheckoutStarted(r.Context(), event)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trackResponse(cart))
	}
}

// TrackOrder records a completed order. The route sits behind the signature
// middleware.
func TrackOrder(tracker carts.Tracker, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tracker == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart tracker unavailable"))
			return
		}

		var event carts.OrderCompletedEvent
		if err := validators.DecodeJSONBody(r, &event); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		cart, err := tracker.OnOrderCompleted(r.Context(), event)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, trackResponse(cart))
	}
}

// SessionCart returns the live cart restored for a session, so the
// storefront can rebuild it after a recovery redirect. The session comes
// from the cookie, or the session_id query parameter for server-side calls.
func SessionCart(sessions recovery.SessionCarts, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if sessions == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotConfigured, "session carts unavailable"))
			return
		}
		sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
		if sessionID == "" {
			sessionID = sessionFromCookie(r)
		}
		if sessionID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "session_id is required"))
			return
		}

		cart, err := sessions.Get(r.Context(), sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session cart"))
			return
		}
		if cart == nil {
			cart = &recovery.SessionCart{Items: types.LineItems{}}
		}
		responses.WriteSuccess(w, map[string]any{"session_id": sessionID, "items": cart.Items, "contact": cart.Contact})
	}
}
