package controllers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/api/middleware"
	"github.com/angelmondragon/recovero-backend/internal/recovery"
	"github.com/angelmondragon/recovero-backend/internal/reminders"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
	"github.com/angelmondragon/recovero-backend/pkg/security"
)

const (
	// SessionCookie identifies the shopper's live cart across visits.
	SessionCookie    = "recovero_session"
	sessionCookieTTL = 30 * 24 * time.Hour
)

// RecoveryLink resolves a reminder link and always redirects to checkout.
// Unknown tokens, rate limited visitors and internal failures all land on
// the checkout page; only the side effects differ.
func RecoveryLink(checkoutURL string, resolver recovery.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer http.Redirect(w, r, checkoutURL, http.StatusFound)

		sessionID := sessionFromCookie(r)
		if sessionID == "" {
			minted, err := security.NewSessionID()
			if err != nil {
				logg.Error(r.Context(), "mint session id", err)
			} else {
				sessionID = minted
				setSessionCookie(w, r, sessionID)
			}
		}

		query := r.URL.Query()
		token := strings.TrimSpace(query.Get(reminders.TokenParam))
		if token == "" || resolver == nil {
			return
		}
		if middleware.RateLimited(r.Context()) {
			return
		}

		advisory, _ := strconv.ParseInt(strings.TrimSpace(query.Get(reminders.CartParam)), 10, 64)
		result, err := resolver.Resolve(r.Context(), recovery.Request{
			Token:     token,
			CartID:    advisory,
			SessionID: sessionID,
		})
		if err != nil {
			logg.Error(r.Context(), "resolve recovery link", err)
			return
		}
		if result.CartID != 0 {
			logCtx := logg.WithFields(logg.WithCartID(r.Context(), result.CartID), map[string]any{
				"recovered": result.Recovered,
				"restored":  result.Restored,
				"status":    result.Status.String(),
			})
			logg.Info(logCtx, "recovery link visited")
		}
	}
}

func sessionFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
