package middleware

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strings"

	"github.com/angelmondragon/recovero-backend/api/responses"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
	"github.com/angelmondragon/recovero-backend/pkg/logger"
)

const (
	signatureHeader  = "X-Recovero-Signature"
	maxSignedBodyLen = 1 << 20
)

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// RequireSignature checks X-Recovero-Signature against the body. An empty
// secret disables the check. The body is restored for the next handler.
func RequireSignature(secret string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if secret == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(io.LimitReader(r.Body, maxSignedBodyLen))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			provided := strings.TrimPrefix(strings.TrimSpace(r.Header.Get(signatureHeader)), "sha256=")
			got, err := hex.DecodeString(provided)
			if provided == "" || err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing or malformed signature"))
				return
			}
			want, _ := hex.DecodeString(Sign(secret, body))
			if !hmac.Equal(got, want) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature mismatch"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
