package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
	"slotbook/pkg/identity"
	"slotbook/pkg/logger"
)

// TokenOpener is satisfied by *identity.Sealer.
type TokenOpener interface {
	Open(token string, now time.Time) (string, error)
}

// Authenticate resolves a bearer token into the request's user identity.
// Requests without an Authorization header pass through anonymously; handlers
// that need a user reject them. A malformed or expired token is rejected here.
func Authenticate(opener TokenOpener, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			scheme, token, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
				rejectUnauthorized(w, log, r, "malformed authorization header")
				return
			}

			userID, err := opener.Open(strings.TrimSpace(token), time.Now())
			if err != nil {
				reason := "invalid token"
				if errors.Is(err, identity.ErrExpiredToken) {
					reason = "token expired"
				}
				rejectUnauthorized(w, log, r, reason)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.WithUser(r.Context(), userID)))
		})
	}
}

func rejectUnauthorized(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Authentication failed",
		"request_id", RequestID(r.Context()),
		"reason", reason,
		"path", r.URL.Path,
	)
	w.Header().Set("WWW-Authenticate", `Bearer realm="slotbook"`)
	_ = httputil.WriteError(w, apperrors.Unauthorized(reason))
}
