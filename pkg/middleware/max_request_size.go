package middleware

import (
	"net/http"

	apperrors "slotbook/pkg/errors"
	httputil "slotbook/pkg/http"
)

// MaxRequestSize caps the body at limit bytes. A declared length over the
// limit is rejected up front; an undeclared one fails on read, which the JSON
// decoder surfaces as an invalid body.
func MaxRequestSize(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				w.Header().Set("Connection", "close")
				_ = httputil.WriteError(w, apperrors.New(apperrors.CodeInvalidInput, "Request body too large", http.StatusRequestEntityTooLarge))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
