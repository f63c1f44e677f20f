package http

import (
	"context"
	"net/http"
	"strings"

	apperrors "github.com/dyagdi/PriceLess/pkg/errors"
	"github.com/dyagdi/PriceLess/pkg/httputil"
	"github.com/dyagdi/PriceLess/pkg/logger"
	"github.com/dyagdi/PriceLess/pkg/middleware"
)

// maxSessionIDLength bounds the X-Session-ID header; the id becomes part of a
// storage key.
const maxSessionIDLength = 128

type contextKey string

const sessionIDKey contextKey = "session_id"

// SessionFromHeader reads X-Session-ID into the request context. Requests
// without it are rejected with 401.
func SessionFromHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(middleware.SessionIDHeader))
		if id == "" {
			httputil.WriteError(w, r, apperrors.Unauthorized(middleware.SessionIDHeader+" header is required"), nil)
			return
		}
		if len(id) > maxSessionIDLength || strings.ContainsAny(id, ": \t") {
			httputil.WriteError(w, r, apperrors.InvalidInput(middleware.SessionIDHeader+" header is malformed"), nil)
			return
		}

		ctx := context.WithValue(r.Context(), sessionIDKey, id)
		ctx = logger.WithSessionID(ctx, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func sessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// ContentTypeJSON rejects request bodies that are declared as anything other
// than JSON. A missing Content-Type is accepted.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut || r.Method == http.MethodPatch {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteError(w, r, apperrors.UnsupportedMediaType("Content-Type must be application/json"), nil)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
