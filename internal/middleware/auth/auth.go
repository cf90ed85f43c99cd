package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	resp "mysterymsg/internal/lib/api/response"
	"mysterymsg/internal/lib/jwt"
)

type contextKey string

const userIDKey contextKey = "user_id"

// New returns middleware that requires a valid Bearer access token and puts
// the account id into the request context. Denial messaging is uniform and
// never hints at whether a resource exists.
func New(tokenSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("unauthorized"))

				return
			}

			tokenStr := strings.TrimPrefix(header, "Bearer ")

			userID, err := jwt.ParseAccessToken(tokenStr, tokenSecret)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("unauthorized"))

				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID extracts the authenticated account id set by New.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok
}
