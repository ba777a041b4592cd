package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"bluegreen-server/internal/auth"
	"bluegreen-server/internal/config"
)

type contextKey string

const ActorKey contextKey = "actor"

// JWT accepts a bearer token in the Authorization header or, for browser
// clients, the access_token cookie. The sub claim becomes the actor.
func JWT(cfg *config.Config) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.ValidateToken(TokenFromRequest(r), cfg.JWTSecret)
			if err != nil {
				unauthorized(w, "Unauthorized: "+err.Error())
				return
			}

			actor, err := auth.Subject(claims)
			if err != nil {
				unauthorized(w, "Unauthorized: "+err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), ActorKey, actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}

func GetActor(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(ActorKey).(string)
	return actor, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}
