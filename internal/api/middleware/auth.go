package middleware

import (
	"context"
	"net/http"
	"strings"

	"attendance.service/internal/core/model"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityKey contextKey = "identity"

// Claims carried by the access token. Token issuance itself lives outside
// this service; we only verify and extract the acting principal.
type Claims struct {
	UserID    int64  `json:"user_id"`
	Role      string `json:"role"`
	StationID *int64 `json:"station_id,omitempty"`
	jwt.RegisteredClaims
}

// Auth verifies the bearer token and stores the caller's identity in the
// request context. Requests without a valid token are rejected here so
// handlers can assume an authenticated principal.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := r.Header.Get("Authorization")
			if !strings.HasPrefix(h, "Bearer ") {
				http.Error(w, "Missing bearer token", http.StatusUnauthorized)
				return
			}
			tok := strings.TrimPrefix(h, "Bearer ")

			claims := &Claims{}
			parsed, err := jwt.ParseWithClaims(tok, claims, func(token *jwt.Token) (any, error) {
				return []byte(secret), nil
			}, jwt.WithValidMethods([]string{"HS256"}))
			if err != nil || !parsed.Valid {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			identity := model.Identity{
				ActorID:   claims.UserID,
				Role:      model.Role(claims.Role),
				StationID: claims.StationID,
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// IdentityFromContext retrieves the authenticated principal set by Auth.
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityKey).(model.Identity)
	return id, ok
}
