package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// JWTMiddleware attaches the caller's user ID when the request carries a
// valid HS256 bearer token. Requests without one, or with a bad one, are
// served anonymously.
type JWTMiddleware struct {
	secret []byte
}

func NewJWTMiddleware(secret string) *JWTMiddleware {
	return &JWTMiddleware{secret: []byte(secret)}
}

func (m *JWTMiddleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr := extractBearerToken(r)
		if tokenStr == "" || len(m.secret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		claims, userID, err := m.parse(tokenStr)
		if err != nil {
			slog.Debug("ignoring bearer token", "error", err)
			next.ServeHTTP(w, r)
			return
		}

		ctx := WithUserID(r.Context(), userID)
		ctx = context.WithValue(ctx, claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *JWTMiddleware) parse(tokenStr string) (*Claims, uuid.UUID, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, uuid.Nil, err
	}
	if !token.Valid {
		return nil, uuid.Nil, errors.New("invalid token")
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, uuid.Nil, fmt.Errorf("invalid user ID in token: %w", err)
	}
	return claims, userID, nil
}

// IssueToken signs an HS256 token for userID that expires after ttl.
func IssueToken(secret string, userID uuid.UUID, email string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("JWT secret is not configured")
	}
	now := time.Now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
