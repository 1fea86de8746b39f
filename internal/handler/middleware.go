package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Dianasmith6525/amerilendloan-sub000/internal/domain"
	"github.com/Dianasmith6525/amerilendloan-sub000/pkg/response"
)

type principalContextKey struct{}

// Dev-only headers accepted when no JWT secret is configured.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFrom retrieves the authenticated caller stored by AuthMiddleware.
func PrincipalFrom(ctx context.Context) (domain.Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	return p, ok
}

// AuthMiddleware validates HS256 bearer tokens and stores the caller's principal in
// the request context. The subject claim is the user ID and the role claim is
// "admin" or "user". With an empty secret the dev headers are trusted instead.
func AuthMiddleware(secret, issuer string) func(http.Handler) http.Handler {
	var opts []jwt.ParserOption
	opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret == "" {
				p, err := principalFromHeaders(r)
				if err != nil {
					response.Unauthorized(w, err.Error())
					return
				}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				response.Unauthorized(w, "Authorization header required")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				response.Unauthorized(w, "Invalid Authorization header format")
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			}, opts...)
			if err != nil || !token.Valid {
				response.Unauthorized(w, "Invalid token")
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				response.Unauthorized(w, "Invalid token claims")
				return
			}

			userID, _ := claims["sub"].(string)
			if userID == "" {
				response.Unauthorized(w, "User ID not found in token")
				return
			}

			role, _ := claims["role"].(string)
			p, err := newPrincipal(userID, role)
			if err != nil {
				response.Unauthorized(w, err.Error())
				return
			}

			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

func principalFromHeaders(r *http.Request) (domain.Principal, error) {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	if userID == "" {
		return domain.Principal{}, fmt.Errorf("%s header required", HeaderUserID)
	}
	return newPrincipal(userID, r.Header.Get(HeaderUserRole))
}

func newPrincipal(userID, role string) (domain.Principal, error) {
	switch domain.Role(role) {
	case "", domain.RoleUser:
		return domain.Principal{UserID: userID, Role: domain.RoleUser}, nil
	case domain.RoleAdmin:
		return domain.Principal{UserID: userID, Role: domain.RoleAdmin}, nil
	}
	return domain.Principal{}, fmt.Errorf("unknown role %q", role)
}
