package middleware

import (
	"context"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/savingcircle/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for the authenticated user ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for the authenticated user's email.
	EmailKey contextKey = "email"
	// NameKey is the context key for the authenticated user's display name.
	NameKey contextKey = "name"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// GetName extracts the display name from the context.
func GetName(ctx context.Context) string {
	name, _ := ctx.Value(NameKey).(string)
	return name
}

// WithClaims returns ctx carrying the identity in claims.
func WithClaims(ctx context.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	ctx = context.WithValue(ctx, EmailKey, claims.Email)
	return context.WithValue(ctx, NameKey, claims.Name)
}

// RequireAuth rejects requests without a valid bearer token. Procedures listed
// in public skip the check.
func RequireAuth(jwtManager *auth.JWTManager, public ...string) connect.UnaryInterceptorFunc {
	skip := make(map[string]bool, len(public))
	for _, p := range public {
		skip[p] = true
	}

	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if skip[req.Spec().Procedure] {
				return next(ctx, req)
			}

			tokenString, err := bearerToken(req.Header().Get("Authorization"))
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}

			return next(WithClaims(ctx, claims), req)
		}
	}
}

// OptionalAuth attaches the identity when a valid token is present and lets
// anonymous requests through otherwise.
func OptionalAuth(jwtManager *auth.JWTManager) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if tokenString, err := bearerToken(req.Header().Get("Authorization")); err == nil {
				if claims, err := jwtManager.Validate(tokenString); err == nil {
					ctx = WithClaims(ctx, claims)
				}
			}
			return next(ctx, req)
		}
	}
}

// TokenSource supplies the bearer token for outgoing requests. An empty token
// sends the request unauthenticated.
type TokenSource interface {
	Token() string
}

// BearerToken is the client-side counterpart of RequireAuth: it sets the
// Authorization header on every outgoing unary call.
func BearerToken(src TokenSource) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			if req.Spec().IsClient {
				if token := src.Token(); token != "" {
					req.Header().Set("Authorization", "Bearer "+token)
				}
			}
			return next(ctx, req)
		}
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", auth.ErrInvalidToken
	}
	return token, nil
}
