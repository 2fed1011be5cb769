package middleware

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/Hampusfredrik/mindmap/pkg/auth"
	pkgerrors "github.com/Hampusfredrik/mindmap/pkg/errors"
)

// UserIDHeader carries the caller resolved by an upstream authorizer
const UserIDHeader = "X-User-ID"

// UserEmailHeader optionally carries the caller's email alongside UserIDHeader
const UserEmailHeader = "X-User-Email"

// Authenticator resolves the caller of a request into its context
type Authenticator func(next http.Handler) http.Handler

// Authenticate creates an authentication middleware with JWT validation
func Authenticate(validator *auth.JWTValidator, errs *pkgerrors.ErrorHandler, logger *zap.Logger) Authenticator {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing authorization header"))
				return
			}

			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid authorization header format"))
				return
			}

			claims, err := validator.ValidateToken(parts[1])
			if err != nil {
				logger.Debug("Token rejected", zap.Error(err))
				switch {
				case errors.Is(err, auth.ErrExpiredToken):
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Token has expired"))
				case errors.Is(err, auth.ErrInvalidSignature):
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid token signature"))
				default:
					errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Invalid token"))
				}
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AuthenticateGateway trusts the caller an upstream authorizer (API Gateway)
// already validated and forwarded in UserIDHeader. Only use it behind such an
// authorizer.
func AuthenticateGateway(errs *pkgerrors.ErrorHandler) Authenticator {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
			if userID == "" {
				errs.Handle(w, r, pkgerrors.NewUnauthorizedError("Missing user context from API Gateway"))
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: userID,
				Email:  r.Header.Get(UserEmailHeader),
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
