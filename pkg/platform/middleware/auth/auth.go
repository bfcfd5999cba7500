package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"renewals/pkg/domain"
	request "renewals/pkg/platform/middleware/request"
	"renewals/pkg/requestcontext"
)

// JWTValidator defines the interface for validating JWT tokens
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims represents the claims we expect from the JWT validator
type JWTClaims struct {
	EmployeeID string
	Role       string
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth validates the bearer token and stores the caller as a domain.Actor.
// Tokens whose employee id or role do not parse are rejected.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
				return
			}

			empID, err := domain.ParseEmployeeID(claims.EmployeeID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - bad subject",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token subject")
				return
			}
			role, err := domain.ParseRole(claims.Role)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - unknown role",
					"role", claims.Role,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid token role")
				return
			}

			ctx = requestcontext.WithActor(ctx, domain.Actor{ID: empID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
