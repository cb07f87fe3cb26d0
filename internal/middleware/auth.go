package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/quocanhngo/tradetalk/internal/model"
	"github.com/quocanhngo/tradetalk/pkg/apperror"
	"github.com/quocanhngo/tradetalk/pkg/auth"
)

// Context keys set by AuthMiddleware
const (
	ContextUserID = "user_id"
	ContextName   = "name"
	ContextRole   = "role"
	ContextToken  = "token"
)

// AuthMiddleware validates JWT tokens and injects user claims into context
func AuthMiddleware(authenticator *auth.Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, apperror.CodeUnauthenticated, "Authorization header required")
			return
		}

		tokenString, ok := auth.BearerToken(authHeader)
		if !ok {
			abort(c, http.StatusUnauthorized, apperror.CodeUnauthenticated, "Invalid authorization format. Use: Bearer <token>")
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), tokenString)
		if err != nil {
			if apperror.CodeOf(err) == apperror.CodeInternal {
				abort(c, http.StatusInternalServerError, apperror.CodeInternal, "Auth server error")
				return
			}
			abort(c, http.StatusUnauthorized, apperror.CodeUnauthenticated, apperror.Message(err))
			return
		}

		// Store user info in context for downstream handlers
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextName, claims.Name)
		c.Set(ContextRole, model.UserRole(claims.Role))
		c.Set(ContextToken, tokenString)

		c.Next()
	}
}

// RequireRole lets only users with one of the given roles through
func RequireRole(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := c.Get(ContextRole)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, apperror.CodeForbidden, "insufficient role")
	}
}

func abort(c *gin.Context, status int, code apperror.Code, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{
		Error:   http.StatusText(status),
		Code:    string(code),
		Message: message,
	})
}
