package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
)

// TokenValidator turns a bearer token into an actor.
type TokenValidator interface {
	ValidateToken(tokenString string) (*appctx.Actor, error)
}

// Auth requires a valid bearer token and puts its actor into the request context.
func Auth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			abortWith(c, apperror.NewUnauthorized("missing authorization header"))
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			abortWith(c, apperror.NewUnauthorized("invalid authorization header format"))
			return
		}

		actor, err := validator.ValidateToken(strings.TrimSpace(token))
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				abortWith(c, appErr)
				return
			}
			abortWith(c, apperror.NewUnauthorized("invalid token"))
			return
		}

		c.Request = c.Request.WithContext(appctx.WithActor(c.Request.Context(), actor))
		c.Next()
	}
}
