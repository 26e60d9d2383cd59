package middleware

import (
	"github.com/gin-gonic/gin"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/security"
)

// RequireRole rejects actors whose role is not listed.
func RequireRole(roles ...appctx.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		if actor == nil {
			abortWith(c, apperror.NewUnauthorized("authentication required"))
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		abortWith(c, apperror.NewForbidden("insufficient permissions").
			WithDetail("required_roles", roles))
	}
}

// Authorize evaluates a policy rule that needs no resource attributes.
// Rules that inspect the resource are evaluated by the domain services.
func Authorize(policy security.Authorizer, action security.Action) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := appctx.GetActor(c.Request.Context())
		if actor == nil {
			abortWith(c, apperror.NewUnauthorized("authentication required"))
			return
		}
		if err := policy.Authorize(c.Request.Context(), action, *actor, nil); err != nil {
			abortWith(c, err)
			return
		}
		c.Next()
	}
}
