package middleware

import (
	"github.com/gin-gonic/gin"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/domain/directory"
)

// UserContext checks the token's actor against the users directory.
// Deactivated users are refused even while their token is still valid, and
// the directory's name and role replace the token's copies.
//
// Must run after Auth.
func UserContext(dir directory.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		actor := appctx.GetActor(ctx)
		if actor == nil {
			abortWith(c, apperror.NewUnauthorized("authentication required"))
			return
		}

		holder, err := dir.GetHolder(ctx, actor.ID)
		if err != nil {
			if apperror.IsNotFound(err) {
				abortWith(c, apperror.NewUnauthorized("unknown user"))
				return
			}
			abortWith(c, err)
			return
		}
		if !holder.Active {
			abortWith(c, apperror.NewForbidden("user is deactivated"))
			return
		}

		resolved := &appctx.Actor{ID: holder.ID, Name: holder.Name, Role: holder.Role}
		c.Request = c.Request.WithContext(appctx.WithActor(ctx, resolved))
		c.Next()
	}
}
