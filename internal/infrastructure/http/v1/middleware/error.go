package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"voltstock/internal/core/apperror"
	"voltstock/internal/infrastructure/http/v1/dto"
	"voltstock/pkg/logger"
)

// ErrorHandler renders the last gin error as {code, message, details}.
// Internal causes are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		ctx := c.Request.Context()

		appErr, ok := apperror.AsAppError(err)
		switch {
		case !ok:
			logger.Error(ctx, "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		case appErr.Err != nil:
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}

		body := dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		if status == http.StatusInternalServerError {
			if body.Details == nil {
				body.Details = map[string]any{}
			}
			body.Details["request_id"] = c.GetString(ctxRequestID)
		}

		failIdempotency(c, status, body)
		c.JSON(status, body)
	}
}
