package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"voltstock/internal/core/apperror"
	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/idempotency"
	"voltstock/pkg/logger"
)

const (
	HeaderIdempotencyKey       = "Idempotency-Key"
	HeaderLegacyIdempotencyKey = "X-Idempotency-Key"
	HeaderIdempotentReplay     = "Idempotent-Replayed"

	maxIdempotencyBodyBytes = 1 << 20
	maxIdempotencyKeyLength = 255
)

const (
	ctxIdempotencyScope = "idempotency_scope"
	ctxIdempotencyStore = "idempotency_store"
)

// Idempotency replays the stored response of a mutating request that is
// retried with the same key. It must run after Auth: keys are scoped to the actor.
func Idempotency(store idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		default:
			c.Next()
			return
		}

		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			key = c.GetHeader(HeaderLegacyIdempotencyKey)
		}
		if key == "" {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			abortWith(c, apperror.NewValidation("idempotency key too long").
				WithDetail("max_length", maxIdempotencyKeyLength))
			return
		}

		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIdempotencyBodyBytes+1))
		if err != nil {
			abortWith(c, apperror.NewValidation("cannot read request body"))
			return
		}
		if len(body) > maxIdempotencyBodyBytes {
			appErr := apperror.NewValidation("request body too large for idempotency")
			appErr.HTTPStatus = http.StatusRequestEntityTooLarge
			abortWith(c, appErr.WithDetail("max_bytes", maxIdempotencyBodyBytes))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		sum := sha256.Sum256(body)

		scope := idempotency.Scope{
			ActorID:   appctx.GetActorID(c.Request.Context()),
			Operation: c.Request.Method + " " + c.Request.URL.Path,
			Key:       key,
		}
		replay, err := store.AcquireKey(c.Request.Context(), scope, hex.EncodeToString(sum[:]))
		if err != nil {
			if appErr, ok := apperror.AsAppError(err); ok {
				abortWith(c, appErr)
				return
			}
			abortWith(c, apperror.NewInternal(err).WithDetail("component", "idempotency"))
			return
		}

		if replay != nil {
			c.Header(HeaderIdempotentReplay, "true")
			if replay.StatusCode == http.StatusNoContent {
				c.AbortWithStatus(http.StatusNoContent)
				return
			}
			c.Data(replay.StatusCode, replay.ContentType, replay.Body)
			c.Abort()
			return
		}

		c.Set(ctxIdempotencyScope, scope)
		c.Set(ctxIdempotencyStore, store)
		c.Next()
	}
}

// CompleteIdempotency stores a successful response for the key of this request, if any.
func CompleteIdempotency(c *gin.Context, statusCode int, contentType string, response any) {
	scope, store, ok := idempotencyOf(c)
	if !ok {
		return
	}
	if err := store.CompleteKey(c.Request.Context(), scope, statusCode, contentType, response); err != nil {
		logger.Warn(c.Request.Context(), "complete idempotency key", "key", scope.Key, "error", err)
	}
}

// failIdempotency stores a client error for replay. Server errors release
// the key instead so that a retry runs the operation again.
func failIdempotency(c *gin.Context, statusCode int, response any) {
	scope, store, ok := idempotencyOf(c)
	if !ok {
		return
	}
	var err error
	if statusCode >= http.StatusInternalServerError {
		err = store.ReleaseKey(c.Request.Context(), scope)
	} else {
		err = store.FailKey(c.Request.Context(), scope, statusCode, "application/json", response)
	}
	if err != nil {
		logger.Warn(c.Request.Context(), "finish idempotency key", "key", scope.Key, "error", err)
	}
}

func idempotencyOf(c *gin.Context) (idempotency.Scope, idempotency.Store, bool) {
	v, exists := c.Get(ctxIdempotencyScope)
	if !exists {
		return idempotency.Scope{}, nil, false
	}
	scope, _ := v.(idempotency.Scope)
	v, _ = c.Get(ctxIdempotencyStore)
	store, ok := v.(idempotency.Store)
	return scope, store, ok && store != nil
}

func abortWith(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
