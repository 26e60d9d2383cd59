package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	appctx "voltstock/internal/core/context"
	"voltstock/internal/core/id"
	"voltstock/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

// gin context keys.
const (
	ctxRequestID = "request_id"
	ctxTraceID   = "trace_id"
)

// Trace attaches request and trace ids to the request context.
// An active OpenTelemetry span wins over the X-Trace-ID header.
func Trace(base *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = id.NewString()
		}

		traceID := c.GetHeader(HeaderTraceID)
		spanID := ""
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.IsValid() {
			traceID = sc.TraceID().String()
			spanID = sc.SpanID().String()
		}
		if traceID == "" {
			traceID = id.NewString()
		}

		tc := &appctx.TraceContext{TraceID: traceID, SpanID: spanID, RequestID: requestID}
		ctx := appctx.WithTrace(c.Request.Context(), tc)
		ctx = logger.WithLogger(ctx, base)
		c.Request = c.Request.WithContext(ctx)

		c.Set(ctxTraceID, traceID)
		c.Set(ctxRequestID, requestID)

		c.Header(HeaderRequestID, requestID)
		c.Header(HeaderTraceID, traceID)

		c.Next()
	}
}
