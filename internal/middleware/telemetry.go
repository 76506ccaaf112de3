package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingMiddleware returns a middleware that traces HTTP requests using OpenTelemetry
// It wraps the official otelgin middleware and adds engagement span attributes
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	base := otelgin.Middleware(serviceName)

	return func(c *gin.Context) {
		base(c)

		span := trace.SpanFromContext(c.Request.Context())
		if !span.IsRecording() {
			return
		}

		if userID, exists := c.Get("user_id"); exists {
			if id, ok := userID.(int64); ok {
				span.SetAttributes(attribute.Int64("user.id", id))
			}
		}
		if targetType := c.Query("type"); targetType != "" {
			span.SetAttributes(attribute.String("engagement.target_type", targetType))
		}
		if recorded, exists := c.Get("view_recorded"); exists {
			if b, ok := recorded.(bool); ok {
				span.SetAttributes(attribute.Bool("engagement.view_recorded", b))
			}
		}

		for _, ginErr := range c.Errors {
			if ginErr.Err != nil {
				span.RecordError(ginErr.Err, trace.WithStackTrace(true))
				span.SetStatus(codes.Error, ginErr.Error())
			}
		}
	}
}
