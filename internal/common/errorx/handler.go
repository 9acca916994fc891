package errorx

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mapper translates errors of a package outside errorx. It returns nil for
// errors it does not recognise.
type Mapper func(err error) *APIError

// ErrorHandler provides unified error handling capabilities
type ErrorHandler struct {
	logger  *zap.Logger
	mappers []Mapper
}

// NewErrorHandler creates a new error handler. Mappers are consulted in
// order before the generic fallback.
func NewErrorHandler(logger *zap.Logger, mappers ...Mapper) *ErrorHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ErrorHandler{
		logger:  logger,
		mappers: mappers,
	}
}

// HandleError converts any error to APIError and writes the JSON response
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := ConvertToAPIError(err, h.mappers...).clone()
	apiErr.TraceID = ExtractTraceID(c)
	apiErr.Timestamp = time.Now().UTC().Format(time.RFC3339)

	h.logError(c, apiErr, err)

	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{
		"error": apiErr,
	})
}

// ConvertToAPIError returns err as an APIError: itself when it already is
// one, else the first mapper's answer, else ErrInternalServer
func ConvertToAPIError(err error, mappers ...Mapper) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range mappers {
		if mapped := m(err); mapped != nil {
			return mapped
		}
	}
	return ErrInternalServer
}

// logError logs the error with request context, and a stack for critical errors
func (h *ErrorHandler) logError(c *gin.Context, apiErr *APIError, originalErr error) {
	fields := []zap.Field{
		zap.String("trace_id", apiErr.TraceID),
		zap.String("error_code", apiErr.Code),
		zap.String("category", string(apiErr.Category)),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
		zap.Error(originalErr),
	}

	switch apiErr.Severity {
	case SeverityInfo:
		h.logger.Info(apiErr.Message, fields...)
	case SeverityWarning:
		h.logger.Warn(apiErr.Message, fields...)
	case SeverityCritical:
		buf := make([]byte, 1024*4)
		n := runtime.Stack(buf, false)
		h.logger.Error(apiErr.Message, append(fields, zap.String("stack_trace", string(buf[:n])))...)
	default:
		h.logger.Error(apiErr.Message, fields...)
	}
}

// ErrorMiddleware returns a gin middleware rendering the last error attached to the context
func (h *ErrorHandler) ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			h.HandleError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware returns a gin middleware for panic recovery
func (h *ErrorHandler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.HandleError(c, ErrInternalServer.WithDetail("panic", recovered))
	})
}

// ExtractTraceID returns the request trace id, generating one when absent
func ExtractTraceID(c *gin.Context) string {
	if traceID := c.GetString("trace_id"); traceID != "" {
		return traceID
	}
	if traceID := c.GetHeader("X-Trace-Id"); traceID != "" {
		return traceID
	}
	traceID := uuid.New().String()
	c.Set("trace_id", traceID)
	return traceID
}

// Abort attaches err to the context for ErrorMiddleware
func Abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

// StatusOf returns the HTTP status err maps to
func StatusOf(err error, mappers ...Mapper) int {
	if err == nil {
		return http.StatusOK
	}
	return ConvertToAPIError(err, mappers...).HTTPStatus
}
