// Package middleware holds the gin middlewares of the development backend.
package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// ContextRequestIDKey request id key in gin context
	ContextRequestIDKey = "request_id"
	// HeaderXRequestIDKey request id header, set by the API client on every request
	HeaderXRequestIDKey = "X-Request-Id"
)

// RequestID keeps the request id sent by the client, or generates one, and echoes it back.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.Request.Header.Get(HeaderXRequestIDKey)
		if requestID == "" {
			requestID = uuid.NewString()
			c.Request.Header.Set(HeaderXRequestIDKey, requestID)
		}
		c.Set(ContextRequestIDKey, requestID)
		c.Writer.Header().Set(HeaderXRequestIDKey, requestID)
		c.Next()
	}
}

// GCtxRequestID get request id from gin context
func GCtxRequestID(c *gin.Context) string {
	if v, isExist := c.Get(ContextRequestIDKey); isExist {
		if requestID, ok := v.(string); ok {
			return requestID
		}
	}
	return ""
}

// GCtxRequestIDField get request id field from gin context
func GCtxRequestIDField(c *gin.Context) zap.Field {
	return zap.String(ContextRequestIDKey, GCtxRequestID(c))
}
