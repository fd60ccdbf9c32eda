package middleware

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	// Print body max length
	defaultMaxLength = 300

	contentMark = []byte(" ...... ")
)

// Option set the gin logger options.
type Option func(*options)

type options struct {
	maxLength    int
	log          *zap.Logger
	ignoreRoutes map[string]struct{} // not logged at all
	hideBody     map[string]struct{} // logged without the request body, e.g. credentials
	errorCodes   map[int]bool        // logged at error level
}

func defaultOptions() *options {
	return &options{
		maxLength:    defaultMaxLength,
		log:          zap.NewNop(),
		ignoreRoutes: map[string]struct{}{"/health": {}},
		hideBody:     map[string]struct{}{},
		errorCodes: map[int]bool{
			http.StatusInternalServerError: true,
			http.StatusBadGateway:          true,
			http.StatusServiceUnavailable:  true,
		},
	}
}

func (o *options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithMaxLen logger content max length
func WithMaxLen(maxLen int) Option {
	return func(o *options) {
		if maxLen < len(contentMark) {
			maxLen = len(contentMark)
		}
		o.maxLength = maxLen
	}
}

// WithLog set log
func WithLog(log *zap.Logger) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

// WithIgnoreRoutes no logger content routes
func WithIgnoreRoutes(routes ...string) Option {
	return func(o *options) {
		for _, route := range routes {
			o.ignoreRoutes[route] = struct{}{}
		}
	}
}

// WithHideBodyRoutes log these routes without their request body
func WithHideBodyRoutes(routes ...string) Option {
	return func(o *options) {
		for _, route := range routes {
			o.hideBody[route] = struct{}{}
		}
	}
}

// ------------------------------------------------------------------------------------------

type bodyLogWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyLogWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func truncate(b []byte, maxLen int) []byte {
	if len(b) <= maxLen {
		return b
	}
	out := make([]byte, 0, maxLen)
	out = append(out, b[:maxLen-len(contentMark)]...)
	return append(out, contentMark...)
}

// Logging print request and response info
func Logging(opts ...Option) gin.HandlerFunc {
	o := defaultOptions()
	o.apply(opts...)

	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		// ignore printing of the specified route
		if _, ok := o.ignoreRoutes[path]; ok {
			c.Next()
			return
		}

		buf := bytes.Buffer{}
		if c.Request.Body != nil {
			_, _ = buf.ReadFrom(c.Request.Body)
			c.Request.Body = io.NopCloser(&buf)
		}
		bodyField := zap.Skip()
		if _, hide := o.hideBody[path]; !hide && buf.Len() > 0 {
			bodyField = zap.ByteString("body", truncate(buf.Bytes(), o.maxLength))
		}
		reqIDField := zap.Skip()
		if reqID := c.Request.Header.Get(HeaderXRequestIDKey); reqID != "" {
			reqIDField = zap.String(ContextRequestIDKey, reqID)
		}

		o.log.Info("<<<<",
			zap.String("method", c.Request.Method),
			zap.String("url", c.Request.URL.String()),
			zap.Int("size", buf.Len()),
			bodyField,
			reqIDField,
		)

		newWriter := &bodyLogWriter{body: &bytes.Buffer{}, ResponseWriter: c.Writer}
		c.Writer = newWriter

		c.Next()

		httpCode := c.Writer.Status()
		fields := []zap.Field{
			zap.Int("code", httpCode),
			zap.String("method", c.Request.Method),
			zap.String("url", path),
			zap.Int64("time_us", time.Since(start).Microseconds()),
			zap.Int("size", newWriter.body.Len()),
			zap.ByteString("body", truncate(newWriter.body.Bytes(), o.maxLength)),
			reqIDField,
		}
		if o.errorCodes[httpCode] {
			o.log.Error(">>>>", fields...)
		} else {
			o.log.Info(">>>>", fields...)
		}
	}
}
