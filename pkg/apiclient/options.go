package apiclient

import (
	"context"
	"net/http"
	"time"

	"github.com/moweilong/univadmin/pkg/errorsx"
	"github.com/moweilong/univadmin/pkg/log"
)

const (
	defaultTimeout     = 30 * time.Second
	defaultLoginPath   = "/auth/login/"
	defaultRefreshPath = "/auth/token/refresh/"
	defaultUserAgent   = "univadmin"
)

// SessionExpiredHandler is called once per session-ending failure, after the credentials were
// cleared. It is the place to send the user back to the login entry point.
type SessionExpiredHandler func(ctx context.Context, err *errorsx.Error)

// Option set the client options.
type Option func(*options)

type options struct {
	httpClient       *http.Client
	timeout          time.Duration
	logger           log.Logger
	loginPath        string
	refreshPath      string
	userAgent        string
	onSessionExpired SessionExpiredHandler
	metrics          *Metrics
}

func defaultOptions() *options {
	return &options{
		timeout:     defaultTimeout,
		logger:      log.NewNop(),
		loginPath:   defaultLoginPath,
		refreshPath: defaultRefreshPath,
		userAgent:   defaultUserAgent,
	}
}

func (o *options) apply(opts ...Option) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithHTTPClient set the http client, its Timeout is overwritten by WithTimeout when both are given.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithTimeout set the per attempt timeout, a timed out attempt fails like any transport error.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithLogger set logger
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLoginPath set the login endpoint, default "/auth/login/".
func WithLoginPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.loginPath = path
		}
	}
}

// WithRefreshPath set the refresh endpoint, default "/auth/token/refresh/".
func WithRefreshPath(path string) Option {
	return func(o *options) {
		if path != "" {
			o.refreshPath = path
		}
	}
}

// WithUserAgent set the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

// WithSessionExpiredHandler set the callback fired when the session ends.
func WithSessionExpiredHandler(fn SessionExpiredHandler) Option {
	return func(o *options) {
		o.onSessionExpired = fn
	}
}

// WithMetrics set prometheus collectors, see NewMetrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}
