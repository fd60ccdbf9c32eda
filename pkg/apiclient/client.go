// Package apiclient sends authenticated requests to the university backend.
//
// A request that comes back 401 triggers one token refresh per client, requests failing in the
// meantime wait for that refresh and are replayed with the new token in the order they queued.
// Callers never see the intermediate 401, they get either the payload or an *errorsx.Error.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/moweilong/univadmin/pkg/credstore"
	"github.com/moweilong/univadmin/pkg/errorsx"
	"github.com/moweilong/univadmin/pkg/log"
)

// HeaderRequestID carries the client generated request id.
const HeaderRequestID = "X-Request-Id"

// outcome is the result of one attempt.
type outcome int

const (
	outcomeOK          outcome = iota // 2xx
	outcomeAuthExpired                // 401, may be recovered by a refresh
	outcomeFailed                     // terminal
)

type attempt struct {
	outcome outcome
	resp    *Response
	err     *errorsx.Error
	token   string // access token the attempt was sent with
}

// Client is safe for concurrent use. Each Client owns its refresh state.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	creds   *credstore.Credentials
	logger  log.Logger
	metrics *Metrics

	loginPath        string
	refreshPath      string
	userAgent        string
	onSessionExpired SessionExpiredHandler

	mu         sync.Mutex
	refreshing bool
	pending    []*waiter
	seq        uint64
	gen        uint64        // settled refreshes
	last       refreshResult // result of the last settled refresh
}

// New creates a client for the backend at baseURL.
func New(baseURL string, creds *credstore.Credentials, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, errors.New("apiclient: credentials are required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("apiclient: parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("apiclient: unsupported base url scheme %q", u.Scheme)
	}

	o := defaultOptions()
	o.apply(opts...)

	hc := o.httpClient
	if hc == nil {
		hc = &http.Client{}
	} else {
		cp := *hc
		hc = &cp
	}
	if o.timeout > 0 {
		hc.Timeout = o.timeout
	}

	return &Client{
		baseURL:          u,
		http:             hc,
		creds:            creds,
		logger:           o.logger,
		metrics:          o.metrics,
		loginPath:        o.loginPath,
		refreshPath:      o.refreshPath,
		userAgent:        o.userAgent,
		onSessionExpired: o.onSessionExpired,
	}, nil
}

// BaseURL returns the backend origin.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Credentials returns the credentials the client reads and writes.
func (c *Client) Credentials() *credstore.Credentials {
	return c.creds
}

// Do sends a request and returns the 2xx response. Every error is an *errorsx.Error.
//
// body may be nil, a []byte sent as is, an io.Reader read once, or any value encoded as JSON.
func (c *Client) Do(ctx context.Context, method, path string, body any, opts ...RequestOption) (*Response, error) {
	ro := newRequestOptions(opts...)
	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, errorsx.Normalize(err)
	}
	if ro.contentType != "" {
		contentType = ro.contentType
	}

	requestID := uuid.NewString()
	ctx = log.WithRequestID(ctx, requestID)

	for {
		a := c.send(ctx, method, path, payload, contentType, requestID, ro)
		switch a.outcome {
		case outcomeOK:
			return a.resp, nil
		case outcomeFailed:
			return nil, a.err
		}

		// outcomeAuthExpired
		if ro.retried {
			c.logger.W(ctx).Warnw("unauthorized after retry, giving up", "method", method, "path", path)
			return nil, a.err
		}
		token, err := c.renewToken(ctx, path, a)
		if err != nil {
			return nil, err
		}
		ro.retried = true
		ro.token = token
	}
}

// Get sends a GET request and decodes the JSON response into out when out is not nil.
func (c *Client) Get(ctx context.Context, path string, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, opts...)
}

// Post sends a POST request.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, opts...)
}

// Put sends a PUT request.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out, opts...)
}

// Patch sends a PATCH request.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPatch, path, body, out, opts...)
}

// Delete sends a DELETE request.
func (c *Client) Delete(ctx context.Context, path string, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, opts...)
}

// Download fetches a binary payload.
func (c *Client) Download(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil, append(opts, WithResponseType(ResponseTypeBinary))...)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	resp, err := c.Do(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if err := resp.Decode(out); err != nil {
		return errorsx.FromResponse(http.StatusInternalServerError, resp.Header, resp.Body,
			fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// send performs one attempt. It never refreshes.
func (c *Client) send(ctx context.Context, method, path string, payload []byte, contentType, requestID string,
	ro *requestOptions) attempt {
	token := ro.token
	if token == "" {
		var err error
		if token, err = c.creds.AccessToken(ctx); err != nil {
			return attempt{outcome: outcomeFailed, err: errorsx.FromTransport(fmt.Errorf("read access token: %w", err))}
		}
	}

	header := ro.header.Clone()
	header.Set(HeaderRequestID, requestID)
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}
	if ro.responseType == ResponseTypeJSON {
		header.Set("Accept", "application/json")
	} else if header.Get("Accept") == "" {
		header.Set("Accept", "*/*")
	}

	target, rerr := c.resolve(path, ro.query)
	if rerr != nil {
		return attempt{outcome: outcomeFailed, err: rerr}
	}
	resp, err := c.roundTrip(ctx, method, target, payload, contentType, header)
	a := attempt{token: token}
	switch {
	case err != nil:
		a.outcome, a.err = outcomeFailed, err
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		a.outcome, a.resp = outcomeOK, resp
	case resp.StatusCode == http.StatusUnauthorized:
		a.outcome, a.err = outcomeAuthExpired, errorsx.FromResponse(resp.StatusCode, resp.Header, resp.Body, nil)
	default:
		a.outcome, a.err = outcomeFailed, errorsx.FromResponse(resp.StatusCode, resp.Header, resp.Body, nil)
	}
	return a
}

// roundTrip sends the request and reads the whole body. Only transport failures are errors.
func (c *Client) roundTrip(ctx context.Context, method, target string, payload []byte, contentType string,
	header http.Header) (*Response, *errorsx.Error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errorsx.FromTransport(err)
	}
	req.Header = header
	req.Header.Set("User-Agent", c.userAgent)
	if payload != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observeRequest(method, 0, time.Since(start).Seconds())
		c.logger.W(ctx).Warnw("request failed", "method", method, "url", target, "err", err)
		return nil, errorsx.FromTransport(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	c.metrics.observeRequest(method, resp.StatusCode, elapsed.Seconds())
	if err != nil {
		return nil, errorsx.FromTransport(fmt.Errorf("read response body: %w", err))
	}

	c.logger.W(ctx).Debugw("request done", "method", method, "url", target,
		"status", resp.StatusCode, "size", len(data), "elapsed", elapsed)
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// resolve joins a backend relative path to the base url. Absolute urls, such as pagination
// links returned by the backend, are accepted only on the backend origin: the bearer token
// never leaves it.
func (c *Client) resolve(path string, query url.Values) (string, *errorsx.Error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", errorsx.New(http.StatusBadRequest, errorsx.ReasonValidation, "invalid request path %q", path).WithCause(err)
	}

	var target string
	if ref.IsAbs() || ref.Host != "" {
		if origin(ref, c.baseURL.Scheme) != origin(c.baseURL, c.baseURL.Scheme) {
			return "", errorsx.New(http.StatusBadRequest, errorsx.ReasonValidation,
				"refusing to send a request outside of %s", c.BaseURL())
		}
		if ref.Scheme == "" {
			ref.Scheme = c.baseURL.Scheme
		}
		target = ref.String()
	} else {
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		target = c.baseURL.String() + path
	}
	if len(query) == 0 {
		return target, nil
	}

	u, err := url.Parse(target)
	if err != nil {
		return target, nil
	}
	q := u.Query()
	for k, vs := range query {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// origin returns scheme://host:port with the default port filled in.
func origin(u *url.URL, defaultScheme string) string {
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = defaultScheme
	}
	port := u.Port()
	if port == "" {
		switch scheme {
		case "http":
			port = "80"
		case "https":
			port = "443"
		}
	}
	return scheme + "://" + strings.ToLower(u.Hostname()) + ":" + port
}

func encodeBody(body any) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain; charset=utf-8", nil
	case io.Reader:
		// read once so the body can be replayed after a refresh
		data, err := io.ReadAll(v)
		if err != nil {
			return nil, "", fmt.Errorf("read request body: %w", err)
		}
		return data, "application/octet-stream", nil
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("encode request body: %w", err)
		}
		return data, "application/json", nil
	}
}
