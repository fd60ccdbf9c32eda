package apiclient

import (
	"net/http"
	"net/url"
	"strings"

	json "github.com/bytedance/sonic"
)

// ResponseType tells the client how the caller intends to read the body.
type ResponseType int

const (
	// ResponseTypeJSON is the default, the body is JSON.
	ResponseTypeJSON ResponseType = iota
	// ResponseTypeBinary is used for downloads, the body is returned as is.
	ResponseTypeBinary
)

// RequestOption set per request options.
type RequestOption func(*requestOptions)

type requestOptions struct {
	query        url.Values
	header       http.Header
	responseType ResponseType
	contentType  string
	retried      bool

	// token replaces the stored access token, set on replay after a refresh.
	token string
}

func newRequestOptions(opts ...RequestOption) *requestOptions {
	o := &requestOptions{header: make(http.Header)}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithQuery set query parameters, merged into those already present in path.
func WithQuery(q url.Values) RequestOption {
	return func(o *requestOptions) {
		o.query = q
	}
}

// WithHeader add a request header.
func WithHeader(key, value string) RequestOption {
	return func(o *requestOptions) {
		o.header.Add(key, value)
	}
}

// WithResponseType set the expected response type.
func WithResponseType(t ResponseType) RequestOption {
	return func(o *requestOptions) {
		o.responseType = t
	}
}

// WithContentType overrides the Content-Type of a raw []byte body.
func WithContentType(ct string) RequestOption {
	return func(o *requestOptions) {
		o.contentType = ct
	}
}

// WithRetried marks the call as already retried once, a 401 then fails without a refresh.
func WithRetried() RequestOption {
	return func(o *requestOptions) {
		o.retried = true
	}
}

// Response is a successful (2xx) response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals a JSON body into v, an empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if v == nil || len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Filename returns the file name announced by Content-Disposition, "" when absent.
func (r *Response) Filename() string {
	cd := r.Header.Get("Content-Disposition")
	for _, part := range strings.Split(cd, ";") {
		part = strings.TrimSpace(part)
		if name, ok := strings.CutPrefix(part, "filename="); ok {
			return strings.Trim(name, `"`)
		}
	}
	return ""
}
