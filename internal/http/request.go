package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one call against the target API.
type Request struct {
	Method      string
	Path        string
	Name        string
	QueryParams url.Values
	Headers     map[string]string
	Body        interface{}
}

// NewRequest creates a new HTTP request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:      method,
		Path:        path,
		QueryParams: make(url.Values),
		Headers:     make(map[string]string),
	}
}

// Get, Post, Put, Patch and Delete are shorthands for NewRequest.
func Get(path string) *Request    { return NewRequest(http.MethodGet, path) }
func Post(path string) *Request   { return NewRequest(http.MethodPost, path) }
func Put(path string) *Request    { return NewRequest(http.MethodPut, path) }
func Patch(path string) *Request  { return NewRequest(http.MethodPatch, path) }
func Delete(path string) *Request { return NewRequest(http.MethodDelete, path) }

// Named tags the request for per-endpoint observability. Paths with ids
// should be named so records group by endpoint rather than by entity.
func (r *Request) Named(name string) *Request {
	r.Name = name
	return r
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithBearer sets the Authorization header. An empty token is ignored.
func (r *Request) WithBearer(token string) *Request {
	if token != "" {
		r.Headers["Authorization"] = "Bearer " + token
	}
	return r
}

// WithQueryParam adds a query parameter to the request
func (r *Request) WithQueryParam(key, value string) *Request {
	r.QueryParams.Add(key, value)
	return r
}

// WithBody sets the body of the request; non-byte values are sent as JSON.
func (r *Request) WithBody(body interface{}) *Request {
	r.Body = body
	return r
}

func (r *Request) metricName() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Method + " " + r.Path
}

// Build constructs an http.Request against baseURL.
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, error) {
	reqURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	path, rawQuery, _ := strings.Cut(r.Path, "?")
	if reqURL.Path == "" {
		reqURL.Path = path
	} else {
		reqURL.Path = strings.TrimRight(reqURL.Path, "/") + "/" + strings.TrimLeft(path, "/")
	}

	query, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, err
	}
	for key, values := range r.QueryParams {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	reqURL.RawQuery = query.Encode()

	var bodyReader io.Reader
	if r.Body != nil {
		switch body := r.Body.(type) {
		case string:
			bodyReader = strings.NewReader(body)
		case []byte:
			bodyReader = bytes.NewReader(body)
		case io.Reader:
			bodyReader = body
		default:
			encoded, err := json.Marshal(body)
			if err != nil {
				return nil, err
			}
			bodyReader = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
