package http

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
)

type Request struct {
	Method      string
	URL         string
	Headers     map[string]string
	QueryParams url.Values
	Body        []byte
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		URL:         requestURL,
		Headers:     make(map[string]string),
		QueryParams: make(url.Values),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// HasHeader reports whether key is set, ignoring case.
func (r *Request) HasHeader(key string) bool {
	for k := range r.Headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// SetJSONBody encodes v as the request body and sets a JSON content type
// unless one was given explicitly.
func (r *Request) SetJSONBody(v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	r.Body = bytes.TrimRight(buf.Bytes(), "\n")
	if !r.HasHeader("Content-Type") {
		r.SetHeader("Content-Type", "application/json")
	}
	return nil
}

// AddQueryParam appends a value, so repeated keys are sent as a list.
func (r *Request) AddQueryParam(key, value string) *Request {
	r.QueryParams.Add(key, value)
	return r
}

// BuildURL returns the URL with the query params merged into any query
// already present in it.
func (r *Request) BuildURL() string {
	if len(r.QueryParams) == 0 {
		return r.URL
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return r.URL
	}

	q := u.Query()
	for k, values := range r.QueryParams {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
