package http

import (
	"encoding/json"
	"strings"
	"time"
)

type Response struct {
	StatusCode int
	Status     string
	Headers    map[string]string
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

func (r *Response) BodyJSON() (any, error) {
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

// IsJSON reports whether the content type names a JSON media type.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "json")
}

func (r *Response) IsXML() bool {
	return strings.Contains(r.ContentType(), "xml")
}

// ElapsedMs returns the duration in fractional milliseconds.
func (r *Response) ElapsedMs() float64 {
	return float64(r.Duration) / float64(time.Millisecond)
}
