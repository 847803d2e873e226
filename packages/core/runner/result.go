package runner

import (
	"errors"
	"time"

	"github.com/abdul-hamid-achik/apiscan/packages/assertions"
	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

type RunResult struct {
	File     string
	Root     *EndpointResult
	Duration time.Duration
}

// EndpointResult mirrors an endpoint node of the spec tree.
type EndpointResult struct {
	Name     string
	Path     string
	Requests []*RequestResult
	Children []*EndpointResult
}

type RequestResult struct {
	Name         string
	Endpoint     string
	Method       string
	URL          string
	Headers      *scope.Values
	Params       *scope.Values
	Body         any
	Response     *http.Response
	TestsResults []assertions.Result
	NoFailure    bool
	Sent         bool
	Err          error
	Duration     time.Duration
}

func (r *RequestResult) IsResolutionError() bool {
	var resErr *env.ResolutionError
	return errors.As(r.Err, &resErr)
}

// IsTransportError reports whether the request was sent but no response
// was received.
func (r *RequestResult) IsTransportError() bool {
	return r.Sent && r.Err != nil && r.Response == nil
}

// Walk visits e and its descendants depth-first in declaration order.
func (e *EndpointResult) Walk(fn func(*EndpointResult)) {
	fn(e)
	for _, child := range e.Children {
		child.Walk(fn)
	}
}

// AllRequests returns every request result in execution order.
func (r *RunResult) AllRequests() []*RequestResult {
	var out []*RequestResult
	if r.Root == nil {
		return out
	}
	r.Root.Walk(func(e *EndpointResult) {
		out = append(out, e.Requests...)
	})
	return out
}

// NoFailure reports whether every request of the run passed.
func (r *RunResult) NoFailure() bool {
	for _, req := range r.AllRequests() {
		if !req.NoFailure {
			return false
		}
	}
	return true
}
