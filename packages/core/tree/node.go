package tree

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
)

const DefaultMethod = "GET"

// ValidMethods lists the HTTP methods a request may declare.
var ValidMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"}

// Test is a named boolean assertion expression.
type Test struct {
	Name   string
	Assert string
}

// EndpointNode groups requests and child endpoints under a shared path prefix
// and shared headers, params and vars.
type EndpointNode struct {
	Name     string
	Path     string
	Headers  *scope.Values
	Params   *scope.Values
	Vars     *scope.Values
	Delay    time.Duration
	Requests []*RequestNode
	Children []*EndpointNode
	Parent   *EndpointNode

	hasDelay bool
}

// RequestNode is a single HTTP call declaration. All string values are raw
// templates until the runner resolves them.
type RequestNode struct {
	Name     string
	Method   string
	Path     string
	Headers  *scope.Values
	Params   *scope.Values
	Body     any
	Delay    time.Duration
	HasDelay bool
	Tests    []Test
	Endpoint *EndpointNode
}

func (e *EndpointNode) IsRoot() bool {
	return e.Parent == nil
}

// Ancestry returns the chain of endpoints from the root down to e.
func (e *EndpointNode) Ancestry() []*EndpointNode {
	var chain []*EndpointNode
	for n := e; n != nil; n = n.Parent {
		chain = append(chain, n)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

func (e *EndpointNode) EffectiveHeaders() *scope.Values {
	return e.effective(func(n *EndpointNode) *scope.Values { return n.Headers })
}

func (e *EndpointNode) EffectiveParams() *scope.Values {
	return e.effective(func(n *EndpointNode) *scope.Values { return n.Params })
}

func (e *EndpointNode) EffectiveVars() *scope.Values {
	return e.effective(func(n *EndpointNode) *scope.Values { return n.Vars })
}

func (e *EndpointNode) effective(field func(*EndpointNode) *scope.Values) *scope.Values {
	chain := e.Ancestry()
	layers := make([]*scope.Values, len(chain))
	for i, n := range chain {
		layers[i] = field(n)
	}
	return scope.MergeAll(layers...)
}

// PathSegments returns the raw path of every endpoint from the root to e.
func (e *EndpointNode) PathSegments() []string {
	chain := e.Ancestry()
	segments := make([]string, 0, len(chain))
	for _, n := range chain {
		segments = append(segments, n.Path)
	}
	return segments
}

// EffectiveDelay returns the closest declared delay walking up the ancestry.
func (e *EndpointNode) EffectiveDelay() time.Duration {
	for n := e; n != nil; n = n.Parent {
		if n.hasDelay {
			return n.Delay
		}
	}
	return 0
}

// QualifiedName joins the endpoint names from the root with "::".
func (e *EndpointNode) QualifiedName() string {
	chain := e.Ancestry()
	names := make([]string, len(chain))
	for i, n := range chain {
		names[i] = n.Name
	}
	return strings.Join(names, "::")
}

// CountRequests returns the number of requests in the subtree rooted at e.
func (e *EndpointNode) CountRequests() int {
	total := len(e.Requests)
	for _, child := range e.Children {
		total += child.CountRequests()
	}
	return total
}

// Walk visits e and its descendants depth-first in declaration order.
func (e *EndpointNode) Walk(fn func(*EndpointNode) error) error {
	if err := fn(e); err != nil {
		return err
	}
	for _, child := range e.Children {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *RequestNode) EffectiveHeaders() *scope.Values {
	return scope.Merge(r.Endpoint.EffectiveHeaders(), r.Headers)
}

func (r *RequestNode) EffectiveParams() *scope.Values {
	return scope.Merge(r.Endpoint.EffectiveParams(), r.Params)
}

func (r *RequestNode) EffectiveVars() *scope.Values {
	return r.Endpoint.EffectiveVars()
}

// PathSegments returns the endpoint path segments followed by the request path.
func (r *RequestNode) PathSegments() []string {
	return append(r.Endpoint.PathSegments(), r.Path)
}

func (r *RequestNode) EffectiveDelay() time.Duration {
	if r.HasDelay {
		return r.Delay
	}
	return r.Endpoint.EffectiveDelay()
}

func (r *RequestNode) QualifiedName() string {
	return r.Endpoint.QualifiedName() + "::" + r.Name
}

// JoinURL concatenates path segments with exactly one slash between them.
// Empty segments are skipped; the outer ends of the result are kept as given.
func JoinURL(segments ...string) string {
	var out string
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if out == "" {
			out = seg
			continue
		}
		out = strings.TrimRight(out, "/") + "/" + strings.TrimLeft(seg, "/")
	}
	return out
}
