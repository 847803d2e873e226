package env

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/ast"
	exprbuiltin "github.com/expr-lang/expr/builtin"
	"github.com/expr-lang/expr/parser"

	"github.com/abdul-hamid-achik/apiscan/packages/builtin"
	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
)

// ResultsKey is the reserved identifier exposing executed requests.
const ResultsKey = "results"

// Results exposes the outcomes of already executed requests to expressions.
type Results interface {
	Has(name string) bool
	View() map[string]any
}

// Resolver holds what is shared by every evaluation in a run: builtin
// functions and the environment lookup.
type Resolver struct {
	funcs     *builtin.Registry
	lookupEnv func(string) (string, bool)
}

type ResolverOption func(*Resolver)

func WithFunctions(funcs *builtin.Registry) ResolverOption {
	return func(r *Resolver) {
		r.funcs = funcs
	}
}

func WithLookupEnv(lookup func(string) (string, bool)) ResolverOption {
	return func(r *Resolver) {
		r.lookupEnv = lookup
	}
}

func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(r)
	}
	if r.funcs == nil {
		r.funcs = builtin.NewRegistry(builtin.WithLookupEnv(r.lookupEnv))
	}
	return r
}

func (r *Resolver) Functions() *builtin.Registry {
	return r.funcs
}

// NewContext returns an evaluation context over vars and results. A context
// memoises resolved vars and is meant for a single request.
func (r *Resolver) NewContext(vars *scope.Values, results Results) *Context {
	return &Context{
		resolver:  r,
		vars:      vars,
		results:   results,
		extras:    make(map[string]any),
		memo:      make(map[string]any),
		resolving: make(map[string]bool),
	}
}

// Context evaluates templates for one request. It is not safe for concurrent use.
type Context struct {
	resolver  *Resolver
	vars      *scope.Values
	results   Results
	extras    map[string]any
	funcs     []expr.Option
	funcNames map[string]bool
	memo      map[string]any
	resolving map[string]bool
}

// Set exposes an extra identifier. Extras shadow vars of the same name.
func (c *Context) Set(name string, value any) {
	c.extras[name] = value
}

// AddFunction binds a function for this context only. It takes precedence
// over a builtin of the same name.
func (c *Context) AddFunction(name string, fn builtin.Func) {
	if c.funcNames == nil {
		c.funcNames = make(map[string]bool)
	}
	c.funcNames[name] = true
	c.funcs = append(c.funcs,
		expr.DisableBuiltin(name),
		expr.Function(name, func(params ...any) (any, error) { return fn(params...) }),
	)
}

// Resolve evaluates every placeholder in value. Mappings and sequences are
// resolved element by element keeping their shape and order; other scalars
// and strings without placeholders are returned unchanged.
func (c *Context) Resolve(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return c.ResolveString(v)
	case *scope.Values:
		if v == nil {
			return v, nil
		}
		out := scope.New()
		var err error
		v.Range(func(key string, item any) bool {
			var resolved any
			resolved, err = c.Resolve(item)
			if err != nil {
				return false
			}
			out.Set(key, resolved)
			return true
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := c.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			resolved, err := c.Resolve(item)
			if err != nil {
				return nil, err
			}
			out[k] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

// ResolveString evaluates the placeholders of s. When s is exactly one
// placeholder the raw value is returned, otherwise the values are formatted
// into the surrounding text.
func (c *Context) ResolveString(s string) (any, error) {
	segments, err := parseSegments(s)
	if err != nil {
		return nil, &ResolutionError{Expression: s, Err: err}
	}
	if !hasDynamic(segments) {
		return s, nil
	}
	if len(segments) == 1 {
		return c.evalSegment(segments[0])
	}

	var sb strings.Builder
	for _, seg := range segments {
		if seg.kind == segmentLiteral {
			sb.WriteString(seg.text)
			continue
		}
		v, err := c.evalSegment(seg)
		if err != nil {
			return nil, err
		}
		sb.WriteString(FormatValue(v))
	}
	return sb.String(), nil
}

func (c *Context) evalSegment(seg segment) (any, error) {
	if seg.kind == segmentEnv {
		v, ok := c.resolver.lookupEnv(seg.text)
		if !ok {
			return nil, &ResolutionError{Key: seg.text, Expression: "${" + seg.text + "}", Err: ErrEnvNotSet}
		}
		return v, nil
	}
	return c.Eval(seg.text)
}

// Eval evaluates a bare expression.
func (c *Context) Eval(expression string) (any, error) {
	tree, err := parser.Parse(expression)
	if err != nil {
		return nil, &ResolutionError{Expression: expression, Err: err}
	}

	refs := collectRefs(&tree.Node)

	for _, name := range refs.results {
		if c.results == nil || !c.results.Has(name) {
			return nil, &ResolutionError{Key: name, Expression: expression, Err: ErrNotExecuted}
		}
	}

	env := make(map[string]any, len(refs.idents)+len(c.extras)+1)
	for _, name := range refs.idents {
		if _, shadowed := c.extras[name]; shadowed || name == ResultsKey || !c.vars.Has(name) {
			continue
		}
		v, err := c.resolveVar(name)
		if err != nil {
			return nil, err
		}
		env[name] = scope.Plain(v)
	}
	for name, v := range c.extras {
		env[name] = v
	}
	if c.results != nil {
		env[ResultsKey] = c.results.View()
	} else {
		env[ResultsKey] = map[string]any{}
	}

	opts := append([]expr.Option{expr.Env(env)}, c.resolver.funcs.Options()...)
	opts = append(opts, c.funcs...)
	program, err := expr.Compile(expression, opts...)
	if err != nil {
		if name := c.firstUndefined(refs, env); name != "" {
			return nil, &ResolutionError{Key: name, Expression: expression, Err: ErrUndefined}
		}
		return nil, &ResolutionError{Expression: expression, Err: err}
	}

	out, err := expr.Run(program, env)
	if err != nil {
		return nil, &ResolutionError{Expression: expression, Err: err}
	}
	return out, nil
}

func (c *Context) resolveVar(name string) (any, error) {
	if v, ok := c.memo[name]; ok {
		return v, nil
	}
	if c.resolving[name] {
		return nil, &ResolutionError{Key: name, Err: ErrCycle}
	}

	raw, _ := c.vars.Get(name)
	c.resolving[name] = true
	v, err := c.Resolve(raw)
	delete(c.resolving, name)
	if err != nil {
		var resErr *ResolutionError
		if errors.As(err, &resErr) {
			return nil, err
		}
		return nil, &ResolutionError{Key: name, Err: err}
	}

	c.memo[name] = v
	return v, nil
}

func (c *Context) firstUndefined(refs exprRefs, env map[string]any) string {
	for _, name := range refs.idents {
		if _, ok := env[name]; ok {
			continue
		}
		if refs.declared[name] || c.funcNames[name] {
			continue
		}
		if _, ok := c.resolver.funcs.Lookup(name); ok {
			continue
		}
		if isExprBuiltin(name) {
			continue
		}
		return name
	}
	return ""
}

type exprRefs struct {
	idents   []string
	results  []string
	declared map[string]bool
}

type refCollector struct {
	refs exprRefs
	seen map[string]bool
}

func (v *refCollector) Visit(node *ast.Node) {
	switch n := (*node).(type) {
	case *ast.IdentifierNode:
		if !v.seen[n.Value] {
			v.seen[n.Value] = true
			v.refs.idents = append(v.refs.idents, n.Value)
		}
	case *ast.VariableDeclaratorNode:
		v.refs.declared[n.Name] = true
	case *ast.MemberNode:
		ident, ok := n.Node.(*ast.IdentifierNode)
		if !ok || ident.Value != ResultsKey {
			return
		}
		if prop, ok := n.Property.(*ast.StringNode); ok {
			v.refs.results = append(v.refs.results, prop.Value)
		}
	}
}

func collectRefs(node *ast.Node) exprRefs {
	c := &refCollector{
		refs: exprRefs{declared: make(map[string]bool)},
		seen: make(map[string]bool),
	}
	ast.Walk(node, c)
	return c.refs
}

func isExprBuiltin(name string) bool {
	_, ok := exprbuiltin.Index[name]
	return ok
}

// FormatValue renders a resolved value for interpolation into text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case *scope.Values, map[string]any, []any:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	default:
		return fmt.Sprint(val)
	}
}
