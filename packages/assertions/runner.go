package assertions

import (
	"context"
	"fmt"
	"strings"

	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/results"
	"github.com/abdul-hamid-achik/apiscan/packages/core/tree"
	"github.com/abdul-hamid-achik/apiscan/packages/db"
	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

type Status string

const (
	StatusPassed Status = "passed"
	StatusFailed Status = "failed"
)

type Result struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	Failure    string `json:"failure,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func (r Result) Passed() bool {
	return r.Status == StatusPassed
}

// Querier runs the queries behind sql(). *db.Client satisfies it.
type Querier interface {
	Query(ctx context.Context, query string, args ...any) (*db.QueryResult, error)
}

type Runner struct {
	baseDir string
	db      Querier
}

type Option func(*Runner)

// WithBaseDir sets the directory schema files are resolved against.
func WithBaseDir(dir string) Option {
	return func(r *Runner) {
		r.baseDir = dir
	}
}

func WithDatabase(q Querier) Option {
	return func(r *Runner) {
		r.db = q
	}
}

func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run evaluates tests in declaration order. resp is nil when the request
// failed at the transport level; respErr then describes the failure.
func (r *Runner) Run(ctx context.Context, tests []tree.Test, resp *http.Response, respErr error, evalCtx *env.Context) []Result {
	out := make([]Result, 0, len(tests))
	if len(tests) == 0 {
		return out
	}

	e := newEvaluator(ctx, resp, r.baseDir, r.db)
	e.bind(evalCtx, respErr)

	for _, test := range tests {
		out = append(out, e.evaluate(evalCtx, test))
	}
	return out
}

// NoFailure reports whether every result passed. It is true for no results.
func NoFailure(results []Result) bool {
	for _, res := range results {
		if !res.Passed() {
			return false
		}
	}
	return true
}

func (e *evaluator) bind(evalCtx *env.Context, respErr error) {
	view := results.ResponseView(e.response, respErr)
	for k, v := range view {
		evalCtx.Set(k, v)
	}
	evalCtx.Set("response", view)

	evalCtx.AddFunction("json", e.json)
	evalCtx.AddFunction("jsonpath", e.jsonPath)
	evalCtx.AddFunction("xpath", e.xpath)
	evalCtx.AddFunction("header", e.header)
	evalCtx.AddFunction("schema", e.schema)
	evalCtx.AddFunction("sql", e.sql)
}

func (e *evaluator) evaluate(evalCtx *env.Context, test tree.Test) Result {
	expression := Unwrap(test.Assert)
	res := Result{Name: test.Name, Status: StatusFailed, Expression: expression}
	e.notes = e.notes[:0]

	if expression == "" {
		res.Failure = "empty assertion"
		return res
	}

	value, err := evalCtx.Eval(expression)
	if err != nil {
		res.Failure = err.Error()
		return res
	}

	passed, ok := value.(bool)
	if !ok {
		res.Failure = fmt.Sprintf("expected bool, got %T", value)
		return res
	}
	if !passed {
		res.Failure = "assertion evaluated to false"
		if len(e.notes) > 0 {
			res.Failure += ": " + strings.Join(e.notes, "; ")
		}
		return res
	}

	res.Status = StatusPassed
	return res
}

// Unwrap strips a single surrounding ${{ }} from an assertion.
func Unwrap(assert string) string {
	s := strings.TrimSpace(assert)
	if strings.HasPrefix(s, "${{") && strings.HasSuffix(s, "}}") {
		return strings.TrimSpace(s[3 : len(s)-2])
	}
	return s
}
