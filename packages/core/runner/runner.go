package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiscan/packages/assertions"
	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/loader"
	"github.com/abdul-hamid-achik/apiscan/packages/core/results"
	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
	"github.com/abdul-hamid-achik/apiscan/packages/core/tree"
	"github.com/abdul-hamid-achik/apiscan/packages/db"
	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

// Sender sends one logical request, retrying internally. *http.Client
// satisfies it.
type Sender interface {
	Send(ctx context.Context, req *http.Request) (*http.Response, error)
}

type Runner struct {
	client   Sender
	resolver *env.Resolver
	sleeper  http.Sleeper
	logger   *slog.Logger
	querier  assertions.Querier
	onDone   func(*RequestResult)
	config   *Config
}

type Config struct {
	BaseDir        string
	Timeout        time.Duration
	Retry          http.RetryPolicy
	RateLimit      float64
	Insecure       bool
	Proxy          string
	DefaultHeaders map[string]string
	Database       string
}

type Option func(*Runner)

// WithClient replaces the HTTP client built from the config.
func WithClient(client Sender) Option {
	return func(r *Runner) {
		r.client = client
	}
}

func WithResolver(resolver *env.Resolver) Option {
	return func(r *Runner) {
		r.resolver = resolver
	}
}

// WithSleeper sets how pre-send delays and retry backoffs pause.
func WithSleeper(s http.Sleeper) Option {
	return func(r *Runner) {
		r.sleeper = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithDatabase sets the database behind sql() instead of opening Config.Database.
func WithDatabase(q assertions.Querier) Option {
	return func(r *Runner) {
		r.querier = q
	}
}

// WithObserver registers a callback invoked after every request completes.
func WithObserver(fn func(*RequestResult)) Option {
	return func(r *Runner) {
		r.onDone = fn
	}
}

func NewRunner(cfg *Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = &Config{}
	}

	r := &Runner{
		config:  cfg,
		sleeper: http.RealSleeper,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	if r.resolver == nil {
		r.resolver = env.NewResolver()
	}
	if r.client == nil {
		r.client = http.NewClient(r.clientOptions()...)
	}
	return r
}

func (r *Runner) clientOptions() []http.ClientOption {
	cfg := r.config
	opts := []http.ClientOption{
		http.WithRetryPolicy(cfg.Retry),
		http.WithValidateSSL(!cfg.Insecure),
		http.WithLogger(r.logger),
		http.WithSleeper(r.sleeper),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, http.WithTimeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, http.WithRateLimit(cfg.RateLimit))
	}
	if cfg.Proxy != "" {
		opts = append(opts, http.WithProxy(cfg.Proxy))
	}
	if len(cfg.DefaultHeaders) > 0 {
		opts = append(opts, http.WithDefaultHeaders(cfg.DefaultHeaders))
	}
	return opts
}

// LoadTree reads a spec file and builds its tree without running it.
func LoadTree(path string) (*tree.EndpointNode, error) {
	spec, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading spec: %w", err)
	}
	root, err := tree.Build(spec)
	if err != nil {
		return nil, fmt.Errorf("building spec tree: %w", err)
	}
	return root, nil
}

// RunFile loads, builds and runs the spec at path. Schema files are resolved
// relative to the spec unless Config.BaseDir is set.
func (r *Runner) RunFile(ctx context.Context, path string) (*RunResult, error) {
	root, err := LoadTree(path)
	if err != nil {
		return nil, err
	}
	if r.config.BaseDir == "" {
		r.config.BaseDir = filepath.Dir(path)
	}

	result, err := r.Run(ctx, root)
	if result != nil {
		result.File = path
	}
	return result, err
}

// Run executes every request of the tree once, depth-first. A cancelled
// context stops the traversal and returns the partial result with the
// context error.
func (r *Runner) Run(ctx context.Context, root *tree.EndpointNode) (*RunResult, error) {
	querier := r.querier
	if querier == nil && r.config.Database != "" {
		client, err := db.NewClient(ctx, r.config.Database)
		if err != nil {
			return nil, err
		}
		defer client.Close()
		querier = client
	}

	opts := []assertions.Option{assertions.WithBaseDir(r.config.BaseDir)}
	if querier != nil {
		opts = append(opts, assertions.WithDatabase(querier))
	}

	exec := &execution{
		Runner:  r,
		store:   results.NewStore(r.logger),
		asserts: assertions.NewRunner(opts...),
	}

	start := time.Now()
	res := &RunResult{Root: exec.runEndpoint(ctx, root)}
	res.Duration = time.Since(start)

	return res, ctx.Err()
}

// execution holds the state of a single run.
type execution struct {
	*Runner
	store   *results.Store
	asserts *assertions.Runner
}

func (x *execution) runEndpoint(ctx context.Context, node *tree.EndpointNode) *EndpointResult {
	out := &EndpointResult{
		Name: node.QualifiedName(),
		Path: tree.JoinURL(node.PathSegments()...),
	}

	for _, req := range node.Requests {
		if ctx.Err() != nil {
			return out
		}
		out.Requests = append(out.Requests, x.runRequest(ctx, req))
	}

	for _, child := range node.Children {
		if ctx.Err() != nil {
			return out
		}
		out.Children = append(out.Children, x.runEndpoint(ctx, child))
	}

	return out
}

func (x *execution) runRequest(ctx context.Context, node *tree.RequestNode) *RequestResult {
	res := &RequestResult{Name: node.Name, Endpoint: node.Endpoint.QualifiedName()}
	log := x.logger.With("request", node.QualifiedName())
	start := time.Now()

	defer func() {
		res.Duration = time.Since(start)
		if res.Sent {
			x.store.Put(node.Name, &results.Entry{
				Response:     res.Response,
				Error:        res.Err,
				TestsResults: testsView(res.TestsResults),
				NoFailure:    res.NoFailure,
			})
		}
		if x.onDone != nil {
			x.onDone(res)
		}
	}()

	if delay := node.EffectiveDelay(); delay > 0 {
		log.Debug("delaying request", "delay", delay)
		if err := x.sleeper.Sleep(ctx, delay); err != nil {
			res.Err = err
			return res
		}
	}

	evalCtx := x.resolver.NewContext(node.EffectiveVars(), x.store)
	req, err := buildRequest(evalCtx, node, res)
	if err != nil {
		log.Error("failed to resolve request", "error", err)
		res.Err = err
		return res
	}

	log.Info("sending request", "method", req.Method, "url", req.URL)
	res.Sent = true
	resp, err := x.client.Send(ctx, req)
	res.Response = resp
	res.Err = err
	if err != nil {
		log.Error("request failed", "error", err)
	}

	res.TestsResults = x.asserts.Run(ctx, node.Tests, resp, err, evalCtx)
	res.NoFailure = assertions.NoFailure(res.TestsResults)

	attrs := []any{"no_failure", res.NoFailure, "tests", len(res.TestsResults)}
	if resp != nil {
		attrs = append(attrs, "status", resp.StatusCode, "attempts", resp.Attempts, "elapsed", resp.Duration)
	}
	log.Info("request finished", attrs...)
	for _, t := range res.TestsResults {
		if !t.Passed() {
			log.Debug("test failed", "test", t.Name, "reason", t.Failure)
		}
	}

	return res
}

func testsView(tests []assertions.Result) []results.TestResult {
	out := make([]results.TestResult, len(tests))
	for i, t := range tests {
		out[i] = results.TestResult{Name: t.Name, Status: string(t.Status), Failure: t.Failure}
	}
	return out
}

// buildRequest resolves method, path, headers, params and body in that order
// and records the resolved values on res.
func buildRequest(evalCtx *env.Context, node *tree.RequestNode, res *RequestResult) (*http.Request, error) {
	method, err := resolveText(evalCtx, "method", node.Method)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if !tree.IsValidMethod(method) {
		return nil, &env.ResolutionError{
			Field:      "method",
			Expression: node.Method,
			Err:        fmt.Errorf("invalid HTTP method %q", method),
		}
	}
	res.Method = method

	segments := node.PathSegments()
	resolved := make([]string, len(segments))
	for i, seg := range segments {
		if resolved[i], err = resolveText(evalCtx, "path", seg); err != nil {
			return nil, err
		}
	}
	res.URL = tree.JoinURL(resolved...)

	req := http.NewRequest(method, res.URL)

	headers, err := resolveValues(evalCtx, "headers", node.EffectiveHeaders())
	if err != nil {
		return nil, err
	}
	res.Headers = headers
	headers.Range(func(key string, value any) bool {
		req.SetHeader(key, env.FormatValue(value))
		return true
	})

	params, err := resolveValues(evalCtx, "params", node.EffectiveParams())
	if err != nil {
		return nil, err
	}
	res.Params = params
	params.Range(func(key string, value any) bool {
		if list, ok := value.([]any); ok {
			for _, item := range list {
				req.AddQueryParam(key, env.FormatValue(item))
			}
			return true
		}
		req.AddQueryParam(key, env.FormatValue(value))
		return true
	})

	if node.Body != nil {
		body, err := evalCtx.Resolve(node.Body)
		if err != nil {
			return nil, withField(err, "body")
		}
		res.Body = body
		if err := req.SetJSONBody(body); err != nil {
			return nil, &env.ResolutionError{Field: "body", Err: err}
		}
	}

	return req, nil
}

func resolveText(evalCtx *env.Context, field, raw string) (string, error) {
	v, err := evalCtx.ResolveString(raw)
	if err != nil {
		return "", withField(err, field)
	}
	return env.FormatValue(v), nil
}

func resolveValues(evalCtx *env.Context, field string, values *scope.Values) (*scope.Values, error) {
	v, err := evalCtx.Resolve(values)
	if err != nil {
		return nil, withField(err, field)
	}
	return v.(*scope.Values), nil
}

func withField(err error, field string) error {
	var resErr *env.ResolutionError
	if errors.As(err, &resErr) && resErr.Field == "" {
		resErr.Field = field
	}
	return err
}
