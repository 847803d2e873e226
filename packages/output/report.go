package output

import (
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiscan/packages/assertions"
	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/results"
	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
	"github.com/abdul-hamid-achik/apiscan/packages/stats"
)

// Masked replaces every hidden value.
const Masked = "SENSITIVE_INFORMATION"

// Hide lists the fields masked in reports. Header names match case-insensitively.
type Hide struct {
	RequestHeaders  []string
	RequestParams   []string
	RequestBody     []string
	ResponseHeaders []string
	ResponseBody    []string
}

// Report is the reporter-neutral view of a run.
type Report struct {
	File        string          `json:"file,omitempty"`
	GeneratedAt time.Time       `json:"generated_at"`
	DurationMs  float64         `json:"duration_ms"`
	NoFailure   bool            `json:"no_failure"`
	Summary     stats.Summary   `json:"summary"`
	Root        *EndpointReport `json:"root"`

	// Endpoints is the tree flattened depth-first for templates.
	Endpoints []*EndpointReport `json:"-"`
}

type EndpointReport struct {
	Name     string            `json:"name"`
	Path     string            `json:"path,omitempty"`
	Depth    int               `json:"-"`
	Requests []*RequestReport  `json:"requests"`
	Children []*EndpointReport `json:"children"`
}

type RequestReport struct {
	Name        string              `json:"name"`
	Endpoint    string              `json:"endpoint"`
	Method      string              `json:"method,omitempty"`
	URL         string              `json:"url,omitempty"`
	Headers     *scope.Values       `json:"headers,omitempty"`
	Params      *scope.Values       `json:"params,omitempty"`
	Body        any                 `json:"body,omitempty"`
	Response    *ResponseReport     `json:"response,omitempty"`
	Tests       []assertions.Result `json:"tests_results"`
	NoFailure   bool                `json:"no_failure"`
	Sent        bool                `json:"sent"`
	Error       string              `json:"error,omitempty"`
	DurationMs  float64             `json:"duration_ms"`
	HeaderList  []Field             `json:"-"`
	ParamList   []Field             `json:"-"`
	FailedTests []assertions.Result `json:"-"`
	BodyText    string              `json:"-"`
}

type ResponseReport struct {
	StatusCode int               `json:"status_code"`
	Status     string            `json:"status,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
	ElapsedMs  float64           `json:"elapsed_ms"`
	Attempts   int               `json:"attempts"`
	BodyText   string            `json:"-"`
}

// Field is one ordered key/value pair for templates.
type Field struct {
	Key   string
	Value string
}

// BuildReport converts a run result, masking the fields named by hide.
func BuildReport(result *runner.RunResult, hide Hide) *Report {
	summary := stats.Summarize(result)
	r := &Report{
		File:        result.File,
		GeneratedAt: time.Now(),
		DurationMs:  ms(result.Duration),
		NoFailure:   result.NoFailure(),
		Summary:     summary,
	}
	if result.Root != nil {
		r.Root = buildEndpoint(result.Root, 0, hide, &r.Endpoints)
	}
	return r
}

func buildEndpoint(e *runner.EndpointResult, depth int, hide Hide, flat *[]*EndpointReport) *EndpointReport {
	out := &EndpointReport{
		Name:     e.Name,
		Path:     e.Path,
		Depth:    depth,
		Requests: make([]*RequestReport, 0, len(e.Requests)),
		Children: make([]*EndpointReport, 0, len(e.Children)),
	}
	*flat = append(*flat, out)

	for _, req := range e.Requests {
		out.Requests = append(out.Requests, buildRequest(req, hide))
	}
	for _, child := range e.Children {
		out.Children = append(out.Children, buildEndpoint(child, depth+1, hide, flat))
	}
	return out
}

func buildRequest(req *runner.RequestResult, hide Hide) *RequestReport {
	out := &RequestReport{
		Name:       req.Name,
		Endpoint:   req.Endpoint,
		Method:     req.Method,
		URL:        req.URL,
		Headers:    maskValues(req.Headers, hide.RequestHeaders, true),
		Params:     maskValues(req.Params, hide.RequestParams, false),
		Body:       maskBody(req.Body, hide.RequestBody),
		Tests:      req.TestsResults,
		NoFailure:  req.NoFailure,
		Sent:       req.Sent,
		DurationMs: ms(req.Duration),
	}
	if out.Tests == nil {
		out.Tests = []assertions.Result{}
	}
	if req.Err != nil {
		out.Error = req.Err.Error()
	}
	out.HeaderList = fields(out.Headers)
	out.ParamList = fields(out.Params)
	if out.Body != nil {
		out.BodyText = stringify(out.Body)
	}
	for _, t := range out.Tests {
		if !t.Passed() {
			out.FailedTests = append(out.FailedTests, t)
		}
	}

	if resp := req.Response; resp != nil {
		headers := make(map[string]string, len(resp.Headers))
		for k, v := range resp.Headers {
			if matches(hide.ResponseHeaders, k, true) {
				v = Masked
			}
			headers[k] = v
		}
		body := maskBody(results.ParseBody(resp), hide.ResponseBody)
		out.Response = &ResponseReport{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Headers:    headers,
			Body:       body,
			ElapsedMs:  resp.ElapsedMs(),
			Attempts:   resp.Attempts,
		}
		if body != nil {
			out.Response.BodyText = stringify(body)
		}
	}
	return out
}

func maskValues(values *scope.Values, hidden []string, foldCase bool) *scope.Values {
	if values == nil {
		return nil
	}
	if len(hidden) == 0 {
		return values
	}
	out := scope.New()
	values.Range(func(key string, value any) bool {
		if matches(hidden, key, foldCase) {
			value = Masked
		}
		out.Set(key, value)
		return true
	})
	return out
}

// maskBody masks top-level fields of object bodies; other bodies are kept.
func maskBody(body any, hidden []string) any {
	if len(hidden) == 0 {
		return body
	}
	switch b := body.(type) {
	case *scope.Values:
		return maskValues(b, hidden, false)
	case map[string]any:
		out := make(map[string]any, len(b))
		for k, v := range b {
			if matches(hidden, k, false) {
				v = Masked
			}
			out[k] = v
		}
		return out
	default:
		return body
	}
}

func matches(names []string, key string, foldCase bool) bool {
	for _, name := range names {
		if name == key || (foldCase && strings.EqualFold(name, key)) {
			return true
		}
	}
	return false
}

func fields(values *scope.Values) []Field {
	var out []Field
	values.Range(func(key string, value any) bool {
		out = append(out, Field{Key: key, Value: stringify(value)})
		return true
	})
	return out
}

func stringify(v any) string {
	return env.FormatValue(v)
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
