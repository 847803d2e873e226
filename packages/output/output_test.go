package output

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apiscan/packages/assertions"
	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

func sampleResult() *runner.RunResult {
	headers := scope.New()
	headers.Set("Accept", "application/json")
	headers.Set("Authorization", "Bearer secret")

	params := scope.New()
	params.Set("api_key", "k-123")
	params.Set("page", 1)

	body := scope.New()
	body.Set("user", "ada")
	body.Set("password", "hunter2")

	return &runner.RunResult{
		File:     "api.yaml",
		Duration: 120 * time.Millisecond,
		Root: &runner.EndpointResult{
			Name: "root",
			Path: "http://x.com",
			Requests: []*runner.RequestResult{{
				Name:     "login",
				Endpoint: "root",
				Method:   "POST",
				URL:      "http://x.com/login",
				Headers:  headers,
				Params:   params,
				Body:     body,
				Sent:     true,
				Response: &http.Response{
					StatusCode: 200,
					Status:     "200 OK",
					Headers:    map[string]string{"Content-Type": "application/json", "Set-Cookie": "sid=1"},
					Body:       []byte(`{"token":"abc","id":7}`),
					Duration:   15 * time.Millisecond,
					Attempts:   1,
				},
				TestsResults: []assertions.Result{{Name: "ok", Status: assertions.StatusPassed}},
				NoFailure:    true,
				Duration:     16 * time.Millisecond,
			}},
			Children: []*runner.EndpointResult{{
				Name: "root::users",
				Path: "http://x.com/users",
				Requests: []*runner.RequestResult{
					{
						Name:     "list",
						Endpoint: "root::users",
						Method:   "GET",
						URL:      "http://x.com/users",
						Sent:     true,
						Response: &http.Response{StatusCode: 500, Status: "500 Internal Server Error", Duration: 30 * time.Millisecond, Attempts: 3},
						TestsResults: []assertions.Result{
							{Name: "status", Status: assertions.StatusFailed, Failure: "assertion evaluated to false", Expression: "status_code == 200"},
						},
					},
					{
						Name:     "show",
						Endpoint: "root::users",
						Err:      &env.ResolutionError{Field: "path", Key: "later", Err: env.ErrNotExecuted},
					},
					{
						Name:         "down",
						Endpoint:     "root::users",
						Method:       "GET",
						URL:          "http://x.com/users/down",
						Sent:         true,
						Err:          errors.New("connection refused"),
						TestsResults: []assertions.Result{},
						NoFailure:    true,
					},
				},
			}},
		},
	}
}

var hideAll = Hide{
	RequestHeaders:  []string{"authorization"},
	RequestParams:   []string{"api_key"},
	RequestBody:     []string{"password"},
	ResponseHeaders: []string{"set-cookie"},
	ResponseBody:    []string{"token"},
}

func TestBuildReport(t *testing.T) {
	report := BuildReport(sampleResult(), Hide{})

	assert.Equal(t, "api.yaml", report.File)
	assert.False(t, report.NoFailure)
	require.Len(t, report.Endpoints, 2)
	assert.Equal(t, 1, report.Endpoints[1].Depth)

	assert.Equal(t, 4, report.Summary.Requests)
	assert.Equal(t, 2, report.Summary.Passed)
	assert.Equal(t, 1, report.Summary.Errored)
	assert.Equal(t, 1, report.Summary.NotSent)

	login := report.Root.Requests[0]
	assert.Equal(t, []Field{{"Accept", "application/json"}, {"Authorization", "Bearer secret"}}, login.HeaderList)
	assert.Equal(t, map[string]any{"token": "abc", "id": float64(7)}, login.Response.Body)

	list := report.Root.Children[0].Requests[0]
	require.Len(t, list.FailedTests, 1)
	assert.Equal(t, "status", list.FailedTests[0].Name)

	show := report.Root.Children[0].Requests[1]
	assert.False(t, show.Sent)
	assert.Contains(t, show.Error, "not been executed")
	assert.NotNil(t, show.Tests)
}

func TestBuildReport_HidesSensitiveInformation(t *testing.T) {
	result := sampleResult()
	report := BuildReport(result, hideAll)
	login := report.Root.Requests[0]

	v, _ := login.Headers.Get("Authorization")
	assert.Equal(t, Masked, v)
	v, _ = login.Headers.Get("Accept")
	assert.Equal(t, "application/json", v)

	v, _ = login.Params.Get("api_key")
	assert.Equal(t, Masked, v)
	v, _ = login.Params.Get("page")
	assert.Equal(t, 1, v)

	body := login.Body.(*scope.Values)
	v, _ = body.Get("password")
	assert.Equal(t, Masked, v)
	v, _ = body.Get("user")
	assert.Equal(t, "ada", v)

	assert.Equal(t, Masked, login.Response.Headers["Set-Cookie"])
	assert.Equal(t, "application/json", login.Response.Headers["Content-Type"])
	assert.Equal(t, map[string]any{"token": Masked, "id": float64(7)}, login.Response.Body)

	original, _ := result.Root.Requests[0].Headers.Get("Authorization")
	assert.Equal(t, "Bearer secret", original, "run result must not be mutated")
}

func TestJSONReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJSONReporter().Write(&buf, BuildReport(sampleResult(), hideAll)))

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.NotContains(t, out, "Bearer secret")
	assert.Contains(t, out, Masked)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(`"Accept"`)), bytes.Index(buf.Bytes(), []byte(`"Authorization"`)))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	root := decoded["root"].(map[string]any)
	assert.Equal(t, "root", root["name"])
	assert.NotContains(t, root, "endpoints")
	children := root["children"].([]any)
	require.Len(t, children, 1)
	requests := children[0].(map[string]any)["requests"].([]any)
	assert.Len(t, requests, 3)

	list := requests[0].(map[string]any)
	assert.Equal(t, "list", list["name"])
	assert.Equal(t, false, list["no_failure"])
	tests := list["tests_results"].([]any)
	require.Len(t, tests, 1)
	assert.Equal(t, "status", tests[0].(map[string]any)["name"])
	assert.Equal(t, "failed", tests[0].(map[string]any)["status"])

	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, float64(4), summary["requests"])
}

func TestJUnitReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewJUnitReporter().Write(&buf, BuildReport(sampleResult(), Hide{})))

	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte(xml.Header)))

	var suites JUnitTestSuites
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &suites))

	assert.Equal(t, 4, suites.Tests)
	assert.Equal(t, 1, suites.Failures)
	assert.Equal(t, 2, suites.Errors)
	require.Len(t, suites.TestSuites, 2)

	users := suites.TestSuites[1]
	assert.Equal(t, "root::users", users.Name)
	require.Len(t, users.TestCases, 3)
	require.NotNil(t, users.TestCases[0].Failure)
	assert.Contains(t, users.TestCases[0].Failure.Content, "status: assertion evaluated to false")
	require.NotNil(t, users.TestCases[1].Error)
	assert.Equal(t, "ResolutionError", users.TestCases[1].Error.Type)
	require.NotNil(t, users.TestCases[2].Error)
	assert.Equal(t, "TransportError", users.TestCases[2].Error.Type)
}

func TestConsoleReporter(t *testing.T) {
	t.Run("summary and failures", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewConsoleReporter(true, false).Write(&buf, BuildReport(sampleResult(), Hide{})))

		out := buf.String()
		assert.Contains(t, out, "Running: api.yaml")
		assert.Contains(t, out, "✓ login POST http://x.com/login 200")
		assert.Contains(t, out, "✗ list")
		assert.Contains(t, out, "[3 attempts]")
		assert.Contains(t, out, "→ status")
		assert.Contains(t, out, "not sent:")
		assert.Contains(t, out, "2 passed, 2 failed, 1 errored, 1 not sent, 4 total")
		assert.Contains(t, out, "Latency:")
		assert.NotContains(t, out, "Bearer secret")
	})

	t.Run("verbose shows masked request data", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewConsoleReporter(true, true).Write(&buf, BuildReport(sampleResult(), hideAll)))

		out := buf.String()
		assert.Contains(t, out, "> Authorization: "+Masked)
		assert.Contains(t, out, "? api_key="+Masked)
		assert.NotContains(t, out, "hunter2")
	})
}

func TestTemplateReporters(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{FormatMarkdown, []string{"# API report", "## root::users", "### ✅ login", "| status | failed | assertion evaluated to false |"}},
		{FormatHTML, []string{"<!DOCTYPE html>", "<h2>root::users", "<h3>login</h3>", "assertion evaluated to false"}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			reporter, err := New(tt.format)
			require.NoError(t, err)

			var buf bytes.Buffer
			require.NoError(t, reporter.Write(&buf, BuildReport(sampleResult(), hideAll)))

			out := buf.String()
			for _, want := range tt.want {
				assert.Contains(t, out, want)
			}
			assert.NotContains(t, out, "hunter2")
		})
	}
}

func TestTemplateFileReporter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "custom.tpl")
	content := `{% for e in endpoints %}{% for r in e.Requests %}{{ r.Name }}={{ r.NoFailure }};{% endfor %}{% endfor %}total={{ summary.Requests }}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	reporter, err := New(FormatJSON, WithTemplate(path))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, reporter.Write(&buf, BuildReport(sampleResult(), Hide{})))
	assert.Equal(t, "login=True;list=False;show=False;down=True;total=4", buf.String())
}

func TestNew(t *testing.T) {
	for _, format := range Formats() {
		t.Run(format, func(t *testing.T) {
			reporter, err := New(format)
			require.NoError(t, err)
			assert.NotNil(t, reporter)
		})
	}

	_, err := New("tap")
	assert.ErrorContains(t, err, "unknown reporter")

	_, err = New(FormatConsole, WithTemplate(filepath.Join(t.TempDir(), "missing.tpl")))
	assert.Error(t, err)
}
