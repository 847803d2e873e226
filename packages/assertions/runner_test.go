package assertions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apiscan/packages/core/env"
	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
	"github.com/abdul-hamid-achik/apiscan/packages/core/tree"
	"github.com/abdul-hamid-achik/apiscan/packages/db"
	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

func createResponse(statusCode int, body string, headers map[string]string) *http.Response {
	if headers == nil {
		headers = make(map[string]string)
	}
	if _, ok := headers["Content-Type"]; !ok {
		headers["Content-Type"] = "application/json"
	}
	return &http.Response{
		StatusCode: statusCode,
		Status:     "",
		Headers:    headers,
		Body:       []byte(body),
		Duration:   100 * time.Millisecond,
		Attempts:   1,
	}
}

func newEvalContext(vars *scope.Values) *env.Context {
	return env.NewResolver().NewContext(vars, nil)
}

func run(t *testing.T, r *Runner, resp *http.Response, tests ...tree.Test) []Result {
	t.Helper()
	return r.Run(context.Background(), tests, resp, nil, newEvalContext(nil))
}

func TestRunner_NoTests(t *testing.T) {
	got := NewRunner().Run(context.Background(), nil, createResponse(200, `{}`, nil), nil, newEvalContext(nil))

	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.True(t, NoFailure(got))
}

func TestNoFailure(t *testing.T) {
	passed := Result{Name: "a", Status: StatusPassed}
	failed := Result{Name: "b", Status: StatusFailed}

	assert.False(t, NoFailure([]Result{passed, failed}))
	assert.True(t, NoFailure([]Result{passed, passed}))
}

func TestRunner_ResponseContext(t *testing.T) {
	resp := createResponse(201, `{"id": 7, "tags": ["a", "b"], "user": {"name": "ada"}}`, map[string]string{
		"X-Request-Id": "abc",
	})

	tests := []struct {
		name   string
		assert string
		passed bool
	}{
		{"status code", "status_code == 201", true},
		{"wrapped", "${{ status_code == 201 }}", true},
		{"parsed body", "body.id == 7 && body.user.name == 'ada'", true},
		{"text", `text contains "tags"`, true},
		{"headers map", `headers["X-Request-Id"] == "abc"`, true},
		{"lower-case headers", `headers["x-request-id"] == "abc"`, true},
		{"header helper", `header("x-request-id") == "abc"`, true},
		{"elapsed", "elapsed < 1000", true},
		{"response map", "response.status_code == 201", true},
		{"gjson path", `json("tags.#") == 2 && json("user.name") == "ada"`, true},
		{"gjson missing path", `json("nope") == nil`, true},
		{"jsonpath", `jsonpath("$.tags[1]") == "b"`, true},
		{"false", "status_code == 200", false},
		{"non bool", "status_code", false},
		{"undefined identifier", "missing == 1", false},
		{"helper error", `jsonpath("$[")`, false},
	}

	r := NewRunner()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := run(t, r, resp, tree.Test{Name: tt.name, Assert: tt.assert})
			require.Len(t, got, 1)
			assert.Equal(t, tt.name, got[0].Name)
			assert.Equal(t, tt.passed, got[0].Passed(), got[0].Failure)
			if !tt.passed {
				assert.NotEmpty(t, got[0].Failure)
			}
		})
	}
}

func TestRunner_FailureReasons(t *testing.T) {
	resp := createResponse(200, `{}`, nil)

	got := run(t, NewRunner(), resp,
		tree.Test{Name: "non_bool", Assert: "status_code"},
		tree.Test{Name: "false", Assert: "status_code == 500"},
		tree.Test{Name: "undefined", Assert: "nope > 1"},
	)

	require.Len(t, got, 3)
	assert.Equal(t, "expected bool, got int", got[0].Failure)
	assert.Equal(t, "assertion evaluated to false", got[1].Failure)
	assert.Contains(t, got[2].Failure, `undefined variable "nope"`)
}

func TestRunner_Vars(t *testing.T) {
	v := scope.New()
	v.Set("expected_id", 7)
	resp := createResponse(200, `{"id": 7}`, nil)

	got := NewRunner().Run(context.Background(),
		[]tree.Test{{Name: "id", Assert: "body.id == expected_id"}},
		resp, nil, newEvalContext(v))

	assert.True(t, NoFailure(got))
}

func TestRunner_TransportError(t *testing.T) {
	got := NewRunner().Run(context.Background(),
		[]tree.Test{
			{Name: "status", Assert: "status_code == 200"},
			{Name: "errored", Assert: `error contains "refused"`},
			{Name: "body helper", Assert: `json("id") == 1`},
		},
		nil, errors.New("connection refused"), newEvalContext(nil))

	require.Len(t, got, 3)
	assert.False(t, got[0].Passed())
	assert.True(t, got[1].Passed())
	assert.False(t, got[2].Passed())
	assert.Contains(t, got[2].Failure, "no response")
}

func TestRunner_XPath(t *testing.T) {
	resp := createResponse(200, `<user><name>ada</name><role>admin</role></user>`, map[string]string{
		"Content-Type": "application/xml",
	})

	got := run(t, NewRunner(), resp,
		tree.Test{Name: "name", Assert: `xpath("//user/name") == "ada"`},
		tree.Test{Name: "missing", Assert: `xpath("//user/email") == nil`},
	)

	assert.True(t, NoFailure(got), got)
}

func TestRunner_XPathRequiresXMLContentType(t *testing.T) {
	resp := createResponse(200, `{"name": "ada"}`, map[string]string{
		"Content-Type": "application/json",
	})

	got := run(t, NewRunner(), resp,
		tree.Test{Name: "name", Assert: `xpath("//name") == "ada"`},
	)

	require.Len(t, got, 1)
	assert.False(t, got[0].Passed())
	assert.Contains(t, got[0].Failure, `content type "application/json" is not XML`)
}

func TestRunner_Schema(t *testing.T) {
	dir := t.TempDir()
	schema := `{"type": "object", "required": ["id"], "properties": {"id": {"type": "integer"}}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "user.json"), []byte(schema), 0o644))

	r := NewRunner(WithBaseDir(dir))

	valid := run(t, r, createResponse(200, `{"id": 1}`, nil),
		tree.Test{Name: "file", Assert: `schema("user.json")`},
		tree.Test{Name: "inline", Assert: `schema('{"type": "object"}')`},
		tree.Test{Name: "map", Assert: `schema({"type": "object"})`},
	)
	assert.True(t, NoFailure(valid), valid)

	invalid := run(t, r, createResponse(200, `{"id": "x"}`, nil),
		tree.Test{Name: "file", Assert: `schema("user.json")`},
	)
	require.Len(t, invalid, 1)
	assert.False(t, invalid[0].Passed())
	assert.Contains(t, invalid[0].Failure, "id")

	escaped := run(t, r, createResponse(200, `{}`, nil),
		tree.Test{Name: "traversal", Assert: `schema("../outside.json")`},
	)
	assert.Contains(t, escaped[0].Failure, "path traversal")
}

func TestRunner_SQL(t *testing.T) {
	client, err := db.NewClient(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	defer client.Close()

	_, err = client.Exec(context.Background(), `CREATE TABLE users (id INTEGER, name TEXT)`)
	require.NoError(t, err)
	affected, err := client.Exec(context.Background(), `INSERT INTO users VALUES (?, ?)`, 7, "ada")
	require.NoError(t, err)
	require.Equal(t, int64(1), affected)

	r := NewRunner(WithDatabase(client))
	got := run(t, r, createResponse(200, `{"id": 7}`, nil),
		tree.Test{Name: "row exists", Assert: `len(sql("SELECT name FROM users WHERE id = ?", body.id)) == 1`},
		tree.Test{Name: "row value", Assert: `sql("SELECT name FROM users")[0].name == "ada"`},
	)
	assert.True(t, NoFailure(got), got)

	noDB := run(t, NewRunner(), createResponse(200, `{}`, nil), tree.Test{Name: "sql", Assert: `len(sql("SELECT 1")) == 1`})
	assert.Contains(t, noDB[0].Failure, "no database configured")
}

func TestUnwrap(t *testing.T) {
	assert.Equal(t, "status_code == 200", Unwrap("${{ status_code == 200 }}"))
	assert.Equal(t, "status_code == 200", Unwrap("  status_code == 200 "))
}
