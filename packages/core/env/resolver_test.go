package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
)

type fakeResults map[string]any

func (f fakeResults) Has(name string) bool {
	_, ok := f[name]
	return ok
}

func (f fakeResults) View() map[string]any {
	return f
}

func vars(kv ...any) *scope.Values {
	v := scope.New()
	for i := 0; i < len(kv); i += 2 {
		v.Set(kv[i].(string), kv[i+1])
	}
	return v
}

func lookup(env map[string]string) func(string) (string, bool) {
	return func(name string) (string, bool) {
		v, ok := env[name]
		return v, ok
	}
}

func newContext(v *scope.Values, results Results) *Context {
	r := NewResolver(WithLookupEnv(lookup(map[string]string{"BASE_URL": "http://x.com"})))
	return r.NewContext(v, results)
}

func TestResolve_Identity(t *testing.T) {
	ctx := newContext(nil, nil)

	inputs := []any{
		"plain text",
		42,
		3.5,
		true,
		nil,
		[]any{"a", 1},
		vars("k", "v", "n", 1),
	}

	for _, in := range inputs {
		got, err := ctx.Resolve(in)
		require.NoError(t, err)
		assert.Equal(t, in, got)
	}
}

func TestResolve_Strings(t *testing.T) {
	ctx := newContext(vars("user_id", 7, "name", "ada", "nested", vars("id", 3)), nil)

	tests := []struct {
		name  string
		input string
		want  any
	}{
		{"single placeholder keeps type", "${{ user_id }}", 7},
		{"arithmetic", "${{ user_id * 2 }}", 14},
		{"interpolation", "/users/${{ user_id }}/${{ name }}", "/users/7/ada"},
		{"env var", "${BASE_URL}/users", "http://x.com/users"},
		{"nested member", "${{ nested.id }}", 3},
		{"builtin", `${{ base64("a") }}`, "YQ=="},
		{"map interpolated as json", "n=${{ nested }}", `n={"id":3}`},
		{"nil interpolated as empty", "x${{ nil }}y", "xy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ctx.Resolve(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_StructurePreserved(t *testing.T) {
	ctx := newContext(vars("id", 1), nil)

	body := vars("z", "${{ id }}", "a", []any{"${{ id + 1 }}", "lit"})
	got, err := ctx.Resolve(body)
	require.NoError(t, err)

	out := got.(*scope.Values)
	assert.Equal(t, []string{"z", "a"}, out.Keys())
	z, _ := out.Get("z")
	assert.Equal(t, 1, z)
	a, _ := out.Get("a")
	assert.Equal(t, []any{2, "lit"}, a)

	orig, _ := body.Get("z")
	assert.Equal(t, "${{ id }}", orig)
}

func TestResolve_UndefinedVariable(t *testing.T) {
	ctx := newContext(vars("a", 1), nil)

	_, err := ctx.Resolve("/users/${{ missing_id }}")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, ErrUndefined)
	assert.Equal(t, "missing_id", resErr.Key)
	assert.Equal(t, "missing_id", resErr.Expression)
}

func TestResolve_MissingEnv(t *testing.T) {
	ctx := newContext(nil, nil)

	_, err := ctx.Resolve("${API_TOKEN}")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, ErrEnvNotSet)
	assert.Equal(t, "API_TOKEN", resErr.Key)
}

func TestResolve_VarsReferencingVars(t *testing.T) {
	ctx := newContext(vars(
		"host", "${BASE_URL}",
		"users_url", "${{ host }}/users",
		"unused", "${{ does_not_exist }}",
	), nil)

	got, err := ctx.Resolve("${{ users_url }}")
	require.NoError(t, err)
	assert.Equal(t, "http://x.com/users", got)
}

func TestResolve_Cycle(t *testing.T) {
	ctx := newContext(vars("a", "${{ b }}", "b", "${{ a }}"), nil)

	_, err := ctx.Resolve("${{ a }}")
	assert.ErrorIs(t, err, ErrCycle)
}

func TestResolve_Results(t *testing.T) {
	results := fakeResults{
		"login": map[string]any{
			"status_code": 200,
			"body":        map[string]any{"token": "abc"},
		},
	}
	ctx := newContext(nil, results)

	got, err := ctx.Resolve("Bearer ${{ results.login.body.token }}")
	require.NoError(t, err)
	assert.Equal(t, "Bearer abc", got)

	got, err = ctx.Resolve(`${{ results["login"].status_code }}`)
	require.NoError(t, err)
	assert.Equal(t, 200, got)
}

func TestResolve_ResultNotExecuted(t *testing.T) {
	ctx := newContext(nil, fakeResults{})

	_, err := ctx.Resolve("${{ results.create_user.body.id }}")

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, ErrNotExecuted)
	assert.Equal(t, "create_user", resErr.Key)
}

func TestContext_ExtrasAndFunctions(t *testing.T) {
	ctx := newContext(vars("status_code", "shadowed"), nil)
	ctx.Set("status_code", 201)
	ctx.AddFunction("header", func(args ...any) (any, error) {
		return "application/json", nil
	})

	got, err := ctx.Eval(`status_code == 201 && header("Content-Type") == "application/json"`)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestContext_LetDeclarationNotUndefined(t *testing.T) {
	ctx := newContext(vars("n", 2), nil)

	got, err := ctx.Eval("let x = n * 2; x + 1")
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestResolutionError_Message(t *testing.T) {
	err := &ResolutionError{Field: "path", Key: "id", Expression: "id", Err: ErrUndefined}
	assert.Equal(t, `failed to resolve path: undefined variable "id" in expression "id"`, err.Error())
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "", FormatValue(nil))
	assert.Equal(t, "1.5", FormatValue(1.5))
	assert.Equal(t, "true", FormatValue(true))
	assert.Equal(t, `["a",1]`, FormatValue([]any{"a", 1}))
}
