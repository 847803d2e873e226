package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/apiscan/packages/core/config"
	"github.com/abdul-hamid-achik/apiscan/packages/stats"
)

func resetFlags(t *testing.T) {
	t.Helper()
	for _, fs := range []*pflag.FlagSet{runCmd.Flags(), initCmd.Flags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(t)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitUsageError
}

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "api.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func newAPIServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/health":
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func specFor(baseURL, path string, status int) string {
	return `
api:
  path: ` + baseURL + `
  headers:
    Authorization: Bearer secret
  requests:
    - name: health
      path: ` + path + `
      tests:
        - name: status
          assert: ${{ status_code == ` + strconv.Itoa(status) + ` }}
`
}

func TestRunCommand(t *testing.T) {
	server := newAPIServer(t)

	t.Run("all passing", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/health", 200))

		stdout, _, err := executeCommand(t, "run", spec, "--reporter", "json")
		require.NoError(t, err)

		var report map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &report))
		assert.Equal(t, true, report["no_failure"])
		assert.Equal(t, spec, report["file"])
	})

	t.Run("failing test", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/missing", 200))

		stdout, _, err := executeCommand(t, "run", spec, "--no-color")
		assert.Equal(t, ExitTestFailure, exitCode(err))
		assert.Contains(t, stdout, "✗ health")
		assert.Contains(t, stdout, "assertion evaluated to false")
	})

	t.Run("report written to file", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/health", 200))
		reportPath := filepath.Join(t.TempDir(), "report.xml")

		_, stderr, err := executeCommand(t, "run", spec, "-r", "junit", "-o", reportPath)
		require.NoError(t, err)
		assert.Contains(t, stderr, "Report written to "+reportPath)

		data, err := os.ReadFile(reportPath)
		require.NoError(t, err)
		assert.Contains(t, string(data), `<testsuites name="apiscan" tests="1" failures="0" errors="0"`)
	})

	t.Run("invalid spec", func(t *testing.T) {
		spec := writeSpec(t, "endpoints: []\n")

		_, _, err := executeCommand(t, "run", spec)
		assert.Equal(t, ExitSpecError, exitCode(err))
		assert.ErrorContains(t, err, "api")
	})

	t.Run("invalid config", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/health", 200))
		cfgPath := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("retry:\n  backoff: linear\n"), 0644))

		_, _, err := executeCommand(t, "run", spec, "--config", cfgPath)
		assert.Equal(t, ExitConfigError, exitCode(err))
	})

	t.Run("invalid timeout flag", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/health", 200))

		_, _, err := executeCommand(t, "run", spec, "--timeout", "soon")
		assert.Equal(t, ExitConfigError, exitCode(err))
	})

	t.Run("unknown reporter", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/health", 200))

		_, _, err := executeCommand(t, "run", spec, "--reporter", "tap")
		assert.Equal(t, ExitConfigError, exitCode(err))
	})

	t.Run("unreachable", func(t *testing.T) {
		down := httptest.NewServer(http.NotFoundHandler())
		url := down.URL
		down.Close()
		spec := writeSpec(t, specFor(url, "/health", 200))

		_, _, err := executeCommand(t, "run", spec, "--no-color")
		assert.Equal(t, ExitNetworkError, exitCode(err))
	})

	t.Run("sensitive headers hidden", func(t *testing.T) {
		spec := writeSpec(t, specFor(server.URL, "/health", 200))
		cfgPath := filepath.Join(t.TempDir(), "cfg.yaml")
		require.NoError(t, os.WriteFile(cfgPath, []byte("report:\n  hide_request:\n    headers: [Authorization]\n"), 0644))

		stdout, _, err := executeCommand(t, "run", spec, "--config", cfgPath, "-r", "json")
		require.NoError(t, err)
		assert.NotContains(t, stdout, "Bearer secret")
		assert.Contains(t, stdout, "SENSITIVE_INFORMATION")
	})
}

func TestValidateCommand(t *testing.T) {
	valid := writeSpec(t, specFor("http://x.com", "/health", 200))
	invalid := writeSpec(t, "api:\n  requests:\n    - path: /x\n")

	stdout, _, err := executeCommand(t, "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Valid: "+valid+" (1 requests)")

	_, stderr, err := executeCommand(t, "validate", valid, invalid)
	assert.Equal(t, ExitSpecError, exitCode(err))
	assert.Contains(t, stderr, "Error in "+invalid)
}

func TestListCommand(t *testing.T) {
	spec := writeSpec(t, `
api:
  path: http://x.com/
  requests:
    - name: ping
  endpoints:
    - name: users
      path: /users/
      requests:
        - name: show
          method: delete
          path: ${{ id }}
`)

	stdout, _, err := executeCommand(t, "list", spec)
	require.NoError(t, err)
	assert.Contains(t, stdout, "root (http://x.com/)")
	assert.Contains(t, stdout, "- ping GET http://x.com/")
	assert.Contains(t, stdout, "users (/users/)")
	assert.Contains(t, stdout, "- show DELETE http://x.com/users/${{ id }}")
	assert.Contains(t, stdout, "2 requests")
}

func TestInitCommand(t *testing.T) {
	t.Chdir(t.TempDir())

	stdout, _, err := executeCommand(t, "init")
	require.NoError(t, err)
	assert.Contains(t, stdout, "apiscan project initialized!")

	cfg, err := config.FindAndLoadConfig(".")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTimeout, cfg.Timeout)
	assert.Equal(t, "apiscan/"+version, cfg.Headers["user-agent"])

	_, _, err = executeCommand(t, "validate")
	require.NoError(t, err)

	_, _, err = executeCommand(t, "init")
	assert.ErrorContains(t, err, "already exists")

	_, _, err = executeCommand(t, "init", "--force")
	assert.NoError(t, err)
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "apiscan version "+version)
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name    string
		summary stats.Summary
		want    int
	}{
		{"all passed", stats.Summary{Requests: 2, Passed: 2}, ExitSuccess},
		{"empty run", stats.Summary{}, ExitSuccess},
		{"some failed", stats.Summary{Requests: 2, Passed: 1, Failed: 1}, ExitTestFailure},
		{"all unreachable", stats.Summary{Requests: 2, Failed: 2, Errored: 2, AllUnreachable: true}, ExitNetworkError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCodeFor(tt.summary))
		})
	}
}

func TestHandleError(t *testing.T) {
	assert.Equal(t, ExitTestFailure, handleError(exitWith(ExitTestFailure, nil)))
	assert.Equal(t, ExitSpecError, handleError(exitWith(ExitSpecError, errors.New("bad spec"))))
	assert.Equal(t, ExitUsageError, handleError(errors.New("unknown flag")))
	assert.Equal(t, "exit status 4", exitWith(ExitNetworkError, nil).Error())
}
