package assertions

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/PaesslerAG/jsonpath"
	"github.com/antchfx/xmlquery"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"

	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

var (
	errNoResponse = errors.New("no response available")
	errNoDatabase = errors.New("no database configured, set 'database' in the config")
)

type evaluator struct {
	ctx      context.Context
	response *http.Response
	baseDir  string
	db       Querier
	notes    []string

	parsed    any
	parsedErr error
	didParse  bool
}

func newEvaluator(ctx context.Context, resp *http.Response, baseDir string, q Querier) *evaluator {
	return &evaluator{ctx: ctx, response: resp, baseDir: baseDir, db: q}
}

func (e *evaluator) body() ([]byte, error) {
	if e.response == nil {
		return nil, errNoResponse
	}
	return e.response.Body, nil
}

func (e *evaluator) bodyJSON() (any, error) {
	if !e.didParse {
		e.didParse = true
		if e.response == nil {
			e.parsedErr = errNoResponse
		} else {
			e.parsed, e.parsedErr = e.response.BodyJSON()
		}
	}
	return e.parsed, e.parsedErr
}

// json(path) looks a gjson path up in the body. Missing paths yield nil.
func (e *evaluator) json(args ...any) (any, error) {
	path, err := stringArg("json", args, 0)
	if err != nil {
		return nil, err
	}
	body, err := e.body()
	if err != nil {
		return nil, err
	}
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("json(): response body is not valid JSON")
	}
	res := gjson.GetBytes(body, path)
	if !res.Exists() {
		return nil, nil
	}
	return res.Value(), nil
}

// jsonpath(expr) evaluates a JSONPath expression against the body.
func (e *evaluator) jsonPath(args ...any) (any, error) {
	expr, err := stringArg("jsonpath", args, 0)
	if err != nil {
		return nil, err
	}
	data, err := e.bodyJSON()
	if err != nil {
		return nil, fmt.Errorf("jsonpath(): %w", err)
	}
	v, err := jsonpath.Get(expr, data)
	if err != nil {
		return nil, fmt.Errorf("jsonpath(%q): %w", expr, err)
	}
	return v, nil
}

// xpath(expr) returns the inner text of the first node matching expr, or nil.
func (e *evaluator) xpath(args ...any) (any, error) {
	expr, err := stringArg("xpath", args, 0)
	if err != nil {
		return nil, err
	}
	body, err := e.body()
	if err != nil {
		return nil, err
	}
	if ct := e.response.ContentType(); ct != "" && !e.response.IsXML() {
		return nil, fmt.Errorf("xpath(): response content type %q is not XML", ct)
	}
	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("xpath(): response body is not valid XML: %w", err)
	}
	node, err := xmlquery.Query(doc, expr)
	if err != nil {
		return nil, fmt.Errorf("xpath(%q): %w", expr, err)
	}
	if node == nil {
		return nil, nil
	}
	return node.InnerText(), nil
}

func (e *evaluator) header(args ...any) (any, error) {
	name, err := stringArg("header", args, 0)
	if err != nil {
		return nil, err
	}
	if e.response == nil {
		return "", nil
	}
	return e.response.Header(name), nil
}

// schema(s) validates the body against a JSON Schema given inline, as a map
// or as a file path relative to the spec.
func (e *evaluator) schema(args ...any) (any, error) {
	if len(args) < 1 {
		return nil, fmt.Errorf("schema() requires a schema argument")
	}
	body, err := e.body()
	if err != nil {
		return nil, err
	}

	loader, err := e.schemaLoader(args[0])
	if err != nil {
		return nil, err
	}

	result, err := gojsonschema.Validate(loader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return true, nil
	}
	for _, desc := range result.Errors() {
		e.notes = append(e.notes, desc.String())
	}
	return false, nil
}

func (e *evaluator) schemaLoader(arg any) (gojsonschema.JSONLoader, error) {
	s, ok := arg.(string)
	if !ok {
		data, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("schema(): %w", err)
		}
		return gojsonschema.NewBytesLoader(data), nil
	}

	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") {
		return gojsonschema.NewStringLoader(trimmed), nil
	}

	path := trimmed
	if !filepath.IsAbs(path) && e.baseDir != "" {
		path = filepath.Join(e.baseDir, path)
	}
	if err := validatePathWithinBase(path, e.baseDir); err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("schema(): %w", err)
	}
	return gojsonschema.NewReferenceLoader("file://" + filepath.ToSlash(abs)), nil
}

// sql(query, args...) returns the rows of query as a list of maps.
func (e *evaluator) sql(args ...any) (any, error) {
	query, err := stringArg("sql", args, 0)
	if err != nil {
		return nil, err
	}
	if e.db == nil {
		return nil, errNoDatabase
	}
	res, err := e.db.Query(e.ctx, query, args[1:]...)
	if err != nil {
		return nil, err
	}
	return res.RowsAsAny(), nil
}

func stringArg(fn string, args []any, i int) (string, error) {
	if len(args) <= i {
		return "", fmt.Errorf("%s() requires %d argument(s)", fn, i+1)
	}
	s, ok := args[i].(string)
	if !ok {
		return "", fmt.Errorf("%s() argument %d must be a string, got %T", fn, i+1, args[i])
	}
	return s, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}

	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}

	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}

	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}

	return nil
}
