package tree

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/apiscan/packages/core/scope"
)

const (
	RootKey     = "api"
	RootName    = "root"
	endpointKey = "endpoints"
	requestKey  = "requests"
)

var (
	endpointKeys = []string{"name", "path", "headers", "params", "vars", "delay", "requests", "endpoints"}
	requestKeys  = []string{"name", "method", "path", "headers", "params", "body", "delay", "tests"}
	testKeys     = []string{"name", "assert"}
)

// Build validates the loaded spec mapping and constructs the endpoint tree.
// It never evaluates templates.
func Build(spec *scope.Values) (*EndpointNode, error) {
	raw, ok := spec.Get(RootKey)
	if !ok {
		return nil, &MissingMandatoryKeyError{Scope: "root", Key: RootKey}
	}
	if raw == nil {
		raw = scope.New()
	}
	m, ok := raw.(*scope.Values)
	if !ok {
		return nil, &InvalidValueError{Scope: "root", Key: RootKey, Value: raw, Reason: "expected a mapping"}
	}
	return buildEndpoint(m, nil)
}

func buildEndpoint(m *scope.Values, parent *EndpointNode) (*EndpointNode, error) {
	where := "root endpoint"
	if parent != nil {
		where = fmt.Sprintf("endpoint under %q", parent.QualifiedName())
	}
	if err := checkKeys(m, endpointKeys, where); err != nil {
		return nil, err
	}

	name, hasName, err := scalarString(m, "name", where)
	if err != nil {
		return nil, err
	}
	if !hasName {
		if parent != nil {
			return nil, &MissingMandatoryKeyError{Scope: where, Key: "name"}
		}
		name = RootName
	}

	node := &EndpointNode{Name: name, Parent: parent}
	where = fmt.Sprintf("endpoint %q", node.QualifiedName())

	if node.Path, _, err = scalarString(m, "path", where); err != nil {
		return nil, err
	}
	if node.Headers, err = mapping(m, "headers", where); err != nil {
		return nil, err
	}
	if node.Params, err = mapping(m, "params", where); err != nil {
		return nil, err
	}
	if node.Vars, err = mapping(m, "vars", where); err != nil {
		return nil, err
	}
	if node.Delay, node.hasDelay, err = delay(m, where); err != nil {
		return nil, err
	}

	requests, err := sequence(m, requestKey, where)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(requests))
	for i, item := range requests {
		rm, ok := item.(*scope.Values)
		if !ok {
			return nil, &InvalidValueError{Scope: where, Key: fmt.Sprintf("%s[%d]", requestKey, i), Value: item, Reason: "expected a mapping"}
		}
		req, err := buildRequest(rm, node)
		if err != nil {
			return nil, err
		}
		if seen[req.Name] {
			return nil, &InvalidValueError{Scope: where, Key: "name", Value: req.Name, Reason: "duplicate request name"}
		}
		seen[req.Name] = true
		node.Requests = append(node.Requests, req)
	}

	children, err := sequence(m, endpointKey, where)
	if err != nil {
		return nil, err
	}
	for i, item := range children {
		cm, ok := item.(*scope.Values)
		if !ok {
			return nil, &InvalidValueError{Scope: where, Key: fmt.Sprintf("%s[%d]", endpointKey, i), Value: item, Reason: "expected a mapping"}
		}
		child, err := buildEndpoint(cm, node)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}

	return node, nil
}

func buildRequest(m *scope.Values, endpoint *EndpointNode) (*RequestNode, error) {
	where := fmt.Sprintf("request in endpoint %q", endpoint.QualifiedName())
	if err := checkKeys(m, requestKeys, where); err != nil {
		return nil, err
	}

	name, ok, err := scalarString(m, "name", where)
	if err != nil {
		return nil, err
	}
	if !ok || name == "" {
		return nil, &MissingMandatoryKeyError{Scope: where, Key: "name"}
	}

	req := &RequestNode{Name: name, Endpoint: endpoint}
	where = fmt.Sprintf("request %q", req.QualifiedName())

	method, ok, err := scalarString(m, "method", where)
	if err != nil {
		return nil, err
	}
	if !ok || method == "" {
		method = DefaultMethod
	}
	if !HasPlaceholder(method) && !IsValidMethod(method) {
		return nil, &InvalidValueError{Scope: where, Key: "method", Value: method,
			Reason: "expected one of " + strings.Join(ValidMethods, ", ")}
	}
	req.Method = method

	if req.Path, _, err = scalarString(m, "path", where); err != nil {
		return nil, err
	}
	if req.Headers, err = mapping(m, "headers", where); err != nil {
		return nil, err
	}
	if req.Params, err = mapping(m, "params", where); err != nil {
		return nil, err
	}
	req.Body, _ = m.Get("body")
	if req.Delay, req.HasDelay, err = delay(m, where); err != nil {
		return nil, err
	}

	tests, err := sequence(m, "tests", where)
	if err != nil {
		return nil, err
	}
	for i, item := range tests {
		tm, ok := item.(*scope.Values)
		if !ok {
			return nil, &InvalidValueError{Scope: where, Key: fmt.Sprintf("tests[%d]", i), Value: item, Reason: "expected a mapping"}
		}
		test, err := buildTest(tm, fmt.Sprintf("test #%d of %s", i+1, where))
		if err != nil {
			return nil, err
		}
		req.Tests = append(req.Tests, test)
	}

	return req, nil
}

func buildTest(m *scope.Values, where string) (Test, error) {
	if err := checkKeys(m, testKeys, where); err != nil {
		return Test{}, err
	}
	name, ok, err := scalarString(m, "name", where)
	if err != nil {
		return Test{}, err
	}
	if !ok || name == "" {
		return Test{}, &MissingMandatoryKeyError{Scope: where, Key: "name"}
	}
	assert, ok, err := scalarString(m, "assert", where)
	if err != nil {
		return Test{}, err
	}
	if !ok {
		return Test{}, &MissingMandatoryKeyError{Scope: where, Key: "assert"}
	}
	return Test{Name: name, Assert: assert}, nil
}

// IsValidMethod reports whether method is a supported HTTP method, ignoring case.
func IsValidMethod(method string) bool {
	return slices.Contains(ValidMethods, strings.ToUpper(method))
}

// HasPlaceholder reports whether s contains a template placeholder.
func HasPlaceholder(s string) bool {
	return strings.Contains(s, "${")
}

func checkKeys(m *scope.Values, allowed []string, where string) error {
	for _, key := range m.Keys() {
		if !slices.Contains(allowed, key) {
			return &InvalidKeyError{Scope: where, Key: key, Allowed: allowed}
		}
	}
	return nil
}

func scalarString(m *scope.Values, key, where string) (string, bool, error) {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return "", false, nil
	}
	switch v := raw.(type) {
	case string:
		return v, true, nil
	case bool, int, int64, uint64, float64:
		return fmt.Sprint(v), true, nil
	default:
		return "", false, &InvalidValueError{Scope: where, Key: key, Value: raw, Reason: "expected a scalar"}
	}
}

func mapping(m *scope.Values, key, where string) (*scope.Values, error) {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.(*scope.Values)
	if !ok {
		return nil, &InvalidValueError{Scope: where, Key: key, Value: raw, Reason: "expected a mapping"}
	}
	return v, nil
}

func sequence(m *scope.Values, key, where string) ([]any, error) {
	raw, ok := m.Get(key)
	if !ok || raw == nil {
		return nil, nil
	}
	v, ok := raw.([]any)
	if !ok {
		return nil, &InvalidValueError{Scope: where, Key: key, Value: raw, Reason: "expected a list"}
	}
	return v, nil
}

// maxDelayMs is the largest delay representable as a time.Duration.
const maxDelayMs = float64(math.MaxInt64 / int64(time.Millisecond))

func delay(m *scope.Values, where string) (time.Duration, bool, error) {
	raw, ok := m.Get("delay")
	if !ok || raw == nil {
		return 0, false, nil
	}
	var ms float64
	switch v := raw.(type) {
	case int:
		ms = float64(v)
	case int64:
		ms = float64(v)
	case uint64:
		ms = float64(v)
	case float64:
		ms = v
	default:
		return 0, false, &InvalidValueError{Scope: where, Key: "delay", Value: raw, Reason: "expected a number of milliseconds"}
	}
	if ms < 0 || math.IsNaN(ms) || math.IsInf(ms, 0) {
		return 0, false, &InvalidValueError{Scope: where, Key: "delay", Value: raw, Reason: "must be a non-negative number of milliseconds"}
	}
	if ms > maxDelayMs {
		return 0, false, &InvalidValueError{Scope: where, Key: "delay", Value: raw, Reason: fmt.Sprintf("must not exceed %d milliseconds", int64(maxDelayMs))}
	}
	return time.Duration(ms * float64(time.Millisecond)), true, nil
}
