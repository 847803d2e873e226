package results

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/abdul-hamid-achik/apiscan/packages/http"
)

// Entry is what a later request can see of an executed one.
type Entry struct {
	Response     *http.Response
	Error        error
	TestsResults []TestResult
	NoFailure    bool
}

// TestResult is the outcome of one test of an executed request.
type TestResult struct {
	Name    string
	Status  string
	Failure string
}

// Store is the run-scoped results namespace. Writes happen once per request
// after it completes; reads may happen concurrently.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*Entry
	order   []string
	logger  *slog.Logger
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{
		entries: make(map[string]*Entry),
		logger:  logger,
	}
}

// Put records the outcome of a request. A later request with the same name
// replaces the earlier entry.
func (s *Store) Put(name string, entry *Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		s.logger.Warn("request name already recorded, overwriting previous result", "request", name)
	} else {
		s.order = append(s.order, name)
	}
	s.entries[name] = entry
}

func (s *Store) Get(name string) (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

func (s *Store) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Names returns the recorded request names in first execution order.
func (s *Store) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// View returns a snapshot keyed by request name in the shape expressions
// navigate: results.<name>.status_code and so on.
func (s *Store) View() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.entries))
	for name, e := range s.entries {
		out[name] = e.view()
	}
	return out
}

func (e *Entry) view() map[string]any {
	v := ResponseView(e.Response, e.Error)
	response := make(map[string]any, len(v))
	for k, val := range v {
		response[k] = val
	}
	v["response"] = response

	tests := make([]any, len(e.TestsResults))
	for i, t := range e.TestsResults {
		tests[i] = map[string]any{"name": t.Name, "status": t.Status, "failure": t.Failure}
	}
	v["tests_results"] = tests
	v["no_failure"] = e.NoFailure
	return v
}

// ResponseView exposes a response as plain values. A nil response yields
// the error surrogate with status_code 0.
func ResponseView(resp *http.Response, err error) map[string]any {
	v := map[string]any{
		"status_code": 0,
		"status":      "",
		"body":        nil,
		"text":        "",
		"headers":     map[string]any{},
		"elapsed":     0.0,
		"attempts":    0,
		"error":       "",
	}
	if err != nil {
		v["error"] = err.Error()
	}
	if resp == nil {
		return v
	}

	headers := make(map[string]any, len(resp.Headers))
	for k, val := range resp.Headers {
		headers[k] = val
		headers[strings.ToLower(k)] = val
	}

	v["status_code"] = resp.StatusCode
	v["status"] = resp.Status
	v["body"] = ParseBody(resp)
	v["text"] = resp.BodyString()
	v["headers"] = headers
	v["elapsed"] = resp.ElapsedMs()
	v["attempts"] = resp.Attempts
	return v
}

// ParseBody decodes a JSON body. A body is decoded when the content type
// is JSON or missing; anything else is returned as text.
func ParseBody(resp *http.Response) any {
	if resp == nil || len(resp.Body) == 0 {
		return nil
	}
	if resp.IsJSON() || resp.ContentType() == "" {
		if parsed, err := resp.BodyJSON(); err == nil {
			return parsed
		}
	}
	return resp.BodyString()
}
