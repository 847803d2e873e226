package output

import (
	"encoding/json"
	"io"
)

// JSONReporter writes the nested report as indented JSON. Headers and params
// keep their declaration order.
type JSONReporter struct{}

func NewJSONReporter() *JSONReporter {
	return &JSONReporter{}
}

func (JSONReporter) Write(w io.Writer, report *Report) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	return encoder.Encode(report)
}
