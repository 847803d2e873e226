package output

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/flosch/pongo2/v6"
)

//go:embed templates/*.tpl
var templateFS embed.FS

// TemplateReporter renders a report with a pongo2 template.
type TemplateReporter struct {
	name string
	tpl  *pongo2.Template
}

// NewEmbeddedTemplateReporter loads one of the built-in templates.
func NewEmbeddedTemplateReporter(name string) (*TemplateReporter, error) {
	data, err := templateFS.ReadFile("templates/" + name)
	if err != nil {
		return nil, fmt.Errorf("unknown built-in template %q: %w", name, err)
	}
	return NewTemplateReporter(name, string(data))
}

// NewTemplateFileReporter loads a user template from disk.
func NewTemplateFileReporter(path string) (*TemplateReporter, error) {
	tpl, err := pongo2.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template %q: %w", path, err)
	}
	return &TemplateReporter{name: path, tpl: tpl}, nil
}

func NewTemplateReporter(name, source string) (*TemplateReporter, error) {
	tpl, err := pongo2.FromString(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template %q: %w", name, err)
	}
	return &TemplateReporter{name: name, tpl: tpl}, nil
}

func (t *TemplateReporter) Write(w io.Writer, report *Report) error {
	if err := t.tpl.ExecuteWriter(templateContext(report), w); err != nil {
		return fmt.Errorf("template %q render failed: %w", t.name, err)
	}
	return nil
}

func templateContext(report *Report) pongo2.Context {
	return pongo2.Context{
		"report":       report,
		"summary":      report.Summary,
		"endpoints":    report.Endpoints,
		"generated_at": report.GeneratedAt.Format(time.RFC3339),
		"masked":       Masked,

		"toJSON": func(v any) string {
			data, err := json.MarshalIndent(v, "", "  ")
			if err != nil {
				return fmt.Sprint(v)
			}
			return string(data)
		},
	}
}
