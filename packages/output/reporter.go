package output

import (
	"fmt"
	"io"
	"sort"
)

// Reporter renders a report to w.
type Reporter interface {
	Write(w io.Writer, report *Report) error
}

const (
	FormatConsole  = "console"
	FormatJSON     = "json"
	FormatJUnit    = "junit"
	FormatMarkdown = "markdown"
	FormatHTML     = "html"
)

type options struct {
	noColor  bool
	verbose  bool
	template string
}

type Option func(*options)

func WithNoColor(nc bool) Option {
	return func(o *options) {
		o.noColor = nc
	}
}

// WithVerbose makes the console reporter print headers and bodies.
func WithVerbose(v bool) Option {
	return func(o *options) {
		o.verbose = v
	}
}

// WithTemplate renders the report with the pongo2 template at path,
// whatever the format name.
func WithTemplate(path string) Option {
	return func(o *options) {
		o.template = path
	}
}

// New returns the reporter for a format name.
func New(format string, opts ...Option) (Reporter, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	if o.template != "" {
		return NewTemplateFileReporter(o.template)
	}

	switch format {
	case FormatConsole, "":
		return NewConsoleReporter(o.noColor, o.verbose), nil
	case FormatJSON:
		return NewJSONReporter(), nil
	case FormatJUnit:
		return NewJUnitReporter(), nil
	case FormatMarkdown, "md":
		return NewEmbeddedTemplateReporter("report.md.tpl")
	case FormatHTML:
		return NewEmbeddedTemplateReporter("report.html.tpl")
	default:
		return nil, fmt.Errorf("unknown reporter %q, available: %v", format, Formats())
	}
}

// Formats lists the built-in format names.
func Formats() []string {
	names := []string{FormatConsole, FormatJSON, FormatJUnit, FormatMarkdown, FormatHTML}
	sort.Strings(names)
	return names
}
