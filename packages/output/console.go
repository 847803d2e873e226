package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

const maxBodyLen = 500

// truncate shortens long values for terminal display
func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}

type ConsoleReporter struct {
	verbose bool
	green   func(a ...any) string
	red     func(a ...any) string
	yellow  func(a ...any) string
	cyan    func(a ...any) string
	bold    func(a ...any) string
	faint   func(a ...any) string
}

func NewConsoleReporter(noColor, verbose bool) *ConsoleReporter {
	paint := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &ConsoleReporter{
		verbose: verbose,
		green:   paint(color.FgGreen),
		red:     paint(color.FgRed),
		yellow:  paint(color.FgYellow),
		cyan:    paint(color.FgCyan),
		bold:    paint(color.Bold),
		faint:   paint(color.Faint),
	}
}

func (c *ConsoleReporter) Write(w io.Writer, report *Report) error {
	if report.File != "" {
		fmt.Fprintf(w, "\n%s\n", c.bold("Running: "+report.File))
	}
	fmt.Fprintln(w)

	for _, e := range report.Endpoints {
		c.writeEndpoint(w, e)
	}

	c.writeSummary(w, report)
	return nil
}

func (c *ConsoleReporter) writeEndpoint(w io.Writer, e *EndpointReport) {
	indent := strings.Repeat("  ", e.Depth)
	if len(e.Requests) == 0 && len(e.Children) == 0 {
		return
	}
	fmt.Fprintf(w, "%s%s %s\n", indent, c.bold(e.Name), c.faint(e.Path))

	for _, r := range e.Requests {
		c.writeRequest(w, indent+"  ", r)
	}
}

func (c *ConsoleReporter) writeRequest(w io.Writer, indent string, r *RequestReport) {
	symbol := c.green("✓")
	if !r.NoFailure {
		symbol = c.red("✗")
	}

	line := fmt.Sprintf("%s%s %s", indent, symbol, r.Name)
	if r.Method != "" {
		line += " " + c.cyan(r.Method+" "+r.URL)
	}
	if r.Response != nil {
		line += fmt.Sprintf(" %s %s", c.status(r.Response.StatusCode), c.cyan(fmt.Sprintf("(%.0fms)", r.Response.ElapsedMs)))
		if r.Response.Attempts > 1 {
			line += c.yellow(fmt.Sprintf(" [%d attempts]", r.Response.Attempts))
		}
	}
	fmt.Fprintln(w, line)

	if r.Error != "" {
		label := "error"
		if !r.Sent {
			label = "not sent"
		}
		fmt.Fprintf(w, "%s  %s %s\n", indent, c.red(label+":"), r.Error)
	}

	for _, t := range r.Tests {
		if t.Passed() {
			if c.verbose {
				fmt.Fprintf(w, "%s  %s %s\n", indent, c.green("✓"), t.Name)
			}
			continue
		}
		fmt.Fprintf(w, "%s  %s %s\n", indent, c.red("→"), t.Name)
		if t.Expression != "" {
			fmt.Fprintf(w, "%s      %s\n", indent, c.faint(t.Expression))
		}
		fmt.Fprintf(w, "%s      %s\n", indent, t.Failure)
	}

	if !c.verbose {
		return
	}
	for _, h := range r.HeaderList {
		fmt.Fprintf(w, "%s    > %s: %s\n", indent, h.Key, h.Value)
	}
	for _, p := range r.ParamList {
		fmt.Fprintf(w, "%s    ? %s=%s\n", indent, p.Key, p.Value)
	}
	if r.BodyText != "" {
		fmt.Fprintf(w, "%s    > %s\n", indent, truncate(r.BodyText, maxBodyLen))
	}
	if r.Response != nil && r.Response.BodyText != "" {
		fmt.Fprintf(w, "%s    < %s\n", indent, truncate(r.Response.BodyText, maxBodyLen))
	}
}

func (c *ConsoleReporter) writeSummary(w io.Writer, report *Report) {
	s := report.Summary
	fmt.Fprintln(w)

	fmt.Fprintf(w, "Requests: ")
	if s.Passed > 0 {
		fmt.Fprintf(w, "%s, ", c.green(fmt.Sprintf("%d passed", s.Passed)))
	}
	if s.Failed > 0 {
		fmt.Fprintf(w, "%s, ", c.red(fmt.Sprintf("%d failed", s.Failed)))
	}
	if s.Errored > 0 {
		fmt.Fprintf(w, "%s, ", c.red(fmt.Sprintf("%d errored", s.Errored)))
	}
	if s.NotSent > 0 {
		fmt.Fprintf(w, "%s, ", c.yellow(fmt.Sprintf("%d not sent", s.NotSent)))
	}
	fmt.Fprintf(w, "%d total\n", s.Requests)

	fmt.Fprintf(w, "Tests:    %d passed, %d failed\n", s.TestsPassed, s.TestsFailed)
	if s.Latency.Count > 0 {
		fmt.Fprintf(w, "Latency:  p50 %.1fms, p95 %.1fms, p99 %.1fms, max %.1fms\n",
			s.Latency.P50, s.Latency.P95, s.Latency.P99, s.Latency.Max)
	}
	fmt.Fprintf(w, "Time:     %.0fms\n\n", report.DurationMs)
}

func (c *ConsoleReporter) status(code int) string {
	text := fmt.Sprintf("%d", code)
	switch {
	case code >= 500:
		return c.red(text)
	case code >= 400:
		return c.yellow(text)
	default:
		return c.green(text)
	}
}
