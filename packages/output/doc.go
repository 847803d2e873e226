// Package output provides reporters for displaying run results.
//
// Supported output formats:
//   - Console: Human-readable colored tree output
//   - JSON: Machine-readable nested JSON output
//   - JUnit: JUnit XML format for CI integration
//   - Markdown and HTML: embedded pongo2 templates
//   - Template: any user supplied pongo2 template
//
// Every reporter renders a Report, built once per run so that sensitive
// values are masked in the same way for all formats.
package output
