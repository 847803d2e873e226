// Package assertions evaluates the named boolean tests declared on a request
// against its response.
//
// Tests are expr-lang expressions. Besides the request's vars and the results
// of earlier requests they can use:
//   - status_code, status, body, text, headers, elapsed, error, response
//   - json(path): gjson path lookup on the body
//   - jsonpath(expr): JSONPath query on the body
//   - xpath(expr): XPath lookup on an XML body
//   - header(name): case-insensitive header lookup
//   - schema(schema): JSON Schema validation from inline JSON or a file
//   - sql(query, args...): rows from the configured database
//
// A test that errors or does not evaluate to a boolean is recorded as failed.
package assertions
