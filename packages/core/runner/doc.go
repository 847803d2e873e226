// Package runner executes a specification tree and collects the nested
// result tree.
//
// It provides functionality for:
//   - Depth-first traversal: a node's requests in order, then its children
//   - Resolving method, path, headers, params and body right before sending
//   - Applying the inherited pre-send delay
//   - Sending through the retrying HTTP client
//   - Scoring tests and recording each outcome in the results namespace
//
// Requests run strictly one after another so that later requests can
// reference the responses of earlier ones.
package runner
