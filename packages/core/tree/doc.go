// Package tree builds the immutable specification tree of endpoints and
// requests from a loaded spec mapping.
//
// Endpoint nodes inherit headers, params, vars, path and delay from their
// ancestors. Request nodes belong to exactly one endpoint and carry the raw,
// unresolved values that the runner evaluates right before sending.
package tree
