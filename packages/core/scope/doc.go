// Package scope provides the ordered key/value containers used for headers,
// params and variables of a specification tree.
//
// It provides functionality for:
//   - Keeping mapping keys in declaration order
//   - Shallow parent/child merging where the child wins on collisions
//   - Ordered JSON encoding for request bodies and reports
//   - Converting ordered values into plain Go maps for expression evaluation
package scope
