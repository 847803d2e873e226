// Package loader reads API specification files into ordered values.
//
// YAML (.yaml, .yml) and JSON (.json) files are supported. Mapping key order
// is preserved, YAML anchors and merge keys are expanded and !include tags
// are replaced with the referenced file.
package loader
