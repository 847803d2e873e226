// Package results holds the outcomes of the requests executed during a run
// so that later requests can reference them by name.
package results
