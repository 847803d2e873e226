// Package stats summarises a run: request and test counts plus latency
// percentiles backed by an HDR histogram.
package stats
