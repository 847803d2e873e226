package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"

	"github.com/abdul-hamid-achik/apiscan/packages/core/runner"
)

const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

// Summary is the aggregate outcome of a run.
type Summary struct {
	Requests       int           `json:"requests"`
	Passed         int           `json:"passed"`
	Failed         int           `json:"failed"`
	Errored        int           `json:"errored"`
	NotSent        int           `json:"not_sent"`
	TestsPassed    int           `json:"tests_passed"`
	TestsFailed    int           `json:"tests_failed"`
	Duration       time.Duration `json:"duration"`
	Latency        Latency       `json:"latency"`
	AllUnreachable bool          `json:"-"`
}

// Latency holds response time percentiles in milliseconds.
type Latency struct {
	Count int64   `json:"count"`
	Min   float64 `json:"min_ms"`
	Mean  float64 `json:"mean_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
	Max   float64 `json:"max_ms"`
}

// Recorder accumulates request outcomes. It is safe for concurrent use so a
// runner observer can feed it while a reporter reads it.
type Recorder struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
	summary   Summary
}

func NewRecorder() *Recorder {
	return &Recorder{
		// 1us to 60s, 3 significant digits
		histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, 3),
	}
}

// Record adds one request result.
func (r *Recorder) Record(res *runner.RequestResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summary.Requests++
	if res.NoFailure {
		r.summary.Passed++
	} else {
		r.summary.Failed++
	}
	switch {
	case !res.Sent:
		r.summary.NotSent++
	case res.IsTransportError():
		r.summary.Errored++
	}

	for _, t := range res.TestsResults {
		if t.Passed() {
			r.summary.TestsPassed++
		} else {
			r.summary.TestsFailed++
		}
	}

	if res.Response != nil {
		latencyUs := res.Response.Duration.Microseconds()
		if latencyUs < minLatencyUs {
			latencyUs = minLatencyUs
		}
		if latencyUs > maxLatencyUs {
			latencyUs = maxLatencyUs
		}
		_ = r.histogram.RecordValue(latencyUs)
	}
}

// Summary returns a snapshot of the recorded outcomes.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.summary
	s.AllUnreachable = s.Requests > 0 && s.Errored == s.Requests
	if count := r.histogram.TotalCount(); count > 0 {
		s.Latency = Latency{
			Count: count,
			Min:   usToMs(r.histogram.Min()),
			Mean:  r.histogram.Mean() / 1000,
			P50:   usToMs(r.histogram.ValueAtQuantile(50)),
			P95:   usToMs(r.histogram.ValueAtQuantile(95)),
			P99:   usToMs(r.histogram.ValueAtQuantile(99)),
			Max:   usToMs(r.histogram.Max()),
		}
	}
	return s
}

// Summarize computes the summary of a finished run.
func Summarize(result *runner.RunResult) Summary {
	rec := NewRecorder()
	for _, req := range result.AllRequests() {
		rec.Record(req)
	}
	s := rec.Summary()
	s.Duration = result.Duration
	return s
}

func usToMs(us int64) float64 {
	return float64(us) / 1000
}
