package resilience

import (
	"sort"
	"sync"
	"time"
)

// Health is a coarse verdict derived from success and retry rates.
type Health string

// Health verdicts.
const (
	Healthy   = Health("healthy")
	Degraded  = Health("degraded")
	Unhealthy = Health("unhealthy")
)

// OperationMetrics are cumulative counters of an Executor.
type OperationMetrics struct {
	TotalOperations      int64
	SuccessfulOperations int64
	FailedOperations     int64

	// RetriedOperations is a number of operations that needed at least one retry.
	RetriedOperations int64

	// TotalRetries is a number of retries of all operations.
	TotalRetries int64

	TotalDuration time.Duration
}

// SuccessRate is a fraction of successful operations, 1 if there were none.
func (m OperationMetrics) SuccessRate() float64 {
	if m.TotalOperations == 0 {
		return 1
	}

	return float64(m.SuccessfulOperations) / float64(m.TotalOperations)
}

// RetryRate is a fraction of operations that were retried.
func (m OperationMetrics) RetryRate() float64 {
	if m.TotalOperations == 0 {
		return 0
	}

	return float64(m.RetriedOperations) / float64(m.TotalOperations)
}

// AverageDuration is a mean duration of an operation.
func (m OperationMetrics) AverageDuration() time.Duration {
	if m.TotalOperations == 0 {
		return 0
	}

	return m.TotalDuration / time.Duration(m.TotalOperations)
}

// Health returns verdict by success and retry rates.
func (m OperationMetrics) Health() Health {
	sr, rr := m.SuccessRate(), m.RetryRate()

	switch {
	case sr < 0.8 || rr > 0.5:
		return Unhealthy
	case sr < 0.95 || rr > 0.2:
		return Degraded
	default:
		return Healthy
	}
}

// ErrorFrequency counts occurrences of an error category.
type ErrorFrequency struct {
	Count    int64
	LastSeen time.Time

	// Operations is a sorted list of distinct operation names that produced the error.
	Operations []string
}

type errorFrequency struct {
	count    int64
	lastSeen time.Time
	ops      map[string]struct{}
}

// OperationStats describes durations of a named operation.
type OperationStats struct {
	Count    int64
	Failures int64
	Min      time.Duration
	Max      time.Duration
	Average  time.Duration

	// Percentiles are calculated over recent samples.
	P50 time.Duration
	P95 time.Duration
	P99 time.Duration
}

type opStats struct {
	mu       sync.Mutex
	count    int64
	failures int64
	total    time.Duration
	min, max time.Duration
	samples  []time.Duration
	next     int
}

func (s *opStats) add(d time.Duration, failed bool, sampleSize int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count == 0 || d < s.min {
		s.min = d
	}

	if d > s.max {
		s.max = d
	}

	s.count++
	s.total += d

	if failed {
		s.failures++
	}

	if len(s.samples) < sampleSize {
		s.samples = append(s.samples, d)

		return
	}

	s.samples[s.next] = d
	s.next = (s.next + 1) % len(s.samples)
}

func (s *opStats) snapshot() OperationStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := OperationStats{Count: s.count, Failures: s.failures, Min: s.min, Max: s.max}

	if s.count > 0 {
		res.Average = s.total / time.Duration(s.count)
	}

	sorted := make([]time.Duration, len(s.samples))
	copy(sorted, s.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	res.P50 = percentile(sorted, 0.50)
	res.P95 = percentile(sorted, 0.95)
	res.P99 = percentile(sorted, 0.99)

	return res
}

// percentile uses nearest rank on a sorted slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	i := int(float64(len(sorted))*p+0.5) - 1
	if i < 0 {
		i = 0
	}

	if i >= len(sorted) {
		i = len(sorted) - 1
	}

	return sorted[i]
}

// OperationMetrics returns cumulative counters.
func (e *Executor) OperationMetrics() OperationMetrics {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.metrics
}

// Health returns verdict by current metrics.
func (e *Executor) Health() Health {
	return e.OperationMetrics().Health()
}

// ErrorFrequency returns occurrences by error category.
func (e *Executor) ErrorFrequency() map[Category]ErrorFrequency {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := make(map[Category]ErrorFrequency, len(e.errors))

	for c, f := range e.errors {
		ops := make([]string, 0, len(f.ops))
		for op := range f.ops {
			ops = append(ops, op)
		}

		sort.Strings(ops)

		res[c] = ErrorFrequency{Count: f.count, LastSeen: f.lastSeen, Operations: ops}
	}

	return res
}

// OperationStats returns duration statistics of a named operation.
func (e *Executor) OperationStats(name string) (OperationStats, bool) {
	e.mu.Lock()
	ops := e.ops
	e.mu.Unlock()

	s, ok := ops.Load(name)
	if !ok {
		return OperationStats{}, false
	}

	return s.(*opStats).snapshot(), true
}

func (e *Executor) recordError(c Category, name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	f, ok := e.errors[c]
	if !ok {
		f = &errorFrequency{ops: make(map[string]struct{})}
		e.errors[c] = f
	}

	f.count++
	f.lastSeen = time.Now()
	f.ops[name] = struct{}{}
}

func (e *Executor) record(name string, success bool, retries int, d time.Duration) {
	e.mu.Lock()

	e.metrics.TotalOperations++
	e.metrics.TotalDuration += d
	e.metrics.TotalRetries += int64(retries)

	if success {
		e.metrics.SuccessfulOperations++
	} else {
		e.metrics.FailedOperations++
	}

	if retries > 0 {
		e.metrics.RetriedOperations++
	}

	ops := e.ops
	sampleSize := e.config.SampleSize
	e.mu.Unlock()

	s, _ := ops.LoadOrStore(name, &opStats{})
	s.(*opStats).add(d, !success, sampleSize)
}
