package monitoring

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics holds application metrics
type Metrics struct {
	RequestCount        int64
	ErrorCount          int64
	CacheHits           int64
	CacheMisses         int64
	EvaluationCount     int64
	EvaluationAborts    int64
	ProjectsSkipped     int64
	AverageResponseTime int64 // in nanoseconds
	StartTime           time.Time

	ResponseTimes      []time.Duration
	ResponseTimesMutex sync.RWMutex

	RequestCountByStatus map[int]int64
	StatusMutex          sync.RWMutex

	// Tool call outcomes keyed by source tool name
	ToolCalls        map[string]int64
	ToolCallOutcomes map[string]map[ToolOutcome]int64
	ToolMutex        sync.RWMutex

	CircuitBreakerOpens  int64
	CircuitBreakerCloses int64

	RateLimitIPBlocks      int64
	RateLimitRedisErrors   int64
	RateLimitFallbackCount int64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		StartTime:            time.Now(),
		ResponseTimes:        make([]time.Duration, 0, 1000),
		RequestCountByStatus: make(map[int]int64),
		ToolCalls:            make(map[string]int64),
		ToolCallOutcomes:     make(map[string]map[ToolOutcome]int64),
	}
}

// IncrementRequest increments the request count
func (m *Metrics) IncrementRequest() {
	atomic.AddInt64(&m.RequestCount, 1)
}

// IncrementError increments the error count
func (m *Metrics) IncrementError() {
	atomic.AddInt64(&m.ErrorCount, 1)
}

// IncrementCacheHit increments cache hit count
func (m *Metrics) IncrementCacheHit() {
	atomic.AddInt64(&m.CacheHits, 1)
}

// IncrementCacheMiss increments cache miss count
func (m *Metrics) IncrementCacheMiss() {
	atomic.AddInt64(&m.CacheMisses, 1)
}

// IncrementEvaluation counts one finished evaluation batch
func (m *Metrics) IncrementEvaluation() {
	atomic.AddInt64(&m.EvaluationCount, 1)
}

// IncrementEvaluationAbort counts one evaluation aborted by the overall deadline
func (m *Metrics) IncrementEvaluationAbort() {
	atomic.AddInt64(&m.EvaluationAborts, 1)
}

// IncrementProjectSkipped counts one project skipped with a warning
func (m *Metrics) IncrementProjectSkipped() {
	atomic.AddInt64(&m.ProjectsSkipped, 1)
}

// RecordToolCall records one tool-group invocation and its outcome
func (m *Metrics) RecordToolCall(sourceName string, outcome ToolOutcome) {
	m.ToolMutex.Lock()
	defer m.ToolMutex.Unlock()

	m.ToolCalls[sourceName]++
	if m.ToolCallOutcomes[sourceName] == nil {
		m.ToolCallOutcomes[sourceName] = make(map[ToolOutcome]int64)
	}
	m.ToolCallOutcomes[sourceName][outcome]++
}

// IncrementCircuitBreakerOpen counts circuit breaker state transitions to open
func (m *Metrics) IncrementCircuitBreakerOpen() {
	atomic.AddInt64(&m.CircuitBreakerOpens, 1)
}

// IncrementCircuitBreakerClose counts circuit breaker state transitions to closed
func (m *Metrics) IncrementCircuitBreakerClose() {
	atomic.AddInt64(&m.CircuitBreakerCloses, 1)
}

// IncrementRateLimitIPBlock counts requests rejected by the per-IP limiter
func (m *Metrics) IncrementRateLimitIPBlock() {
	atomic.AddInt64(&m.RateLimitIPBlocks, 1)
}

// IncrementRateLimitRedisError counts failed Redis rate limit checks
func (m *Metrics) IncrementRateLimitRedisError() {
	atomic.AddInt64(&m.RateLimitRedisErrors, 1)
}

// IncrementRateLimitFallback counts rate limit checks served by the in-memory fallback
func (m *Metrics) IncrementRateLimitFallback() {
	atomic.AddInt64(&m.RateLimitFallbackCount, 1)
}

// RecordResponseTime records a response time for percentile calculations
func (m *Metrics) RecordResponseTime(duration time.Duration) {
	m.ResponseTimesMutex.Lock()
	defer m.ResponseTimesMutex.Unlock()

	m.ResponseTimes = append(m.ResponseTimes, duration)

	// Keep a bounded window so percentiles stay cheap
	if len(m.ResponseTimes) > 1000 {
		m.ResponseTimes = m.ResponseTimes[len(m.ResponseTimes)-1000:]
	}

	atomic.StoreInt64(&m.AverageResponseTime, int64(m.averageResponseTimeLocked()))
}

func (m *Metrics) averageResponseTimeLocked() time.Duration {
	if len(m.ResponseTimes) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range m.ResponseTimes {
		total += d
	}
	return total / time.Duration(len(m.ResponseTimes))
}

// RecordRequestByStatus records a request by its HTTP status code
func (m *Metrics) RecordRequestByStatus(statusCode int) {
	m.StatusMutex.Lock()
	defer m.StatusMutex.Unlock()

	m.RequestCountByStatus[statusCode]++
}

// Percentile returns the given response-time percentile (0-100)
func (m *Metrics) Percentile(p float64) time.Duration {
	m.ResponseTimesMutex.RLock()
	defer m.ResponseTimesMutex.RUnlock()

	if len(m.ResponseTimes) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(m.ResponseTimes))
	copy(sorted, m.ResponseTimes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)-1) * p / 100)
	return sorted[idx]
}

// GetStats returns a snapshot of all metrics
func (m *Metrics) GetStats() map[string]interface{} {
	m.StatusMutex.RLock()
	byStatus := make(map[int]int64, len(m.RequestCountByStatus))
	for code, count := range m.RequestCountByStatus {
		byStatus[code] = count
	}
	m.StatusMutex.RUnlock()

	m.ToolMutex.RLock()
	toolCalls := make(map[string]int64, len(m.ToolCalls))
	for name, count := range m.ToolCalls {
		toolCalls[name] = count
	}
	toolOutcomes := make(map[string]map[string]int64, len(m.ToolCallOutcomes))
	for name, outcomes := range m.ToolCallOutcomes {
		toolOutcomes[name] = make(map[string]int64, len(outcomes))
		for outcome, count := range outcomes {
			toolOutcomes[name][string(outcome)] = count
		}
	}
	m.ToolMutex.RUnlock()

	return map[string]interface{}{
		"request_count":            atomic.LoadInt64(&m.RequestCount),
		"error_count":              atomic.LoadInt64(&m.ErrorCount),
		"cache_hits":               atomic.LoadInt64(&m.CacheHits),
		"cache_misses":             atomic.LoadInt64(&m.CacheMisses),
		"evaluation_count":         atomic.LoadInt64(&m.EvaluationCount),
		"evaluation_aborts":        atomic.LoadInt64(&m.EvaluationAborts),
		"projects_skipped":         atomic.LoadInt64(&m.ProjectsSkipped),
		"avg_response_time_ms":     time.Duration(atomic.LoadInt64(&m.AverageResponseTime)).Milliseconds(),
		"p95_response_time_ms":     m.Percentile(95).Milliseconds(),
		"p99_response_time_ms":     m.Percentile(99).Milliseconds(),
		"requests_by_status":       byStatus,
		"tool_calls":               toolCalls,
		"tool_call_outcomes":       toolOutcomes,
		"circuit_breaker_opens":    atomic.LoadInt64(&m.CircuitBreakerOpens),
		"circuit_breaker_closes":   atomic.LoadInt64(&m.CircuitBreakerCloses),
		"rate_limit_ip_blocks":     atomic.LoadInt64(&m.RateLimitIPBlocks),
		"rate_limit_redis_errors":  atomic.LoadInt64(&m.RateLimitRedisErrors),
		"rate_limit_fallbacks":     atomic.LoadInt64(&m.RateLimitFallbackCount),
		"uptime_seconds":           time.Since(m.StartTime).Seconds(),
	}
}
