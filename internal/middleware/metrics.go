package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores application counters
type Metrics struct {
	RequestsTotal    uint64
	RequestsFailed   uint64
	AuditsTotal      uint64
	ExtractionsTotal uint64
	CrossChecksTotal uint64
	ModelTokensUsed  uint64
	StartTime        time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func IncrementRequests() {
	atomic.AddUint64(&globalMetrics.RequestsTotal, 1)
}

func IncrementFailed() {
	atomic.AddUint64(&globalMetrics.RequestsFailed, 1)
}

func IncrementAudits() {
	atomic.AddUint64(&globalMetrics.AuditsTotal, 1)
}

func IncrementExtractions() {
	atomic.AddUint64(&globalMetrics.ExtractionsTotal, 1)
}

func IncrementCrossChecks() {
	atomic.AddUint64(&globalMetrics.CrossChecksTotal, 1)
}

// AddTokensUsed accumulates model token consumption across all calls
func AddTokensUsed(n int) {
	if n > 0 {
		atomic.AddUint64(&globalMetrics.ModelTokensUsed, uint64(n))
	}
}

// MetricsMiddleware counts requests and failures
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		IncrementRequests()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		if wrapped.statusCode >= 500 {
			IncrementFailed()
		}
	})
}

// MetricsHandler exposes the counters as JSON
func MetricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		out := map[string]any{
			"requests_total":    atomic.LoadUint64(&globalMetrics.RequestsTotal),
			"requests_failed":   atomic.LoadUint64(&globalMetrics.RequestsFailed),
			"audits_total":      atomic.LoadUint64(&globalMetrics.AuditsTotal),
			"extractions_total": atomic.LoadUint64(&globalMetrics.ExtractionsTotal),
			"crosschecks_total": atomic.LoadUint64(&globalMetrics.CrossChecksTotal),
			"model_tokens_used": atomic.LoadUint64(&globalMetrics.ModelTokensUsed),
			"uptime_seconds":    int(time.Since(globalMetrics.StartTime).Seconds()),
			"goroutines":        runtime.NumGoroutine(),
			"heap_alloc_bytes":  mem.HeapAlloc,
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(out)
	}
}
