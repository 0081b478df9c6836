package shared

import (
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RequestMetrics collects in-process request counters surfaced on /health.
type RequestMetrics struct {
	mutex         sync.RWMutex
	startedAt     time.Time
	totalRequests int64
	totalErrors   int64
	byStatusClass map[int]int64
}

// NewRequestMetrics creates a zeroed metrics collector.
func NewRequestMetrics() *RequestMetrics {
	return &RequestMetrics{
		startedAt:     time.Now(),
		byStatusClass: make(map[int]int64),
	}
}

// Middleware records the final status of every request. Handler errors
// have not been rendered yet when the chain unwinds, so their status is
// resolved from the error itself rather than the response.
func (m *RequestMetrics) Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()
		if err != nil {
			m.Record(StatusOf(err))
			return err
		}
		m.Record(c.Response().StatusCode())
		return nil
	}
}

// Record registers one completed request with its response status.
func (m *RequestMetrics) Record(status int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.totalRequests++
	if status >= 500 {
		m.totalErrors++
	}
	m.byStatusClass[status/100]++
}

// Snapshot returns the counters as a map for JSON rendering.
func (m *RequestMetrics) Snapshot() map[string]interface{} {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	classes := make(map[string]int64, len(m.byStatusClass))
	for class, count := range m.byStatusClass {
		switch class {
		case 2:
			classes["2xx"] = count
		case 3:
			classes["3xx"] = count
		case 4:
			classes["4xx"] = count
		case 5:
			classes["5xx"] = count
		}
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startedAt).Seconds()),
		"total_requests": m.totalRequests,
		"total_errors":   m.totalErrors,
		"status_classes": classes,
	}
}
