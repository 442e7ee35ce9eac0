package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(true, time.Millisecond)
	metrics.RecordCacheOperation(false, time.Millisecond)
	metrics.ObserveHTTPRequest("GET", "/api/v1/courses", 200, 4*time.Millisecond)
	metrics.ObserveDBQuery("courses_list", 2*time.Millisecond)
	metrics.RecordRegistration(OutcomeAdmitted)
	metrics.RecordRegistration(OutcomeFull)
	metrics.RecordRegistration(OutcomeClosed)

	snapshot := metrics.Snapshot()
	assert.InDelta(t, 2.0/3.0, snapshot.CacheHitRatio, 0.0001)
	assert.Equal(t, uint64(2), snapshot.CacheHits)
	assert.Equal(t, uint64(1), snapshot.CacheMisses)
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
	assert.InDelta(t, 4.0, snapshot.AverageRequestDurationMs, 0.0001)
	assert.Equal(t, uint64(1), snapshot.DBQueryCount)
	assert.Equal(t, uint64(1), snapshot.RegistrationsAdmitted)
	assert.Equal(t, uint64(2), snapshot.RegistrationsDenied)
	assert.Positive(t, snapshot.Goroutines)

	body := scrapeMetrics(metrics)
	assert.Contains(t, body, `http_requests_total{method="GET",path="/api/v1/courses",status="200"} 1`)
	assert.Contains(t, body, `registration_attempts_total{outcome="full"} 1`)
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.RecordRegistration(OutcomeAdmitted)
		metrics.RecordCertificateRender("issued")
		metrics.ObserveDBQuery("noop", time.Millisecond)
		metrics.RecordCacheOperation(false, time.Millisecond)
	})
	assert.Equal(t, uint64(0), metrics.Snapshot().RegistrationsAdmitted)
}
