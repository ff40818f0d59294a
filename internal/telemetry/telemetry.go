// Package telemetry records upstream request metrics and a durable
// request log. Recording is best-effort: it never errors, panics, or
// blocks the request path.
package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jdcomesta4/fortnite-itemshop-discord-bot-sub000/internal/model"
)

const insertTimeout = 2 * time.Second

// Store persists request log rows.
type Store interface {
	InsertRequest(ctx context.Context, req model.RequestLog) error
}

// Sink implements the telemetry interface consumed by the remote client.
type Sink struct {
	store Store
	log   *slog.Logger

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// New creates a Sink registering its metrics on reg. store may be nil
// to keep metrics only.
func New(reg prometheus.Registerer, store Store, log *slog.Logger) *Sink {
	factory := promauto.With(reg)
	return &Sink{
		store: store,
		log:   log,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Upstream API request attempts by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Upstream API request duration by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// Record reports one request attempt. The durable insert happens off the
// caller's goroutine with its own timeout; failures are logged and dropped.
func (s *Sink) Record(endpoint, method string, duration time.Duration, statusCode int, success bool, errMsg string, requestBytes, responseBytes int64) {
	outcome := "error"
	if success {
		outcome = "success"
	}
	s.requests.WithLabelValues(endpoint, outcome).Inc()
	s.duration.WithLabelValues(endpoint).Observe(duration.Seconds())

	if s.store == nil {
		return
	}

	row := model.RequestLog{
		Endpoint:      endpoint,
		Method:        method,
		DurationMS:    duration.Milliseconds(),
		StatusCode:    statusCode,
		Success:       success,
		ErrorMessage:  errMsg,
		RequestBytes:  requestBytes,
		ResponseBytes: responseBytes,
		CreatedAt:     time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), insertTimeout)
		defer cancel()
		if err := s.store.InsertRequest(ctx, row); err != nil {
			s.log.Debug("drop request log row", "endpoint", endpoint, "error", err)
		}
	}()
}
