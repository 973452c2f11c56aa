// Package audit adapts fallible event recorders to the fire-and-forget
// shared.AuditSink contract. A broken audit store must never fail the
// bulletin mutation that produced the event, so recording errors are logged
// and swallowed, and a circuit breaker stops hammering a store that is down.
package audit

import (
	"context"

	"github.com/ecole-hub/ecole-bulletins/internal/domain/shared"
	"github.com/ecole-hub/ecole-bulletins/pkg/circuitbreaker"
	"github.com/ecole-hub/ecole-bulletins/pkg/logger"
)

// Recorder is the fallible storage primitive behind the sink.
type Recorder interface {
	Record(ctx context.Context, event shared.Event) error
}

// Sink implements shared.AuditSink over a Recorder.
type Sink struct {
	recorder Recorder
	breaker  *circuitbreaker.CircuitBreaker
	log      *logger.Logger
}

// NewSink creates a breaker-protected audit sink.
func NewSink(recorder Recorder, log *logger.Logger) *Sink {
	s := &Sink{
		recorder: recorder,
		log:      log.With(logger.Component("audit")),
	}
	s.breaker = circuitbreaker.AuditTrailBreaker(func(name string, from, to circuitbreaker.State) {
		s.log.Warn("audit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
	return s
}

// Record writes the event through the breaker. Failures are logged, never
// returned.
func (s *Sink) Record(ctx context.Context, event shared.Event) {
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.recorder.Record(ctx, event)
	})
	if err != nil {
		s.log.Error("failed to record audit event",
			logger.String("event_type", string(event.EventType())),
			logger.String("aggregate_id", event.AggregateID()),
			logger.Err(err),
		)
	}
}

// Ensure interfaces are implemented
var _ shared.AuditSink = (*Sink)(nil)
