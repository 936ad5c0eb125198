package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"TokenScope/internal/domain/models"
	drepo "TokenScope/internal/domain/repository"
	"TokenScope/pkg/config"
)

// VerdictSink routes completed verdicts to the configured backend and
// broadcasts them to live subscribers.
type VerdictSink struct {
	pub         drepo.VerdictPublisher
	store       drepo.VerdictStorage
	broadcaster drepo.VerdictBroadcaster
	metrics     drepo.Metrics
	backend     string
}

// NewVerdictSink creates a sink. pub, store and broadcaster may be nil when
// the backend does not use them.
func NewVerdictSink(
	pub drepo.VerdictPublisher,
	store drepo.VerdictStorage,
	broadcaster drepo.VerdictBroadcaster,
	metrics drepo.Metrics,
	backend string,
) *VerdictSink {
	return &VerdictSink{
		pub:         pub,
		store:       store,
		broadcaster: broadcaster,
		metrics:     metrics,
		backend:     backend,
	}
}

// Deliver sinks one verdict. For the "both" backend each target is tried and
// the failures are joined.
func (s *VerdictSink) Deliver(ctx context.Context, r *models.AnalysisResult) error {
	if r == nil {
		return fmt.Errorf("verdict is nil")
	}
	start := time.Now()

	var errs []error
	switch s.backend {
	case config.BackendNone, "":
	case config.BackendKafka:
		errs = append(errs, s.publish(ctx, r))
	case config.BackendClickHouse:
		errs = append(errs, s.persist(ctx, r))
	case config.BackendBoth:
		errs = append(errs, s.publish(ctx, r), s.persist(ctx, r))
	default:
		errs = append(errs, fmt.Errorf("unknown backend: %s", s.backend))
	}

	if s.broadcaster != nil {
		s.broadcaster.Broadcast(r)
	}

	if err := errors.Join(errs...); err != nil {
		s.metrics.RecordError("sink")
		return fmt.Errorf("sink verdict: %w", err)
	}
	s.metrics.RecordVerdict(s.backendLabel(), r.TokenID)
	s.metrics.RecordLatency("sink", time.Since(start).Seconds())
	return nil
}

// DeliverBatch sinks verdicts in one round trip per backend.
func (s *VerdictSink) DeliverBatch(ctx context.Context, rs []*models.AnalysisResult) error {
	if len(rs) == 0 {
		return nil
	}
	start := time.Now()

	var errs []error
	switch s.backend {
	case config.BackendNone, "":
	case config.BackendKafka:
		errs = append(errs, s.publishBatch(ctx, rs))
	case config.BackendClickHouse:
		errs = append(errs, s.persistBatch(ctx, rs))
	case config.BackendBoth:
		errs = append(errs, s.publishBatch(ctx, rs), s.persistBatch(ctx, rs))
	default:
		errs = append(errs, fmt.Errorf("unknown backend: %s", s.backend))
	}

	if s.broadcaster != nil {
		for _, r := range rs {
			if r != nil {
				s.broadcaster.Broadcast(r)
			}
		}
	}

	if err := errors.Join(errs...); err != nil {
		s.metrics.RecordError("sink_batch")
		return fmt.Errorf("sink batch: %w", err)
	}
	for _, r := range rs {
		if r != nil {
			s.metrics.RecordVerdict(s.backendLabel(), r.TokenID)
		}
	}
	s.metrics.RecordLatency("sink_batch", time.Since(start).Seconds())
	return nil
}

func (s *VerdictSink) publish(ctx context.Context, r *models.AnalysisResult) error {
	if s.pub == nil {
		return fmt.Errorf("kafka publisher not configured")
	}
	return s.pub.Publish(ctx, r)
}

func (s *VerdictSink) persist(ctx context.Context, r *models.AnalysisResult) error {
	if s.store == nil {
		return fmt.Errorf("clickhouse storage not configured")
	}
	return s.store.Store(ctx, r)
}

func (s *VerdictSink) publishBatch(ctx context.Context, rs []*models.AnalysisResult) error {
	if s.pub == nil {
		return fmt.Errorf("kafka publisher not configured")
	}
	return s.pub.PublishBatch(ctx, rs)
}

func (s *VerdictSink) persistBatch(ctx context.Context, rs []*models.AnalysisResult) error {
	if s.store == nil {
		return fmt.Errorf("clickhouse storage not configured")
	}
	return s.store.StoreBatch(ctx, rs)
}

func (s *VerdictSink) backendLabel() string {
	if s.backend == "" {
		return config.BackendNone
	}
	return s.backend
}

// Close closes underlying resources if available.
func (s *VerdictSink) Close() {
	if s.pub != nil {
		_ = s.pub.Close()
	}
	if s.store != nil {
		_ = s.store.Close()
	}
}
