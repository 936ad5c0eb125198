package repository

import (
	"context"
	"time"

	"TokenScope/internal/domain/models"
)

// VerdictPublisher ships completed verdicts to a message bus.
type VerdictPublisher interface {
	Publish(ctx context.Context, r *models.AnalysisResult) error
	PublishBatch(ctx context.Context, rs []*models.AnalysisResult) error
	Close() error
}

// VerdictStorage persists completed verdicts.
type VerdictStorage interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, r *models.AnalysisResult) error
	StoreBatch(ctx context.Context, rs []*models.AnalysisResult) error
	Query(ctx context.Context, tokenID string, from, to time.Time, limit int) ([]*models.AnalysisResult, error)
	Health(ctx context.Context) error // ping
	Close() error
}

// VerdictBroadcaster fans verdicts out to live subscribers.
type VerdictBroadcaster interface {
	Broadcast(r *models.AnalysisResult)
}

type Metrics interface {
	RecordVerdict(backend, tokenID string)
	RecordError(kind string)
	RecordScore(tokenID string, score float64)
	RecordLatency(op string, seconds float64)
}
