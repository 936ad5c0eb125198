package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"TokenScope/internal/domain/models"
	domrepo "TokenScope/internal/domain/repository"
	pkgkafka "TokenScope/pkg/kafka"
	"TokenScope/pkg/logger"
)

// AnalysisRequestHandler consumes analysis jobs from Kafka and runs them.
// Full verdicts are sunk by the analysis use case itself.
type AnalysisRequestHandler struct {
	topic    string
	analysis *AnalysisUseCase
	metrics  domrepo.Metrics
	validate *validator.Validate
	log      *logger.Logger
}

func NewAnalysisRequestHandler(topic string, analysis *AnalysisUseCase, metrics domrepo.Metrics, log *logger.Logger) *AnalysisRequestHandler {
	return &AnalysisRequestHandler{
		topic:    topic,
		analysis: analysis,
		metrics:  metrics,
		validate: validator.New(),
		log:      log,
	}
}

func (h *AnalysisRequestHandler) Topic() string { return h.topic }

// message schema: {token_id, timeframe, limit, mode}
func (h *AnalysisRequestHandler) Handle(ctx context.Context, b []byte) error {
	var job models.AnalysisJob
	if err := json.Unmarshal(b, &job); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode job: %w", err)
	}
	if err := defaults.Set(&job); err != nil {
		return fmt.Errorf("job defaults: %w", err)
	}
	if err := h.validate.Struct(job); err != nil {
		h.metrics.RecordError("consumer_validate")
		return fmt.Errorf("invalid job: %w", err)
	}

	start := time.Now()
	p := AnalyzeParams{
		TokenID:   job.TokenID,
		Timeframe: domrepo.NormalizeTimeframe(job.Timeframe),
		Limit:     job.Limit,
	}
	var err error
	switch job.Mode {
	case ModeQuick:
		var res *models.QuickAnalysisResult
		if res, err = h.analysis.Quick(ctx, p); err == nil {
			h.log.Info("quick analysis job completed",
				logger.String("token", res.TokenID),
				logger.String("action", res.Action),
				logger.Float64("score", res.Score))
		}
	default:
		_, err = h.analysis.Analyze(ctx, p)
	}
	h.metrics.RecordLatency("job_"+job.Mode, time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_analysis")
		return fmt.Errorf("analysis job %s/%s: %w", job.TokenID, job.Timeframe, err)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*AnalysisRequestHandler)(nil)
