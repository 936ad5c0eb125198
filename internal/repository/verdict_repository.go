package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	pkgkafka "TokenScope/pkg/kafka"
)

const verdictColumns = "id, token_id, timeframe, generated_at, data_source, overall_signal, overall_score, confidence, action, position_size, regime, payload"

// ClickHouseVerdictStorage keeps every verdict as indexed columns plus the
// full JSON payload.
type ClickHouseVerdictStorage struct {
	db    *sql.DB
	table string
}

func NewClickHouseVerdictStorage(db *sql.DB, database string) *ClickHouseVerdictStorage {
	if database == "" {
		database = "tokenscope"
	}
	return &ClickHouseVerdictStorage{db: db, table: database + ".verdicts"}
}

func (s *ClickHouseVerdictStorage) Init(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func verdictArgs(r *models.AnalysisResult) ([]interface{}, error) {
	payload, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal verdict: %w", err)
	}
	regime := string(models.RegimeUnknown)
	if r.Regime != nil {
		regime = string(r.Regime.CurrentRegime)
	}
	return []interface{}{
		r.ID,
		r.TokenID,
		r.Timeframe,
		r.GeneratedAt,
		string(r.DataSource),
		string(r.OverallSignal),
		r.OverallScore,
		r.Confidence,
		r.Recommendation.Action,
		r.Recommendation.PositionSize,
		regime,
		string(payload),
	}, nil
}

func (s *ClickHouseVerdictStorage) Store(ctx context.Context, r *models.AnalysisResult) error {
	return s.StoreBatch(ctx, []*models.AnalysisResult{r})
}

func (s *ClickHouseVerdictStorage) StoreBatch(ctx context.Context, rs []*models.AnalysisResult) error {
	values := make([]string, 0, len(rs))
	args := make([]interface{}, 0, len(rs)*12)
	for _, r := range rs {
		if r == nil || r.TokenID == "" {
			continue
		}
		a, err := verdictArgs(r)
		if err != nil {
			return err
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, a...)
	}
	if len(values) == 0 {
		return nil
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, verdictColumns, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store verdicts: %w", err)
	}
	return nil
}

// Query returns the newest verdicts for a token within [from, to].
func (s *ClickHouseVerdictStorage) Query(ctx context.Context, tokenID string, from, to time.Time, limit int) ([]*models.AnalysisResult, error) {
	q := fmt.Sprintf("SELECT payload FROM %s WHERE token_id = ? AND generated_at >= ? AND generated_at <= ? ORDER BY generated_at DESC LIMIT ?", s.table)
	rows, err := s.db.QueryContext(ctx, q, tokenID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query verdicts: %w", err)
	}
	defer rows.Close()

	var out []*models.AnalysisResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan verdict: %w", err)
		}
		var r models.AnalysisResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode verdict: %w", err)
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

func (s *ClickHouseVerdictStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseVerdictStorage) Close() error {
	return nil // Managed by pkg
}

// KafkaVerdictPublisher publishes verdicts keyed by token id so one token's
// verdicts stay ordered within a partition.
type KafkaVerdictPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaVerdictPublisher(producer *pkgkafka.Producer, topic string) *KafkaVerdictPublisher {
	return &KafkaVerdictPublisher{producer: producer, topic: topic}
}

func (p *KafkaVerdictPublisher) Publish(ctx context.Context, r *models.AnalysisResult) error {
	return p.producer.Publish(ctx, p.topic, []byte(r.TokenID), r)
}

func (p *KafkaVerdictPublisher) PublishBatch(ctx context.Context, rs []*models.AnalysisResult) error {
	if len(rs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(rs))
	for i, r := range rs {
		msgs[i] = pkgkafka.Message{Key: []byte(r.TokenID), Value: r}
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaVerdictPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var (
	_ repository.VerdictStorage   = (*ClickHouseVerdictStorage)(nil)
	_ repository.VerdictPublisher = (*KafkaVerdictPublisher)(nil)
)
