package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"TokenScope/internal/domain/models"
	domrepo "TokenScope/internal/domain/repository"
	applogger "TokenScope/pkg/logger"
)

var errNoCandles = errors.New("no candles stored")

// CHCandleStore serves and stores OHLCV candles in ClickHouse.
type CHCandleStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHCandleStore(db *sql.DB, database string, l *applogger.Logger) *CHCandleStore {
	if database == "" {
		database = "tokenscope"
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHCandleStore{db: db, table: database + ".candles", l: l}
}

// FetchSeries returns the latest limit candles in ascending time order.
func (s *CHCandleStore) FetchSeries(ctx context.Context, tokenID string, tf domrepo.Timeframe, limit int) ([]models.Candle, error) {
	start := time.Now()
	q := fmt.Sprintf(`
        SELECT toUnixTimestamp64Milli(ts), open, high, low, close, volume
        FROM %s FINAL
        WHERE token_id = ? AND timeframe = ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.table)
	rows, err := s.db.QueryContext(ctx, q, tokenID, string(tf), limit)
	if err != nil {
		s.l.Error("clickhouse fetch_series query error",
			applogger.String("token", tokenID),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", limit),
			applogger.Error(err),
		)
		return nil, &models.DataUnavailableError{TokenID: tokenID, Timeframe: string(tf), Err: err}
	}
	defer rows.Close()

	tmp := make([]models.Candle, 0, limit)
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Timestamp, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			s.l.Error("clickhouse fetch_series scan error",
				applogger.String("token", tokenID),
				applogger.String("tf", string(tf)),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		tmp = append(tmp, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(tmp) == 0 {
		return nil, &models.DataUnavailableError{TokenID: tokenID, Timeframe: string(tf), Err: errNoCandles}
	}
	// reverse to ASC
	for i, j := 0, len(tmp)-1; i < j; i, j = i+1, j-1 {
		tmp[i], tmp[j] = tmp[j], tmp[i]
	}
	s.l.Debug("clickhouse fetch_series ok",
		applogger.String("token", tokenID),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(tmp)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return tmp, nil
}

// StoreCandles inserts candles in multi-row chunks. Duplicate (token,
// timeframe, ts) rows collapse on merge.
func (s *CHCandleStore) StoreCandles(ctx context.Context, tokenID string, tf domrepo.Timeframe, candles []models.Candle) error {
	const chunkSize = 2000
	for start := 0; start < len(candles); start += chunkSize {
		end := start + chunkSize
		if end > len(candles) {
			end = len(candles)
		}
		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*8)
		for _, c := range candles[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args, tokenID, string(tf), c.Time(), c.Open, c.High, c.Low, c.Close, c.Volume)
		}
		q := fmt.Sprintf("INSERT INTO %s (token_id, timeframe, ts, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("store candles: %w", err)
		}
	}
	return nil
}

var (
	_ domrepo.SeriesProvider = (*CHCandleStore)(nil)
	_ domrepo.CandleWriter   = (*CHCandleStore)(nil)
)

var errNoStore = errors.New("no candle store configured")

// EmptyStore is the series provider used when no candle store is configured.
// Every fetch reports the data as unavailable, which lets the synthetic
// fallback take over when it is enabled.
type EmptyStore struct{}

func (EmptyStore) FetchSeries(_ context.Context, tokenID string, tf domrepo.Timeframe, _ int) ([]models.Candle, error) {
	return nil, &models.DataUnavailableError{TokenID: tokenID, Timeframe: string(tf), Err: errNoStore}
}
