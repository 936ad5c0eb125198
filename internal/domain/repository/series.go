package repository

import (
	"context"

	"TokenScope/internal/domain/models"
)

// SeriesProvider returns the latest candles for a token in ascending time order.
// Implementations fail with *models.DataUnavailableError when no data exists.
type SeriesProvider interface {
	FetchSeries(ctx context.Context, tokenID string, tf Timeframe, limit int) ([]models.Candle, error)
}

// SnapshotProvider returns the current market snapshot for a token.
type SnapshotProvider interface {
	FetchSnapshot(ctx context.Context, tokenID string) (*models.MarketSnapshot, error)
}

// CandleWriter persists candles, used to seed the store.
type CandleWriter interface {
	StoreCandles(ctx context.Context, tokenID string, tf Timeframe, candles []models.Candle) error
}

// SourcedSeriesProvider also reports where the returned candles came from.
type SourcedSeriesProvider interface {
	SeriesProvider
	FetchSeriesSourced(ctx context.Context, tokenID string, tf Timeframe, limit int) ([]models.Candle, models.DataSource, error)
}
