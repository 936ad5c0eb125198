package usecase

import (
	"context"
	"fmt"
	"time"

	"TokenScope/internal/domain/models"
	domrepo "TokenScope/internal/domain/repository"
)

const maxCandlesLimit = 5000

// CandlesUseCase provides business logic for retrieving candles.
type CandlesUseCase struct {
	series domrepo.SeriesProvider
	source models.DataSource
}

func NewCandlesUseCase(series domrepo.SeriesProvider) *CandlesUseCase {
	return &CandlesUseCase{series: series, source: models.SourceStore}
}

type GetCandlesParams struct {
	TokenID   string
	Timeframe domrepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	TokenID    string            `json:"token_id"`
	Timeframe  string            `json:"timeframe"`
	DataSource models.DataSource `json:"data_source"`
	From       time.Time         `json:"from"`
	To         time.Time         `json:"to"`
	Count      int               `json:"count"`
	Candles    []models.Candle   `json:"candles"`
}

func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.TokenID == "" {
		return nil, fmt.Errorf("token required")
	}
	if p.Limit <= 0 {
		p.Limit = 200
	}
	if p.Limit > maxCandlesLimit {
		p.Limit = maxCandlesLimit
	}

	var (
		candles []models.Candle
		source  = uc.source
		err     error
	)
	if sp, ok := uc.series.(domrepo.SourcedSeriesProvider); ok {
		candles, source, err = sp.FetchSeriesSourced(ctx, p.TokenID, p.Timeframe, p.Limit)
	} else {
		candles, err = uc.series.FetchSeries(ctx, p.TokenID, p.Timeframe, p.Limit)
	}
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}

	res := &GetCandlesResult{
		TokenID:    p.TokenID,
		Timeframe:  string(p.Timeframe),
		DataSource: source,
		Count:      len(candles),
		Candles:    candles,
	}
	if n := len(candles); n > 0 {
		res.From = candles[0].Time()
		res.To = candles[n-1].Time()
	}
	return res, nil
}
