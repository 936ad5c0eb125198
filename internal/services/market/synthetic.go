package market

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"math/rand"
	"time"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	"TokenScope/internal/services/indicators"
	"TokenScope/pkg/logger"
	"TokenScope/pkg/util"
)

const baseVolatility = 0.02

// Generator builds a plausible candle series from a market snapshot. The
// output depends only on the token id, the snapshot and the end time.
type Generator struct {
	now func() time.Time
}

func NewGenerator() *Generator { return &Generator{now: time.Now} }

// Volatility is the per-bar relative volatility implied by liquidity and volume.
func Volatility(snap *models.MarketSnapshot) float64 {
	liq := util.Clamp(5e5/math.Max(snap.LiquidityUSD, 1e4), 0.5, 2)
	vol := 1.0
	if snap.Volume24h > 0 {
		vol = util.Clamp(snap.Volume24h/1e5, 0.8, 1.5)
	}
	return baseVolatility * liq * vol
}

func seedFor(tokenID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tokenID))
	return int64(h.Sum64() & math.MaxInt64)
}

// Generate returns limit candles ending at the current bucket of tf. Prices
// drift from the implied start price to the snapshot price and stay within
// [0.5, 2] times the snapshot price.
func (g *Generator) Generate(snap *models.MarketSnapshot, tf repository.Timeframe, limit int) []models.Candle {
	if snap == nil || snap.PriceUSD <= 0 || limit <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seedFor(snap.TokenID)))
	uniform := func(lo, hi float64) float64 { return lo + (hi-lo)*rng.Float64() }

	cur := snap.PriceUSD
	start := cur
	if snap.PriceChange24h > -100 && snap.PriceChange24h != 0 {
		start = cur / (1 + snap.PriceChange24h/100)
	}
	vol := Volatility(snap)
	micro := vol * 0.1
	lo, hi := cur*0.5, cur*2

	step := tf.Duration()
	end := util.AlignToStep(g.now().UTC(), step)
	out := make([]models.Candle, limit)
	for i := 0; i < limit; i++ {
		progress := 1.0
		if limit > 1 {
			progress = float64(i) / float64(limit-1)
		}
		back := float64(limit - 1 - i)
		base := start + (cur-start)*progress
		variation := math.Sin(back/20)*vol*0.3 + math.Sin(back/5)*vol*0.2 + uniform(-vol, vol)*0.5
		mid := util.Clamp(base*(1+variation), lo, hi)

		open := util.Clamp(mid*(1+uniform(-micro, micro)), lo, hi)
		closePx := util.Clamp(mid*(1+uniform(-micro, micro)), lo, hi)
		high := math.Max(open, closePx) * (1 + uniform(0, 2*micro))
		low := math.Min(open, closePx) * (1 - uniform(0, 2*micro))

		volume := uniform(1000, 10000)
		if snap.Volume24h > 0 {
			volume = snap.Volume24h / 24 * uniform(0.3, 2.5)
		}
		out[i] = models.Candle{
			Timestamp: end.Add(-time.Duration(limit-1-i) * step).UnixMilli(),
			Open:      indicators.RoundPrice(open),
			High:      indicators.RoundPrice(high),
			Low:       indicators.RoundPrice(low),
			Close:     indicators.RoundPrice(closePx),
			Volume:    math.Round(volume*100) / 100,
		}
	}
	return out
}

// Fallback serves series from next and, when next has no data and fallback
// is enabled, synthesizes one from the token snapshot.
type Fallback struct {
	next      repository.SeriesProvider
	snapshots repository.SnapshotProvider
	gen       *Generator
	enabled   bool
	source    models.DataSource
	log       *logger.Logger
}

func NewFallback(next repository.SeriesProvider, snapshots repository.SnapshotProvider, enabled bool, source models.DataSource, log *logger.Logger) *Fallback {
	if log == nil {
		log = logger.NewNop()
	}
	return &Fallback{next: next, snapshots: snapshots, gen: NewGenerator(), enabled: enabled, source: source, log: log}
}

func (f *Fallback) FetchSeries(ctx context.Context, tokenID string, tf repository.Timeframe, limit int) ([]models.Candle, error) {
	series, _, err := f.FetchSeriesSourced(ctx, tokenID, tf, limit)
	return series, err
}

func (f *Fallback) FetchSeriesSourced(ctx context.Context, tokenID string, tf repository.Timeframe, limit int) ([]models.Candle, models.DataSource, error) {
	series, err := f.next.FetchSeries(ctx, tokenID, tf, limit)
	if err == nil {
		return series, f.source, nil
	}
	if !f.enabled || f.snapshots == nil || !errors.Is(err, models.ErrDataUnavailable) {
		return nil, "", err
	}
	snap, serr := f.snapshots.FetchSnapshot(ctx, tokenID)
	if serr != nil {
		f.log.Warn("synthetic fallback snapshot failed", logger.String("token", tokenID), logger.Error(serr))
		return nil, "", err
	}
	synth := f.gen.Generate(snap, tf, limit)
	if len(synth) == 0 {
		return nil, "", err
	}
	f.log.Info("serving synthetic series",
		logger.String("token", tokenID),
		logger.String("timeframe", string(tf)),
		logger.Int("candles", len(synth)))
	return synth, models.SourceSynthetic, nil
}

var _ repository.SourcedSeriesProvider = (*Fallback)(nil)
