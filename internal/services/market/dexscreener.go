package market

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	"TokenScope/pkg/logger"
)

const (
	DefaultDexScreenerURL = "https://api.dexscreener.com"
	DefaultRugcheckURL    = "https://api.rugcheck.xyz"
)

var errNoPairs = errors.New("no trading pairs")

type dexPair struct {
	PairAddress string `json:"pairAddress"`
	DexID       string `json:"dexId"`
	PriceUSD    string `json:"priceUsd"`
	PriceChange struct {
		H24 float64 `json:"h24"`
	} `json:"priceChange"`
	Volume struct {
		H24 float64 `json:"h24"`
	} `json:"volume"`
	Liquidity struct {
		USD float64 `json:"usd"`
	} `json:"liquidity"`
	MarketCap float64 `json:"marketCap"`
	FDV       float64 `json:"fdv"`
	Txns      struct {
		H24 struct {
			Buys  int `json:"buys"`
			Sells int `json:"sells"`
		} `json:"h24"`
	} `json:"txns"`
}

type dexTokensResponse struct {
	Pairs []dexPair `json:"pairs"`
}

type rugcheckSummary struct {
	Score       *float64 `json:"score"`
	LPLockedPct *float64 `json:"lpLockedPct"`
	Rugged      bool     `json:"rugged"`
}

// DexScreenerClient builds market snapshots from the DexScreener token
// endpoint, enriched with the rugcheck summary when a rugcheck URL is set.
type DexScreenerClient struct {
	dex      *HTTPServiceBase
	rugcheck *HTTPServiceBase
	log      *logger.Logger
	now      func() time.Time
}

func NewDexScreenerClient(dex, rugcheck *HTTPServiceBase, log *logger.Logger) *DexScreenerClient {
	if log == nil {
		log = logger.NewNop()
	}
	return &DexScreenerClient{dex: dex, rugcheck: rugcheck, log: log, now: time.Now}
}

// FetchSnapshot returns the snapshot of the token's most liquid pair.
func (c *DexScreenerClient) FetchSnapshot(ctx context.Context, tokenID string) (*models.MarketSnapshot, error) {
	var resp dexTokensResponse
	if err := c.dex.GetJSONWithRetry(ctx, "/latest/dex/tokens/"+url.PathEscape(tokenID), nil, &resp); err != nil {
		return nil, &models.DataUnavailableError{TokenID: tokenID, Err: err}
	}
	pair, ok := primaryPair(resp.Pairs)
	if !ok {
		return nil, &models.DataUnavailableError{TokenID: tokenID, Err: errNoPairs}
	}
	price, err := strconv.ParseFloat(pair.PriceUSD, 64)
	if err != nil || price <= 0 {
		return nil, &models.DataUnavailableError{TokenID: tokenID, Err: fmt.Errorf("invalid priceUsd %q", pair.PriceUSD)}
	}
	mcap := pair.MarketCap
	if mcap == 0 {
		mcap = pair.FDV
	}

	snap := &models.MarketSnapshot{
		TokenID:        tokenID,
		PriceUSD:       price,
		PriceChange24h: pair.PriceChange.H24,
		Volume24h:      pair.Volume.H24,
		LiquidityUSD:   pair.Liquidity.USD,
		MarketCap:      mcap,
		Buys24h:        pair.Txns.H24.Buys,
		Sells24h:       pair.Txns.H24.Sells,
		FetchedAt:      c.now().UTC(),
	}
	if c.rugcheck != nil {
		rc, err := c.fetchRugcheck(ctx, tokenID)
		if err != nil {
			c.log.Warn("rugcheck summary failed", logger.String("token", tokenID), logger.Error(err))
		} else {
			snap.Rugcheck = rc
		}
	}
	return snap, nil
}

func (c *DexScreenerClient) fetchRugcheck(ctx context.Context, tokenID string) (models.Rugcheck, error) {
	var sum rugcheckSummary
	if err := c.rugcheck.GetJSON(ctx, "/v1/tokens/"+url.PathEscape(tokenID)+"/report/summary", nil, &sum); err != nil {
		return models.Rugcheck{}, err
	}
	return models.Rugcheck{Score: sum.Score, Rugged: sum.Rugged, LPLockedPct: sum.LPLockedPct}, nil
}

func primaryPair(pairs []dexPair) (dexPair, bool) {
	if len(pairs) == 0 {
		return dexPair{}, false
	}
	best := pairs[0]
	for _, p := range pairs[1:] {
		if p.Liquidity.USD > best.Liquidity.USD {
			best = p
		}
	}
	return best, true
}

var _ repository.SnapshotProvider = (*DexScreenerClient)(nil)
