package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type point struct {
	X int     `json:"x"`
	Y float64 `json:"y"`
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestMemoryCacheRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1704067200, 0)}
	mc := NewMemoryCache(WithMemoryClock(clk.now))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "p", []point{{1, 2.5}}, time.Minute))

	var got []point
	require.NoError(t, mc.Get(ctx, "p", &got))
	assert.Equal(t, []point{{1, 2.5}}, got)

	got[0].X = 99
	var again []point
	require.NoError(t, mc.Get(ctx, "p", &again))
	assert.Equal(t, 1, again[0].X, "cached value must not alias caller data")

	clk.t = clk.t.Add(61 * time.Second)
	err := mc.Get(ctx, "p", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
	ok, _ := mc.Exists(ctx, "p")
	assert.False(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	clk := &clock{t: time.Unix(1704067200, 0)}
	mc := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryClock(clk.now))
	defer mc.Close()

	require.NoError(t, mc.Set(ctx, "a", 1, time.Hour))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "b", 2, time.Hour))
	clk.t = clk.t.Add(time.Second)
	var v int
	require.NoError(t, mc.Get(ctx, "a", &v))
	clk.t = clk.t.Add(time.Second)
	require.NoError(t, mc.Set(ctx, "c", 3, time.Hour))

	assert.Equal(t, 2, mc.Len())
	assert.ErrorIs(t, mc.Get(ctx, "b", &v), ErrCacheMiss)
	require.NoError(t, mc.Get(ctx, "c", &v))
	assert.Equal(t, 3, v)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	defer mc.Close()

	_ = mc.Set(ctx, "series:a:1h", 1, time.Hour)
	_ = mc.Set(ctx, "series:a:4h", 1, time.Hour)
	_ = mc.Set(ctx, "series:b:1h", 1, time.Hour)
	require.NoError(t, mc.DeleteByPattern(ctx, BuildPattern("series:a")))
	assert.Equal(t, 1, mc.Len())
}

func TestRedisCacheGetSet(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	rc := NewRedisCacheWithClient(db, "")

	mock.ExpectSet("tokenscope:k", []byte(`{"x":1,"y":2}`), 5*time.Minute).SetVal("OK")
	require.NoError(t, rc.Set(ctx, "k", point{1, 2}, 5*time.Minute))

	mock.ExpectGet("tokenscope:k").SetVal(`{"x":1,"y":2}`)
	var got point
	require.NoError(t, rc.Get(ctx, "k", &got))
	assert.Equal(t, point{1, 2}, got)

	mock.ExpectGet("tokenscope:missing").RedisNil()
	assert.ErrorIs(t, rc.Get(ctx, "missing", &got), ErrCacheMiss)

	mock.ExpectGet("tokenscope:broken").SetErr(errors.New("conn reset"))
	err := rc.Get(ctx, "broken", &got)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCacheMiss))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLayeredCachePromotesRedisHits(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	lc := NewLayeredCache(NewRedisCacheWithClient(db, "ts"))
	defer lc.mem.Close()

	mock.ExpectGet("ts:k").SetVal(`{"x":7,"y":0.5}`)
	var got point
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, point{7, 0.5}, got)

	// Second read is served by L1; no further Redis expectation is registered.
	var again point
	require.NoError(t, lc.Get(ctx, "k", &again))
	assert.Equal(t, got, again)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateKeyWithParams(t *testing.T) {
	assert.Equal(t, "series:tok:1h:200", GenerateKeyWithParams("series", "tok", "1h", 200))
}
