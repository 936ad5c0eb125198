package di

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"

	"TokenScope/internal/domain/models"
	"TokenScope/internal/domain/repository"
	"TokenScope/internal/handler/api"
	mid "TokenScope/internal/middleware"
	internalrepo "TokenScope/internal/repository"
	icache "TokenScope/internal/service/cache"
	svcmetrics "TokenScope/internal/service/metrics"
	"TokenScope/internal/service/ratelimit"
	"TokenScope/internal/service/stream"
	"TokenScope/internal/services/indicators"
	"TokenScope/internal/services/market"
	"TokenScope/internal/services/patterns"
	"TokenScope/internal/services/predictor"
	"TokenScope/internal/usecase"
	pkgcache "TokenScope/pkg/cache"
	pkgch "TokenScope/pkg/clickhouse"
	"TokenScope/pkg/config"
	xhttp "TokenScope/pkg/http"
	pkgkafka "TokenScope/pkg/kafka"
	"TokenScope/pkg/logger"
	"TokenScope/pkg/metrics"
	"TokenScope/pkg/server"
)

// ProvideLogger builds the application logger from config.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder and registers the
// pipeline collectors.
func ProvideMetrics() repository.Metrics {
	svcmetrics.Register()
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithEndpoint(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.Database, cfg.ClickHouse.UseHTTP),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 5*time.Minute),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithQuerySettings(cfg.ClickHouse.MaxExecutionTime, cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if !cfg.ClickHouse.InitSchema {
		return client, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.Schema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when verdicts do not go to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.UsesKafka() {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID("tokenscope-"+cfg.Environment),
		pkgkafka.WithDelivery(cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts, cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithBatching(cfg.Kafka.Compression, cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideCacheService builds the series cache backend named by cache.type.
func ProvideCacheService(cfg *config.Config) (pkgcache.Service, error) {
	if cfg.Cache.Type == config.CacheMemory {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize)), nil
	}
	rc, err := pkgcache.NewRedisCache(context.Background(),
		pkgcache.WithRedisConn(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, 2, 30*time.Second),
		pkgcache.WithRedisPrefix(cfg.Cache.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	if cfg.Cache.Type == config.CacheRedis {
		return rc, nil
	}
	return pkgcache.NewLayeredCache(rc,
		pkgcache.WithL1(cfg.Cache.MemoryMaxSize, cfg.Cache.L1TTL),
	), nil
}

// ProvideCandleStore returns the ClickHouse candle store, or an always-empty
// store when ClickHouse is disabled.
func ProvideCandleStore(ch *pkgch.Client, cfg *config.Config, l *logger.Logger) repository.SeriesProvider {
	if ch == nil {
		return internalrepo.EmptyStore{}
	}
	return internalrepo.NewCHCandleStore(ch.DB(), cfg.ClickHouse.Database, l)
}

// ProvideSnapshotProvider creates the rate-limited, circuit-broken DexScreener client.
func ProvideSnapshotProvider(cfg *config.Config, l *logger.Logger) repository.SnapshotProvider {
	opts := []market.BaseOption{
		market.WithRate(cfg.Market.RPS, cfg.Market.Burst),
		market.WithRetry(cfg.Market.Retries, 100*time.Millisecond),
		market.WithBreaker(cfg.Market.BreakerFailures, cfg.Market.BreakerOpen),
	}
	dex := market.NewHTTPServiceBase("dexscreener", cfg.Market.DexScreenerURL, cfg.Market.Timeout, opts...)
	var rug *market.HTTPServiceBase
	if cfg.Market.RugcheckURL != "" {
		rug = market.NewHTTPServiceBase("rugcheck", cfg.Market.RugcheckURL, cfg.Market.Timeout, opts...)
	}
	return market.NewDexScreenerClient(dex, rug, l)
}

// ProvideSeriesProvider layers store, cache and synthetic fallback:
// fallback(cache(store)). Synthetic series are never cached.
func ProvideSeriesProvider(
	store repository.SeriesProvider,
	cacheSvc pkgcache.Service,
	snapshots repository.SnapshotProvider,
	cfg *config.Config,
	l *logger.Logger,
) *market.Fallback {
	cached := icache.NewSeriesCache(store, cacheSvc, cfg.Cache.TTL, l)
	return market.NewFallback(cached, snapshots, cfg.Analysis.SyntheticFallback, models.SourceStore, l)
}

// ProvideHub creates the websocket verdict hub, or nil when streaming is disabled.
func ProvideHub(cfg *config.Config, l *logger.Logger) *stream.Hub {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.NewHub(cfg.Stream.BufferSize, cfg.Stream.PingInterval, cfg.Stream.WriteTimeout, cfg.Server.CORSOrigins, l)
}

// ProvideVerdictStorage creates ClickHouse verdict storage, or nil without ClickHouse.
func ProvideVerdictStorage(ch *pkgch.Client, cfg *config.Config) (repository.VerdictStorage, error) {
	if ch == nil {
		return nil, nil
	}
	storage := internalrepo.NewClickHouseVerdictStorage(ch.DB(), cfg.ClickHouse.Database)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ClickHouse.DialTimeout)
	defer cancel()
	if err := storage.Init(ctx); err != nil {
		return nil, fmt.Errorf("verdict storage: %w", err)
	}
	return storage, nil
}

// ProvideVerdictPublisher creates the Kafka verdict publisher, or nil without a producer.
func ProvideVerdictPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.VerdictPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaVerdictPublisher(producer, cfg.Kafka.Topic)
}

// ProvideVerdictSink routes verdicts per backend.type and to stream subscribers.
func ProvideVerdictSink(
	pub repository.VerdictPublisher,
	store repository.VerdictStorage,
	hub *stream.Hub,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.VerdictSink {
	var bc repository.VerdictBroadcaster
	if hub != nil {
		bc = hub
	}
	return usecase.NewVerdictSink(pub, store, bc, m, cfg.Backend.Type)
}

// ProvideVerdictPipeline puts the retry buffer in front of the sink.
func ProvideVerdictPipeline(sink *usecase.VerdictSink, m repository.Metrics, cfg *config.Config, l *logger.Logger) *mid.VerdictPipeline {
	return mid.NewVerdictPipeline(sink, m, l,
		mid.WithBufferSize(cfg.Backend.BatchSize*20),
		mid.WithBatch(cfg.Backend.BatchSize, cfg.Backend.BatchTimeout),
	)
}

// AnalysisConfig maps the analysis section onto the use case tunables.
func AnalysisConfig(cfg *config.Config) usecase.AnalysisConfig {
	tfs := make([]repository.Timeframe, 0, len(cfg.Analysis.Timeframes))
	for _, s := range cfg.Analysis.Timeframes {
		tfs = append(tfs, repository.NormalizeTimeframe(s))
	}
	return usecase.AnalysisConfig{
		Timeout:          cfg.Analysis.Timeout,
		TimeframeTimeout: cfg.Analysis.TimeframeTimeout,
		Timeframes:       tfs,
		MTFLimit:         cfg.Analysis.MTFLimit,
		MTFMinScoring:    cfg.Analysis.MTFMinScoring,
		MaxIterations:    cfg.Analysis.MaxIterations,
		Tolerance:        cfg.Analysis.Tolerance,
		Source:           models.SourceStore,
	}
}

// ProvideAnalysisUseCase creates the analysis use case over the layered series provider.
func ProvideAnalysisUseCase(
	cfg *config.Config,
	series *market.Fallback,
	snapshots repository.SnapshotProvider,
	pipeline *mid.VerdictPipeline,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.AnalysisUseCase {
	return usecase.NewAnalysisUseCase(
		AnalysisConfig(cfg),
		series,
		snapshots,
		indicators.NewEngine(),
		predictor.NewOLS(),
		patterns.NewDetector(),
		pipeline,
		m,
		l,
	)
}

func ProvideCandlesUseCase(series *market.Fallback) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(series)
}

// ProvideRateLimiter creates the per-client limiter, or nil when rps is 0.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if cfg.Server.RateLimit.RPS <= 0 {
		return nil
	}
	return ratelimit.New(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
}

func ProvideAnalysisHandler(
	l *logger.Logger,
	analysis *usecase.AnalysisUseCase,
	candles *usecase.CandlesUseCase,
	verdicts repository.VerdictStorage,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
) *api.AnalysisHandler {
	return api.NewAnalysisHandler(l, analysis, candles, verdicts, hub, limiter)
}

// ProvideHTTPServer creates the echo server with the API routes. Verdict
// storage, when present, backs the /healthz probe.
func ProvideHTTPServer(cfg *config.Config, h *api.AnalysisHandler, verdicts repository.VerdictStorage, l *logger.Logger) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
	}
	if verdicts != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", verdicts.Health))
	}
	return xhttp.NewServer(h, l, opts...)
}

// ProvideKafkaConsumer creates the analysis-request consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.StartOffset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(ConsumerHooks(l))
	return consumer, nil
}

// ConsumerHooks tags each job with its trace id (minted when the message has
// none) and start time, and logs failures with both. The trace id follows
// the job into the published verdict headers.
func ConsumerHooks(l *logger.Logger) pkgkafka.ConsumerHook {
	trace := pkgkafka.HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			id := pkgkafka.ExtractTraceID(km)
			if id == "" {
				id = uuid.NewString()
			}
			ctx = pkgkafka.WithTraceID(ctx, id)
			return pkgkafka.WithStartTime(ctx, time.Now()), km, data, nil
		},
		Err: func(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
			fields := []logger.Field{
				logger.String("topic", topic),
				logger.Int64("offset", km.Offset),
				logger.Error(err),
			}
			if id := pkgkafka.TraceID(ctx); id != "" {
				fields = append(fields, logger.String("trace_id", id))
			}
			if start, ok := pkgkafka.StartTime(ctx); ok {
				fields = append(fields, logger.Duration("elapsed", time.Since(start)))
			}
			l.Warn("analysis job failed", fields...)
		},
	}
	return pkgkafka.NewHookChain(trace)
}

func ProvideAnalysisRequestHandler(cfg *config.Config, analysis *usecase.AnalysisUseCase, m repository.Metrics, l *logger.Logger) *usecase.AnalysisRequestHandler {
	return usecase.NewAnalysisRequestHandler(cfg.Kafka.Consumer.Topic, analysis, m, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh *usecase.AnalysisRequestHandler,
	pipeline *mid.VerdictPipeline,
	hub *stream.Hub,
	limiter *ratelimit.Limiter,
	sink *usecase.VerdictSink,
	cacheSvc pkgcache.Service,
	ch *pkgch.Client,
) *server.App {
	opts := []server.Option{
		server.WithPipeline(pipeline),
		server.WithLimiter(limiter),
		server.WithCleanup("verdict sink", func() error { sink.Close(); return nil }),
		server.WithCleanup("cache", cacheSvc.Close),
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if hub != nil {
		opts = append(opts, server.WithHub(hub))
	}
	if ch != nil {
		opts = append(opts, server.WithCleanup("clickhouse", ch.Close))
	}
	return server.New(cfg, l, httpServer, opts...)
}
