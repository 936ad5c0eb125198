//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TokenScope/pkg/config"
	"TokenScope/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideCacheService,
		ProvideKafkaConsumer,

		// Data sources
		ProvideCandleStore,
		ProvideSnapshotProvider,
		ProvideSeriesProvider,

		// Verdict delivery
		ProvideHub,
		ProvideVerdictStorage,
		ProvideVerdictPublisher,
		ProvideVerdictSink,
		ProvideVerdictPipeline,

		// Use cases
		ProvideAnalysisUseCase,
		ProvideCandlesUseCase,
		ProvideAnalysisRequestHandler,

		// HTTP
		ProvideRateLimiter,
		ProvideAnalysisHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
