//go:build wireinject
// +build wireinject

package di

import (
	"QuietSpike/pkg/config"
	"QuietSpike/pkg/server"

	"github.com/google/wire"
)

var coreSet = wire.NewSet(
	// Logging and metrics
	ProvideLogger,
	ProvideMetrics,

	// Infrastructure clients
	ProvideStore,
	ProvideKafkaProducer,
	ProvideKafkaPublisher,
	ProvideBarPublisher,
	ProvideSignalPublisher,
	ProvideCache,
	ProvideMarketData,
	ProvideUniverse,
	ProvideUniverseSource,

	// Use cases
	ProvideSeriesCache,
	ProvideSeriesProvider,
	ProvideSeriesInvalidator,
	ProvideScreeningPipeline,
	ProvideScreenUseCase,
	ProvideBarProcessor,
	ProvideBarSync,
)

// InitializeApp wires the long-running service.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideLogPublisher,
		ProvideKafkaConsumer,
		ProvideKafkaBarsHandler,
		ProvideScheduler,
		ProvideHTTPHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeServices wires the one-shot CLI commands.
func InitializeServices(cfg *config.Config) (*Services, func(), error) {
	wire.Build(coreSet, ProvideServices)
	return nil, nil, nil
}
