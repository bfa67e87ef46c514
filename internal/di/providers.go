package di

import (
	"context"
	"fmt"
	"time"

	"QuietSpike/internal/domain/repository"
	"QuietSpike/internal/handler/api"
	internalrepo "QuietSpike/internal/repository"
	"QuietSpike/internal/scheduler"
	"QuietSpike/internal/service/marketdata"
	"QuietSpike/internal/service/universe"
	"QuietSpike/internal/usecase"
	"QuietSpike/pkg/cache"
	pkgch "QuietSpike/pkg/clickhouse"
	"QuietSpike/pkg/config"
	xhttp "QuietSpike/pkg/http"
	pkgkafka "QuietSpike/pkg/kafka"
	"QuietSpike/pkg/logger"
	"QuietSpike/pkg/metrics"
	"QuietSpike/pkg/server"
)

// Services is what the one-shot CLI commands need.
type Services struct {
	Log      *logger.Logger
	Universe *universe.FileSource
	Market   repository.MarketData
	Sync     *usecase.BarSync
	Screen   *usecase.ScreenUseCase
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideStore opens the configured bar and signal store and ensures its schema.
func ProvideStore(cfg *config.Config, log *logger.Logger) (repository.Store, func(), error) {
	var store repository.Store
	switch cfg.Store.Type {
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithHost(cfg.ClickHouse.Host),
			pkgch.WithPort(cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithMaxConnections(cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		store = internalrepo.NewClickHouseStore(client)
	default:
		s, err := internalrepo.OpenSQLStore(cfg.Store.Type, cfg.Store.DSN,
			cfg.Store.MaxOpenConns, cfg.Store.MaxIdleConns, cfg.Store.ConnMaxLifetime)
		if err != nil {
			return nil, nil, err
		}
		store = s
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("%s schema: %w", cfg.Store.Type, err)
	}
	log.Info("store ready", logger.String("type", cfg.Store.Type))

	return store, func() {
		if err := store.Close(); err != nil {
			log.Warn("store close error", logger.Error(err))
		}
	}, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideKafkaPublisher wraps the producer, or returns nil without one.
func ProvideKafkaPublisher(producer *pkgkafka.Producer, cfg *config.Config) *internalrepo.KafkaPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.Bars, cfg.Kafka.Topics.Signals)
}

// ProvideBarPublisher exposes the publisher as a BarPublisher, keeping nil untyped.
func ProvideBarPublisher(pub *internalrepo.KafkaPublisher) repository.BarPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

// ProvideSignalPublisher exposes the publisher as a SignalPublisher, keeping nil untyped.
func ProvideSignalPublisher(pub *internalrepo.KafkaPublisher) repository.SignalPublisher {
	if pub == nil {
		return nil
	}
	return pub
}

// ProvideLogPublisher feeds the log collector, or nil without Kafka.
func ProvideLogPublisher(pub *internalrepo.KafkaPublisher) logger.Publisher {
	if pub == nil {
		return nil
	}
	return pub
}

// ProvideCache creates Redis behind an in-process L1 when enabled, otherwise memory only.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	if !cfg.Redis.Enabled {
		mem := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.MemoryEntries))
		return mem, func() { _ = mem.Close() }, nil
	}
	redisCache, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	layered := cache.NewLayeredCache(redisCache, cfg.Redis.MemoryEntries, time.Minute)
	return layered, func() { _ = layered.Close() }, nil
}

// ProvideMarketData creates the market-data API client.
func ProvideMarketData(cfg *config.Config, log *logger.Logger) (repository.MarketData, error) {
	return marketdata.New(marketdata.Config{
		BaseURL:   cfg.MarketData.BaseURL,
		Timeout:   cfg.MarketData.Timeout,
		RateLimit: cfg.MarketData.RateLimit,
		Burst:     cfg.MarketData.Burst,
	}, nil, log)
}

// ProvideUniverse opens the universe CSV.
func ProvideUniverse(cfg *config.Config) *universe.FileSource {
	return universe.NewFileSource(cfg.Universe.Path)
}

// ProvideUniverseSource exposes the universe file as a UniverseSource.
func ProvideUniverseSource(src *universe.FileSource) repository.UniverseSource {
	return src
}

// ProvideSeriesCache reads series from the store or the API, behind the cache.
func ProvideSeriesCache(cfg *config.Config, store repository.Store, md repository.MarketData, c cache.Service) *usecase.CachedSeriesProvider {
	var p repository.SeriesProvider
	if cfg.Screener.Source == "fetch" {
		p = usecase.NewFetchSeriesProvider(md)
	} else {
		p = usecase.NewStoreSeriesProvider(store)
	}
	return usecase.NewCachedSeriesProvider(p, c, cfg.Redis.TTL)
}

// ProvideSeriesProvider exposes the cached provider to the screener.
func ProvideSeriesProvider(p *usecase.CachedSeriesProvider) repository.SeriesProvider {
	return p
}

// ProvideSeriesInvalidator lets bar writers drop stale cached series.
func ProvideSeriesInvalidator(p *usecase.CachedSeriesProvider) repository.SeriesInvalidator {
	return p
}

// ProvideScreeningPipeline creates the screening pipeline.
func ProvideScreeningPipeline(provider repository.SeriesProvider, m repository.Metrics, log *logger.Logger, cfg *config.Config) *usecase.ScreeningPipeline {
	return usecase.NewScreeningPipeline(provider, m, log, usecase.PipelineConfig{
		Workers:       cfg.Screener.Workers,
		RetryAttempts: cfg.Screener.RetryAttempts,
		BackoffMin:    cfg.Screener.BackoffMin,
		BackoffMax:    cfg.Screener.BackoffMax,
		SymbolTimeout: cfg.Screener.SymbolTimeout,
	})
}

// ProvideScreenUseCase creates the screen use case.
func ProvideScreenUseCase(
	pipeline *usecase.ScreeningPipeline,
	provider repository.SeriesProvider,
	source repository.UniverseSource,
	store repository.Store,
	pub repository.SignalPublisher,
	cfg *config.Config,
	log *logger.Logger,
) *usecase.ScreenUseCase {
	return usecase.NewScreenUseCase(pipeline, provider, source, store, pub, cfg.Screener.Detector, cfg.Screener.HistoryDays, log)
}

// ProvideBarProcessor creates the bar router.
func ProvideBarProcessor(pub repository.BarPublisher, store repository.Store, series repository.SeriesInvalidator, m repository.Metrics, cfg *config.Config) *usecase.BarProcessor {
	return usecase.NewBarProcessor(pub, store, series, m, cfg.Backend.Type, cfg.Backend.BatchSize)
}

// ProvideBarSync creates the bar sync use case.
func ProvideBarSync(md repository.MarketData, processor *usecase.BarProcessor, m repository.Metrics, log *logger.Logger, cfg *config.Config) *usecase.BarSync {
	return usecase.NewBarSync(md, processor, m, log, usecase.SyncConfig{
		Workers:       cfg.Sync.Workers,
		RetryAttempts: cfg.Screener.RetryAttempts,
		BackoffMin:    cfg.Screener.BackoffMin,
		BackoffMax:    cfg.Screener.BackoffMax,
	})
}

// ProvideKafkaConsumer creates a consumer when bars flow through Kafka.
func ProvideKafkaConsumer(cfg *config.Config, log *logger.Logger) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(log,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaBarsHandler creates the handler for the bars topic.
func ProvideKafkaBarsHandler(store repository.Store, series repository.SeriesInvalidator, m repository.Metrics, cfg *config.Config) pkgkafka.MessageHandler {
	return usecase.NewKafkaBarsHandler(cfg.Kafka.Topics.Bars, store, series, m)
}

// ProvideScheduler creates the daily cron job, or nil when disabled.
func ProvideScheduler(
	cfg *config.Config,
	c cache.Service,
	log *logger.Logger,
	source repository.UniverseSource,
	sync *usecase.BarSync,
	screen *usecase.ScreenUseCase,
) (server.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	s, err := scheduler.New(context.Background(), cfg.Scheduler.Timezone, c, log)
	if err != nil {
		return nil, err
	}
	task := scheduler.DailyTask(source, sync, screen, cfg.Sync.LookbackDays, log)
	if err := s.Register(scheduler.DailyTaskName, cfg.Scheduler.Spec, task); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideHTTPHandler creates the screening API routes.
func ProvideHTTPHandler(log *logger.Logger, screen *usecase.ScreenUseCase) xhttp.Handler {
	return api.NewScreenEchoHandler(log, screen)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	sched server.Scheduler,
	collectPub logger.Publisher,
) *server.App {
	return server.New(cfg, log, handler, consumer, kh, sched, collectPub)
}

// ProvideServices bundles the CLI dependencies.
func ProvideServices(
	log *logger.Logger,
	src *universe.FileSource,
	md repository.MarketData,
	sync *usecase.BarSync,
	screen *usecase.ScreenUseCase,
) *Services {
	return &Services{Log: log, Universe: src, Market: md, Sync: sync, Screen: screen}
}
