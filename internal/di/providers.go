package di

import (
	"fmt"
	"math/rand/v2"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"FinDash/internal/domain/repository"
	"FinDash/internal/domain/service"
	"FinDash/internal/handler/api"
	"FinDash/internal/handler/ws"
	internalrepo "FinDash/internal/repository"
	"FinDash/internal/service/scoring"
	"FinDash/internal/usecase"
	"FinDash/pkg/cache"
	"FinDash/pkg/config"
	"FinDash/pkg/eventbus"
	xhttp "FinDash/pkg/http"
	pkgkafka "FinDash/pkg/kafka"
	applogger "FinDash/pkg/logger"
	"FinDash/pkg/metrics"
	"FinDash/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideClock returns the wall clock.
func ProvideClock() clockwork.Clock {
	return clockwork.NewRealClock()
}

// ProvideEventBus creates the in-process event bus.
func ProvideEventBus(logger *applogger.Logger, m repository.Metrics) *eventbus.Bus {
	return eventbus.New(
		eventbus.WithLogger(logger),
		eventbus.WithFailureHook(func(name eventbus.Name) {
			m.RecordError("handler_" + string(name))
		}),
	)
}

// ProvidePredictor picks the remote scoring service when configured, the random stand-in otherwise.
func ProvidePredictor(cfg *config.Config, clock clockwork.Clock, logger *applogger.Logger) service.Predictor {
	if cfg.Scoring.URL != "" {
		logger.Info("using remote scoring service", applogger.String("url", cfg.Scoring.URL))
		return scoring.NewClient(cfg.Scoring.URL, cfg.Scoring.Timeout, clock)
	}
	return scoring.NewRandomPredictor(
		scoring.WithRandomClock(clock),
		scoring.WithRandomSource(seededRand(cfg.Dashboard.Seed, 1)),
	)
}

// ProvideDashboardStore creates the dashboard state store.
func ProvideDashboardStore(
	cfg *config.Config,
	bus *eventbus.Bus,
	predictor service.Predictor,
	m repository.Metrics,
	logger *applogger.Logger,
	clock clockwork.Clock,
) *usecase.DashboardStore {
	sc := usecase.DefaultStoreConfig()
	sc.BasePrice = cfg.Dashboard.BasePrice
	sc.HistoryJitter = cfg.Dashboard.HistoryJitter
	sc.TickJitter = cfg.Dashboard.TickJitter
	sc.HistoryStep = cfg.Dashboard.HistoryStep
	sc.PredictionLatency = cfg.Dashboard.PredictionLatency
	sc.DataPointCount = cfg.Dashboard.DataPointCount
	sc.FeatureCount = cfg.Dashboard.FeatureCount

	return usecase.NewDashboardStore(bus, predictor, m, logger.With(applogger.String("component", "store")),
		usecase.WithClock(clock),
		usecase.WithRand(seededRand(cfg.Dashboard.Seed, 2)),
		usecase.WithStoreConfig(sc),
	)
}

// ProvideScheduler creates the tick scheduler and detached task runner.
func ProvideScheduler(cfg *config.Config, store *usecase.DashboardStore, logger *applogger.Logger, clock clockwork.Clock) *usecase.Scheduler {
	return usecase.NewScheduler(store, logger.With(applogger.String("component", "scheduler")),
		usecase.WithInterval(cfg.Dashboard.TickInterval),
		usecase.WithSchedulerClock(clock),
	)
}

// ProvideBroadcaster creates the WebSocket broadcaster and attaches it to the bus.
func ProvideBroadcaster(
	cfg *config.Config,
	bus *eventbus.Bus,
	store *usecase.DashboardStore,
	scheduler *usecase.Scheduler,
	m repository.Metrics,
	logger *applogger.Logger,
	clock clockwork.Clock,
) *ws.Broadcaster {
	b := ws.NewBroadcaster(store, scheduler, m, logger.With(applogger.String("component", "broadcaster")),
		ws.WithClock(clock),
		ws.WithConfig(ws.Config{
			Path:          cfg.WebSocket.Path,
			SendBuffer:    cfg.WebSocket.SendBuffer,
			WriteTimeout:  cfg.WebSocket.WriteTimeout,
			PingInterval:  cfg.WebSocket.PingInterval,
			PongTimeout:   cfg.WebSocket.PongTimeout,
			ForwardErrors: cfg.WebSocket.ForwardErrors,
			CommandBurst:  cfg.WebSocket.CommandBurst,
			CommandRate:   cfg.WebSocket.CommandRate,
		}),
	)
	b.Attach(bus)
	return b
}

// ProvideCache creates the response body cache: memory, optionally layered over Redis.
// It returns nil when caching is disabled.
func ProvideCache(cfg *config.Config, logger *applogger.Logger) (cache.Service, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryDefaultTTL(cfg.Cache.TTL),
		), nil
	}

	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	logger.Info("redis cache connected", applogger.String("addr", cfg.Cache.Redis.Addr))
	return cache.NewLayeredCache(rc,
		cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
		cache.WithLayeredMemoryTTL(cfg.Cache.TTL),
	), nil
}

// ProvideEventExporter mirrors bus events to Kafka. It returns nil when export is disabled.
func ProvideEventExporter(
	cfg *config.Config,
	bus *eventbus.Bus,
	m repository.Metrics,
	logger *applogger.Logger,
	clock clockwork.Clock,
) (*usecase.EventExporter, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreate),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	exp := usecase.NewEventExporter(
		internalrepo.NewKafkaEventSink(producer, cfg.Kafka.Topic),
		m,
		logger.With(applogger.String("component", "exporter")),
		usecase.WithExportBuffer(cfg.Kafka.BufferSize),
		usecase.WithExportBatch(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		usecase.WithExporterClock(clock),
	)
	exp.Attach(bus)
	return exp, nil
}

// ProvideDashboardHandler creates the HTTP gateway.
func ProvideDashboardHandler(
	cfg *config.Config,
	logger *applogger.Logger,
	store *usecase.DashboardStore,
	scheduler *usecase.Scheduler,
	broadcaster *ws.Broadcaster,
	c cache.Service,
) *api.DashboardEchoHandler {
	var opts []api.HandlerOption
	if c != nil {
		opts = append(opts, api.WithBodyCache(c, cfg.Cache.TTL))
	}
	return api.NewDashboardEchoHandler(logger, store, scheduler, broadcaster, opts...)
}

// ProvideHTTPServer creates the Echo server serving the gateway and the WebSocket endpoint.
func ProvideHTTPServer(
	cfg *config.Config,
	logger *applogger.Logger,
	handler *api.DashboardEchoHandler,
	broadcaster *ws.Broadcaster,
) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer([]xhttp.Handler{handler, broadcaster},
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithLogger(logger.With(applogger.String("component", "http"))),
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	store *usecase.DashboardStore,
	scheduler *usecase.Scheduler,
	broadcaster *ws.Broadcaster,
	exporter *usecase.EventExporter,
	c cache.Service,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, logger, store, scheduler, broadcaster, exporter, c, httpServer)
}

// seededRand returns nil for seed 0 so components fall back to a time-based seed.
func seededRand(seed, stream uint64) *rand.Rand {
	if seed == 0 {
		return nil
	}
	return rand.New(rand.NewPCG(seed, stream))
}
