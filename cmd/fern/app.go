package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/labstack/echo/otelecho"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/internal/handlers"
	"github.com/Ramsey-B/fern/pkg/amqp"
	"github.com/Ramsey-B/fern/pkg/applier"
	"github.com/Ramsey-B/fern/pkg/credentials"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/health"
	"github.com/Ramsey-B/fern/pkg/httpclient"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/middleware"
	"github.com/Ramsey-B/fern/pkg/overrides"
	"github.com/Ramsey-B/fern/pkg/queue"
	"github.com/Ramsey-B/fern/pkg/redis"
	"github.com/Ramsey-B/fern/pkg/repositories"
	"github.com/Ramsey-B/fern/pkg/schema"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
	"github.com/Ramsey-B/fern/pkg/tracing/exporters"
	"github.com/Ramsey-B/fern/pkg/upstream"
)

const (
	queueDriverAMQP  = "amqp"
	queueDriverRedis = "redis"
)

// App owns every long-lived component of the service.
type App struct {
	cfg    *config.Config
	logger ectologger.Logger

	// runCtx outlives the startup attempts; consumers process deliveries on it.
	runCtx    context.Context
	cancelRun context.CancelFunc

	tracer  *sdktrace.TracerProvider
	startup *startup.Startup
	health  *health.Checker
	echo    *echo.Echo

	redis     *redis.Client
	databases database.Provider
	producer  *kafka.Producer
	reflector *schema.Reflector
	applier   *applier.Applier
	dlq       *redis.DeadLetterQueue

	consumer       *amqp.Consumer
	amqpPublisher  *amqp.Publisher
	processor      *queue.Processor
	redisPublisher *redis.Publisher
}

func newApp(ctx context.Context, cfg *config.Config, logger ectologger.Logger) (*App, error) {
	if cfg.QueueDriver != queueDriverAMQP && cfg.QueueDriver != queueDriverRedis {
		return nil, fmt.Errorf("unsupported QUEUE_DRIVER: %s", cfg.QueueDriver)
	}
	if _, err := database.DialectFor(cfg.DatabaseDriver); err != nil {
		return nil, err
	}

	otlpHeaders, err := exporters.ParseHeaders(cfg.OTLPHeaders)
	if err != nil {
		return nil, err
	}
	tracer, err := tracing.NewProvider(ctx, tracing.ProviderConfig{
		ServiceName:   cfg.AppName,
		ExportEnabled: cfg.OTLPEnabled,
		OTLP: exporters.OTLPConfig{
			Endpoint: cfg.OTLPEndpoint,
			Protocol: cfg.OTLPProtocol,
			Insecure: cfg.OTLPInsecure,
			Headers:  otlpHeaders,
		},
	})
	if err != nil {
		return nil, err
	}

	runCtx, cancelRun := context.WithCancel(context.Background())
	app := &App{
		cfg:       cfg,
		logger:    logger,
		runCtx:    runCtx,
		cancelRun: cancelRun,
		tracer:    tracer,
		startup:   startup.NewStartup(logger, cfg.StartupMaxAttempts),
		health:    health.NewChecker(cfg.AppName),
		reflector: schema.NewReflector(cfg.SchemaCacheTTL, logger),
	}

	app.startup.AddDependency(startup.Dependency{
		Name:    "redis",
		OnStart: app.startRedis,
		OnStop:  app.stopRedis,
	})
	app.startup.AddDependency(startup.Dependency{
		Name:     "database",
		Requires: []string{"redis"},
		OnStart:  app.startDatabase,
		OnStop:   app.stopDatabase,
	})

	consumerRequires := []string{"redis", "database"}
	if cfg.KafkaEnabled {
		app.startup.AddDependency(startup.Dependency{
			Name:    "kafka",
			OnStart: app.startKafka,
			OnStop:  app.stopKafka,
		})
		consumerRequires = append(consumerRequires, "kafka")
	}

	app.startup.AddDependency(startup.Dependency{
		Name:     "consumer",
		Requires: consumerRequires,
		OnStart:  app.startConsumer,
		OnStop:   app.stopConsumer,
	})
	app.startup.AddDependency(startup.Dependency{
		Name:     "http",
		Requires: []string{"consumer"},
		OnStart:  app.startHTTP,
		OnStop:   app.stopHTTP,
	})

	return app, nil
}

func (a *App) Start(ctx context.Context) error {
	if err := a.startup.Start(ctx); err != nil {
		return err
	}
	a.health.SetReady(true)
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	a.health.SetReady(false)

	err := a.startup.Stop(ctx)
	a.cancelRun()

	if shutdownErr := a.tracer.Shutdown(ctx); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	return err
}

func (a *App) startRedis(ctx context.Context) error {
	client, err := redis.NewClient(ctx, redis.Config{
		Host:     a.cfg.RedisHost,
		Port:     a.cfg.RedisPort,
		Password: a.cfg.RedisPassword,
		DB:       a.cfg.RedisDB,
	}, a.logger)
	if err != nil {
		return err
	}

	a.redis = client
	a.dlq = redis.NewDeadLetterQueue(client, a.cfg.RedisStreamsDLQ, a.logger)
	a.health.AddCheck("redis", client)
	return nil
}

func (a *App) stopRedis(_ context.Context) error {
	return a.redis.Close()
}

func (a *App) databaseSettings() database.Settings {
	return database.Settings{
		Driver:          a.cfg.DatabaseDriver,
		Host:            a.cfg.DatabaseHost,
		Port:            a.cfg.DatabasePort,
		User:            a.cfg.DatabaseUserName,
		Password:        a.cfg.DatabasePassword,
		Name:            a.cfg.DatabaseName,
		SSLMode:         a.cfg.DatabaseSSLMode,
		MaxOpenConns:    a.cfg.DatabaseMaxOpenConns,
		MaxIdleConns:    a.cfg.DatabaseMaxIdleConns,
		ConnMaxLifetime: a.cfg.DatabaseConnMaxLifetime,
	}
}

func (a *App) startDatabase(ctx context.Context) error {
	if a.cfg.DatabasePerCompany {
		registry := database.NewCompanyRegistry(a.redis, a.cfg.DatabaseCompanyRegistryKey, a.databaseSettings(), database.Open, a.logger)
		if err := registry.Ping(ctx); err != nil {
			return err
		}
		a.databases = registry
		a.health.AddCheck("database", registry)
		return nil
	}

	db, err := database.Open(ctx, a.databaseSettings(), a.logger)
	if err != nil {
		return err
	}
	provider := database.NewStaticProvider(db)
	a.databases = provider
	a.health.AddCheck("database", provider)
	return nil
}

func (a *App) stopDatabase(_ context.Context) error {
	return a.databases.Close()
}

func (a *App) startKafka(ctx context.Context) error {
	producer := kafka.NewProducer(kafka.ParseConfig(a.cfg.KafkaBrokers, a.cfg.KafkaResultTopic, a.cfg.KafkaErrorTopic), a.logger)
	if err := producer.Ping(ctx); err != nil {
		_ = producer.Close()
		return err
	}
	a.producer = producer
	a.health.AddOptionalCheck("kafka", producer)
	return nil
}

func (a *App) stopKafka(_ context.Context) error {
	return a.producer.Close()
}

func (a *App) buildApplier() (*applier.Applier, error) {
	table, err := overrides.Parse(a.cfg.SellerOverrides)
	if err != nil {
		return nil, err
	}
	fulfillment, err := a.cfg.FulfillmentCompanies()
	if err != nil {
		return nil, err
	}

	httpConfig := httpclient.DefaultConfig()
	httpConfig.Timeout = a.cfg.UpstreamTimeout

	return applier.New(
		repositories.NewShipmentStore(a.databases, a.logger),
		credentials.NewResolver(a.redis, a.cfg.CredentialHash, a.cfg.CredentialCacheTTL, a.logger),
		upstream.NewClient(httpclient.NewClient(httpConfig, a.logger), a.cfg.UpstreamBaseURL, a.logger),
		a.reflector,
		applier.Config{
			FulfillmentCompanyIDs: fulfillment,
			Overrides:             table,
		},
		a.logger,
	), nil
}

func (a *App) startConsumer(ctx context.Context) error {
	if a.applier == nil {
		built, err := a.buildApplier()
		if err != nil {
			return err
		}
		a.applier = built
	}

	// a nil *kafka.Producer must not become a non-nil interface
	var results queue.ResultPublisher
	if a.producer != nil {
		results = a.producer
	}
	dispatcher := queue.NewDispatcher(a.applier, results, a.dlq, a.logger)

	switch a.cfg.QueueDriver {
	case queueDriverRedis:
		return a.startStreamProcessor(ctx, dispatcher)
	default:
		return a.startAMQPConsumer(ctx, dispatcher)
	}
}

func (a *App) startAMQPConsumer(ctx context.Context, dispatcher *queue.Dispatcher) error {
	amqpConfig := amqp.Config{
		URL:      a.cfg.AMQPURL,
		Queue:    a.cfg.AMQPQueue,
		Prefetch: a.cfg.AMQPPrefetch,
	}

	publisher, err := amqp.NewPublisher(amqpConfig, a.logger)
	if err != nil {
		return err
	}

	consumer := amqp.NewConsumer(amqpConfig, dispatcher, a.logger)
	if err := consumer.Start(a.runCtx); err != nil {
		_ = publisher.Close()
		return err
	}

	a.amqpPublisher = publisher
	a.consumer = consumer
	a.health.AddCheck("amqp", consumer)
	a.logger.WithContext(ctx).Infof("AMQP consumer ready on queue %s", amqpConfig.Queue)
	return nil
}

func (a *App) startStreamProcessor(ctx context.Context, dispatcher *queue.Dispatcher) error {
	streams := redis.NewStreams(a.redis)

	processorConfig := queue.DefaultProcessorConfig()
	processorConfig.Stream = a.cfg.RedisStreamsJobQueue
	processorConfig.ConsumerGroup = a.cfg.RedisStreamsConsumerGroup
	if a.cfg.RedisStreamsConsumerName != "" {
		processorConfig.ConsumerName = a.cfg.RedisStreamsConsumerName
	}
	processorConfig.MaxRetries = a.cfg.QueueMaxRetries
	processorConfig.ClaimMinIdle = a.cfg.RedisStreamsClaimMinIdle
	processorConfig.WorkerCount = a.cfg.RedisStreamsWorkers

	processor := queue.NewProcessor(streams, dispatcher, processorConfig, a.logger)
	if err := processor.Start(a.runCtx); err != nil {
		return err
	}

	a.processor = processor
	a.redisPublisher = redis.NewPublisher(streams, processorConfig.Stream)
	a.logger.WithContext(ctx).Infof("Stream processor ready on %s", processorConfig.Stream)
	return nil
}

func (a *App) stopConsumer(ctx context.Context) error {
	var err error
	if a.consumer != nil {
		err = errors.Join(err, a.consumer.Stop(ctx))
	}
	if a.amqpPublisher != nil {
		err = errors.Join(err, a.amqpPublisher.Close())
	}
	if a.processor != nil {
		err = errors.Join(err, a.processor.Stop(ctx))
	}
	return err
}

// republisher is the transport DLQ retries are re-enqueued on.
func (a *App) republisher() redis.Republisher {
	if a.cfg.QueueDriver == queueDriverRedis {
		return a.redisPublisher
	}
	return a.amqpPublisher
}

func (a *App) startHTTP(_ context.Context) error {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.Error(a.logger)

	e.Use(otelecho.Middleware(a.cfg.AppName))
	e.Use(middleware.Context())
	e.Use(middleware.Logger(a.logger))

	a.health.RegisterRoutes(e)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := e.Group("/api/v1")
	handlers.NewShipmentHandler(a.applier, a.logger).RegisterRoutes(api)
	handlers.NewSchemaHandler(a.reflector, a.logger).RegisterRoutes(api)
	handlers.NewDLQHandler(a.dlq, a.republisher(), a.logger).RegisterRoutes(api)

	e.Server.ReadTimeout = time.Duration(a.cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(a.cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(a.cfg.HttpServerIdleTimeoutSeconds) * time.Second
	e.Server.ReadHeaderTimeout = time.Duration(a.cfg.ReadHeaderTimeoutSeconds) * time.Second
	e.Server.MaxHeaderBytes = a.cfg.MaxHeaderBytes

	a.echo = e
	go func() {
		if err := e.Start(fmt.Sprintf(":%d", a.cfg.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.WithError(err).Error("HTTP server stopped")
		}
	}()
	return nil
}

func (a *App) stopHTTP(ctx context.Context) error {
	return a.echo.Shutdown(ctx)
}
