// Package app wires configuration, infrastructure clients and the matching engine.
package app

import (
	"context"
	"errors"
	"os"

	"github.com/Gobusters/ectologger"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/Ramsey-B/matcher/config"
	"github.com/Ramsey-B/matcher/internal/repositories"
	"github.com/Ramsey-B/matcher/pkg/comparator"
	"github.com/Ramsey-B/matcher/pkg/countries"
	"github.com/Ramsey-B/matcher/pkg/database"
	"github.com/Ramsey-B/matcher/pkg/events"
	"github.com/Ramsey-B/matcher/pkg/graph"
	"github.com/Ramsey-B/matcher/pkg/kafka"
	"github.com/Ramsey-B/matcher/pkg/processor"
	mredis "github.com/Ramsey-B/matcher/pkg/redis"
	"github.com/Ramsey-B/matcher/pkg/resolver"
	"github.com/Ramsey-B/matcher/pkg/similarity"
	"github.com/Ramsey-B/matcher/pkg/startup"
	"github.com/Ramsey-B/matcher/pkg/store"
	"github.com/Ramsey-B/matcher/pkg/tracing"
)

const (
	depPostgres   = "postgres"
	depRedis      = "redis"
	depGraph      = "graph"
	depEvents     = "events"
	depSimilarity = "similarity"
)

type App struct {
	Config    config.Config
	Logger    ectologger.Logger
	DB        database.DB
	Store     *store.Store
	Resolver  *resolver.Resolver
	Processor *processor.Processor
	Index     *similarity.Index
	Scheduler *similarity.Scheduler

	startup         *startup.Startup
	zap             *zap.Logger
	shutdownTracing func(context.Context) error
}

// New builds every component from cfg. Nothing connects until Start.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, zl, err := NewLogger(cfg.LogLevel, cfg.PrettyLogs)
	if err != nil {
		return nil, err
	}

	a := &App{
		Config:  cfg,
		Logger:  logger,
		zap:     zl,
		startup: startup.NewStartup(logger, cfg.StartupMaxAttempts),
	}
	if cfg.TracingEnabled {
		exporter, err := tracing.NewExporter(ctx, cfg.Exporter())
		if err != nil {
			return nil, err
		}
		var opts []sdktrace.TracerProviderOption
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
		a.shutdownTracing = tracing.Setup(cfg.AppName, opts...)
	}

	conn, err := sqlx.Open("postgres", cfg.DatabaseURL())
	if err != nil {
		return nil, err
	}
	a.DB = database.NewDatabaseInstance(conn, logger)
	a.DB.SetMaxOpenConns(cfg.DatabaseMaxOpenConns)
	a.DB.SetMaxIdleConns(cfg.DatabaseMaxIdleConns)
	a.DB.SetConnMaxLifetime(cfg.DatabaseConnMaxLifetime)
	a.Store = repositories.NewStore(a.DB, logger)
	a.startup.AddDependency(startup.Func{
		Name:    depPostgres,
		StartFn: a.DB.PingContext,
		StopFn:  func(context.Context) error { return a.DB.Close() },
	})

	cmp, err := a.newComparator(ctx)
	if err != nil {
		return nil, err
	}

	edges, locker := a.newEdgeStore()
	a.Index = similarity.NewIndex(a.Store, cmp, edges, cfg.Similarity(), logger)
	a.Scheduler = similarity.NewScheduler(a.Index, locker, cfg.Scheduler(), logger)
	similarityDeps := []string{depPostgres}
	if cfg.RedisEnabled {
		similarityDeps = append(similarityDeps, depRedis)
	}
	a.startup.AddDependency(startup.Func{
		Name:     depSimilarity,
		Requires: similarityDeps,
		StartFn:  a.Scheduler.Start,
		StopFn:   a.Scheduler.Stop,
	})

	observers := []processor.Observer{a.Scheduler}
	if cfg.GraphEnabled {
		projector, err := a.newProjector()
		if err != nil {
			return nil, err
		}
		observers = append(observers, projector)
	}
	if cfg.KafkaEnabled {
		observers = append(observers, a.newEmitter())
	}

	a.Resolver = resolver.NewResolver(a.Store, cmp, cfg.Resolver(), logger)
	a.Processor = processor.NewProcessor(a.Store, a.Resolver, processor.Config{
		WorkerID:     cfg.WorkerID,
		ClaimTimeout: cfg.ScrapClaimTimeout,
		StoreTimeout: cfg.StoreTimeout,
	}, logger, observers...)

	return a, nil
}

func (a *App) newComparator(ctx context.Context) (*comparator.Weighted, error) {
	weights, err := a.Config.Weights()
	if err != nil {
		return nil, err
	}

	var table *countries.Table
	if a.Config.CountriesFetch {
		table, err = countries.LoadOrFetch(ctx, a.Config.CountriesPath, countries.DefaultURL, nil, a.Logger)
	} else {
		table, err = countries.Load(a.Config.CountriesPath)
		if errors.Is(err, os.ErrNotExist) {
			a.Logger.WithField("path", a.Config.CountriesPath).Warn("Countries file missing, country attributes compare verbatim")
			table, err = nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return comparator.NewWeighted(weights, table), nil
}

func (a *App) newEdgeStore() (similarity.EdgeStore, similarity.Locker) {
	if !a.Config.RedisEnabled {
		return similarity.NewMemoryStore(a.Config.SimilarityTTL), nil
	}

	client := mredis.NewClient(mredis.Config{
		Host:     a.Config.RedisHost,
		Port:     a.Config.RedisPort,
		Password: a.Config.RedisPassword,
		DB:       a.Config.RedisDB,
	}, a.Logger)
	a.startup.AddDependency(startup.Func{
		Name:    depRedis,
		StartFn: client.Connect,
		StopFn:  func(context.Context) error { return client.Close() },
	})
	return similarity.NewRedisStore(client, "", a.Config.SimilarityTTL), mredis.NewLocker(client, a.Config.AppName+":lock:")
}

func (a *App) newProjector() (*graph.Projector, error) {
	client, err := graph.NewClient(graph.Config{
		Host:     a.Config.GraphDBHost,
		Port:     a.Config.GraphDBPort,
		Username: a.Config.GraphDBUser,
		Password: a.Config.GraphDBPassword,
	}, a.Logger)
	if err != nil {
		return nil, err
	}
	a.startup.AddDependency(startup.Func{
		Name:    depGraph,
		StartFn: client.VerifyConnectivity,
		StopFn:  client.Close,
	})
	return graph.NewProjector(client, a.Config.GraphWriteTimeout, a.Logger), nil
}

func (a *App) newEmitter() *events.Emitter {
	producer := kafka.NewProducer(a.producerConfig(a.Config.KafkaOutputTopic, true), a.Logger)
	a.startup.AddDependency(startup.Func{
		Name:   depEvents,
		StopFn: func(context.Context) error { return producer.Close() },
	})
	return events.NewEmitter(producer, a.Logger)
}

func (a *App) producerConfig(topic string, async bool) kafka.ProducerConfig {
	return kafka.ProducerConfig{
		Brokers:      a.Config.KafkaBrokers,
		Topic:        topic,
		BatchSize:    a.Config.KafkaBatchSize,
		BatchTimeout: a.Config.KafkaBatchTimeoutDuration(),
		RequiredAcks: a.Config.KafkaRequiredAcks,
		Compression:  a.Config.KafkaCompression,
		Async:        async,
	}
}

// NewScrapConsumer returns a consumer that runs every scrap-ready job through RunMatch.
func (a *App) NewScrapConsumer() *kafka.Consumer {
	return kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:       a.Config.KafkaBrokers,
		Topic:         a.Config.KafkaScrapTopic,
		ConsumerGroup: a.Config.KafkaConsumerGroup,
		MaxAttempts:   a.Config.KafkaMaxAttempts,
		RetryBackoff:  a.Config.KafkaRetryBackoff,
	}, a.Logger, a.HandleScrap)
}

// NewScrapProducer returns a synchronous producer of scrap-ready jobs.
func (a *App) NewScrapProducer() *kafka.Producer {
	return kafka.NewProducer(a.producerConfig(a.Config.KafkaScrapTopic, false), a.Logger)
}

func (a *App) HandleScrap(ctx context.Context, msg *kafka.IncomingMessage) error {
	scrapID := msg.Scrap.ScrapID
	scrap, result, err := a.Processor.RunMatch(ctx, &scrapID)
	if err != nil {
		return err
	}
	a.Logger.WithContext(ctx).WithFields(map[string]any{
		"scrap_id": scrap.ID,
		"status":   string(scrap.Status),
		"created":  result.Created,
		"attached": result.Attached,
		"merged":   result.Merged,
		"skipped":  result.Skipped,
	}).Info("Scrap matched")
	return nil
}

// Migrate applies the Postgres migrations.
func (a *App) Migrate() error {
	migrations := database.NewMigrationService(a.Logger, &database.MigrationConfig{
		MigrationFolderPath: a.Config.DatabaseMigrationFolderPath,
		Version:             a.Config.DatabaseMigrationVersion,
		Force:               a.Config.DatabaseMigrationForce,
		AutoRollback:        a.Config.DatabaseMigrationAutoRollback,
	})
	return migrations.MigratePostgres(a.DB.SQL(), a.Config.DatabaseName)
}

func (a *App) Start(ctx context.Context) error {
	return a.startup.Start(ctx)
}

func (a *App) Stop(ctx context.Context) error {
	err := a.startup.Stop(ctx)
	if a.shutdownTracing != nil {
		if tErr := a.shutdownTracing(ctx); tErr != nil {
			a.Logger.WithError(tErr).Warn("Failed to flush traces")
		}
	}
	_ = a.zap.Sync()
	return err
}
