package factory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"secmon-service/internal/bucketing"
	"secmon-service/internal/client"
	"secmon-service/internal/config"
	"secmon-service/internal/ingest"
	chrepo "secmon-service/internal/repository/clickhouse"
	redisrepo "secmon-service/internal/repository/redis"
	"secmon-service/internal/search"
	"secmon-service/internal/service"
	"secmon-service/internal/tls"
	"secmon-service/internal/util"
)

// Factory manages the lifecycle of all application dependencies.
type Factory struct {
	config     *config.Config
	tlsManager *tls.TLSManager

	// Clients
	redisClient      *client.RedisClient
	clickhouseClient *client.ClickHouseClient
	kafkaProducer    *client.KafkaProducer
	kafkaConsumer    *client.KafkaConsumer
	esClient         *client.ESClient

	// Managers
	bucketingManager *bucketing.BucketingManager

	// Repositories and services
	auditRepository chrepo.AuditRepository
	statsCache      *redisrepo.StatsCache
	eventIndex      *search.EventIndex
	ingestConsumer  *ingest.Consumer
	serviceFactory  *service.ServiceFactory

	closeOnce sync.Once
	closed    chan struct{}
}

// NewFactory loads config and initializes all clients with health checks.
// Outside production, individual backend failures degrade to warnings so
// the service can run against a partial stack.
func NewFactory() (*Factory, error) {
	cfg := config.LoadConfig()

	util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	factory := &Factory{
		config: cfg,
		closed: make(chan struct{}),
	}

	if cfg.Server.EnableTLS {
		factory.tlsManager = tls.NewTLSManager(&tls.TLSConfig{
			EnableTLS:   cfg.Server.EnableTLS,
			AutoCert:    cfg.Server.AutoCert,
			Domain:      cfg.Server.Domain,
			CertFile:    cfg.Server.CertFile,
			KeyFile:     cfg.Server.KeyFile,
			AutoCertDir: cfg.Server.AutoCertDir,
			Email:       cfg.Server.Email,
			Environment: cfg.Environment,
		})
	}

	if err := factory.initializeClients(); err != nil {
		return nil, fmt.Errorf("failed to initialize clients: %w", err)
	}

	factory.bucketingManager = bucketing.NewBucketingManager(cfg)

	util.Info("Factory initialized",
		util.String("environment", cfg.Environment),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
	)

	return factory, nil
}

func (f *Factory) initializeClients() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var initErrors []error

	// ClickHouse is the audit store; without it nothing works.
	if ch, err := client.NewClickHouseClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("clickhouse: %w", err))
	} else {
		f.clickhouseClient = ch
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("clickhouse health check: %w", err))
		} else {
			util.Info("ClickHouse client initialized and healthy")
		}
	}

	// Redis backs the stats cache.
	if rc, err := client.NewRedisClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("redis: %w", err))
	} else {
		f.redisClient = rc
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			initErrors = append(initErrors, fmt.Errorf("redis health check: %w", err))
		} else {
			util.Info("Redis client initialized and healthy")
		}
	}

	// Kafka carries audit ingest in and alerts out; optional everywhere.
	if producer, err := client.NewKafkaProducer(f.config, util.Get()); err != nil {
		util.Warn("Kafka producer initialization failed - alerts disabled", util.ErrorField(err))
	} else {
		f.kafkaProducer = producer
		util.Info("Kafka producer initialized")
	}

	// Elasticsearch backs event search.
	if es, err := client.NewElasticsearchClient(f.config, util.Get()); err != nil {
		initErrors = append(initErrors, fmt.Errorf("elasticsearch: %w", err))
	} else {
		f.esClient = es
		util.Info("Elasticsearch client initialized and healthy")
	}

	if len(initErrors) > 0 {
		if f.config.IsProduction() {
			return fmt.Errorf("critical service initialization failed: %v", initErrors)
		}
		for _, err := range initErrors {
			util.Warn("Service initialization warning", util.ErrorField(err))
		}
	}

	return nil
}

// AuditRepository returns the ClickHouse-backed audit store. During degraded
// non-production startup ClickHouse may never have connected; requests then
// get an unavailable-store error rather than a panic.
func (f *Factory) AuditRepository() chrepo.AuditRepository {
	if f.auditRepository == nil {
		if f.clickhouseClient == nil {
			f.auditRepository = chrepo.NewUnavailableAuditRepository()
		} else {
			f.auditRepository = chrepo.NewAuditRepository(f.clickhouseClient, f.bucketingManager)
		}
	}
	return f.auditRepository
}

// StatsCache returns the Redis stats cache, or nil when Redis is down.
func (f *Factory) StatsCache() *redisrepo.StatsCache {
	if f.statsCache == nil && f.redisClient != nil {
		f.statsCache = redisrepo.NewStatsCache(f.redisClient, f.config.Security.StatsCacheTTL)
	}
	return f.statsCache
}

// EventIndex returns the Elasticsearch event index, or nil when ES is down.
func (f *Factory) EventIndex() *search.EventIndex {
	if f.eventIndex == nil && f.esClient != nil {
		f.eventIndex = search.NewEventIndex(f.esClient, f.config.Elasticsearch.EventsIndex)
	}
	return f.eventIndex
}

// IngestConsumer returns the audit ingest consumer, or nil without Kafka.
func (f *Factory) IngestConsumer() *ingest.Consumer {
	if f.ingestConsumer == nil && f.kafkaProducer != nil {
		f.kafkaConsumer = client.NewKafkaConsumer(
			f.config,
			f.config.Kafka.AuditTopic,
			f.config.Kafka.GroupID,
			util.Get(),
		)
		f.ingestConsumer = ingest.NewConsumer(f.kafkaConsumer, f.AuditRepository(), util.Get())
	}
	return f.ingestConsumer
}

// ServiceFactory wires the service layer.
func (f *Factory) ServiceFactory() *service.ServiceFactory {
	if f.serviceFactory == nil {
		var (
			statsCache service.StatsCache
			eventIndex service.EventIndexer
			alerts     service.AlertPublisher
		)
		if c := f.StatsCache(); c != nil {
			statsCache = c
		}
		if x := f.EventIndex(); x != nil {
			eventIndex = x
		}
		if f.kafkaProducer != nil {
			alerts = f.kafkaProducer
		}

		f.serviceFactory = service.NewServiceFactory(
			f.AuditRepository(),
			statsCache,
			eventIndex,
			alerts,
			service.SecurityServiceOptions{
				AlertsTopic: f.config.Kafka.AlertsTopic,
				PageLimit:   f.config.Security.PageLimit,
				ReportLoc:   f.config.ReportLocation(),
			},
			util.Get(),
		)
	}
	return f.serviceFactory
}

// HealthCheck reports per-dependency health.
func (f *Factory) HealthCheck(ctx context.Context) map[string]error {
	healthErrors := make(map[string]error)

	if f.clickhouseClient != nil {
		if err := f.clickhouseClient.HealthCheck(ctx); err != nil {
			healthErrors["clickhouse"] = err
		}
	} else {
		healthErrors["clickhouse"] = fmt.Errorf("clickhouse client not initialized")
	}

	if f.redisClient != nil {
		if err := f.redisClient.HealthCheck(ctx); err != nil {
			healthErrors["redis"] = err
		}
	} else {
		healthErrors["redis"] = fmt.Errorf("redis client not initialized")
	}

	if f.esClient != nil {
		if err := f.esClient.HealthCheck(); err != nil {
			healthErrors["elasticsearch"] = err
		}
	} else {
		healthErrors["elasticsearch"] = fmt.Errorf("elasticsearch client not initialized")
	}

	if f.kafkaProducer != nil {
		if err := f.kafkaProducer.HealthCheck(ctx); err != nil {
			healthErrors["kafka"] = err
		}
	}

	return healthErrors
}

// IsHealthy ignores kafka, which is optional in every environment.
func (f *Factory) IsHealthy(ctx context.Context) bool {
	healthErrors := f.HealthCheck(ctx)
	delete(healthErrors, "kafka")
	return len(healthErrors) == 0
}

func (f *Factory) Close() error {
	f.closeOnce.Do(func() {
		close(f.closed)
		util.Info("Shutting down factory...")

		if f.kafkaConsumer != nil {
			if err := f.kafkaConsumer.Close(); err != nil {
				util.Error("Failed to close Kafka consumer", util.ErrorField(err))
			}
		}

		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				util.Error("Failed to close Kafka producer", util.ErrorField(err))
			}
		}

		if f.serviceFactory != nil {
			f.serviceFactory.Cleanup()
		}

		if f.esClient != nil {
			f.esClient.Close()
		}

		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				util.Error("Failed to close ClickHouse client", util.ErrorField(err))
			}
		}

		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				util.Error("Failed to close Redis client", util.ErrorField(err))
			}
		}

		util.Sync()
		util.Info("Factory shutdown completed")
	})

	return nil
}

func (f *Factory) WaitForClose() {
	<-f.closed
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}
