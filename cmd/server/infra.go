package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"credex/internal/audit"
	credservice "credex/internal/credential/service"
	credstore "credex/internal/credential/store"
	"credex/internal/platform/config"
	"credex/internal/platform/database"
	"credex/internal/platform/health"
	"credex/internal/platform/kafka/producer"
	"credex/internal/platform/redis"
	"credex/internal/trust/adapters"
	trustmetrics "credex/internal/trust/metrics"
	trustservice "credex/internal/trust/service"
	truststore "credex/internal/trust/store"
	vservice "credex/internal/verification/service"
	vstore "credex/internal/verification/store"
	"credex/migrations"
	"credex/pkg/platform/circuit"
	"credex/pkg/platform/httpclient"
	"credex/pkg/platform/tracer"
	"credex/pkg/secrets"
)

// infra holds the optional external connections. Each is nil when its
// configuration is absent.
type infra struct {
	db    *database.Pool
	redis *redis.Client
	kafka *producer.Producer
}

func openInfra(ctx context.Context, cfg config.Server, reg prometheus.Registerer, log *slog.Logger) (*infra, error) {
	in := &infra{}

	dbOpts := []database.Option{database.WithStats(reg)}
	if cfg.Database.AutoMigrate {
		dbOpts = append(dbOpts, database.WithMigrations(migrations.FS))
	}
	db, err := database.New(ctx, cfg.Database, dbOpts...)
	if err != nil {
		return nil, err
	}
	in.db = db
	if db != nil {
		log.InfoContext(ctx, "connected to postgres", "auto_migrate", cfg.Database.AutoMigrate)
	}

	rc, err := redis.New(ctx, cfg.Redis, redis.WithPoolMetrics(redis.NewPoolMetrics(reg)))
	if err != nil {
		in.Close(log)
		return nil, err
	}
	in.redis = rc
	if rc != nil {
		log.InfoContext(ctx, "connected to redis")
	}

	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, log)
		if err != nil {
			in.Close(log)
			return nil, err
		}
		in.kafka = p
		log.InfoContext(ctx, "kafka audit sink enabled", "topic", cfg.Kafka.AuditTopic)
	}
	return in, nil
}

func (in *infra) registerChecks(probes *health.Handler) {
	if in.db != nil {
		probes.RegisterCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		probes.RegisterCheck("redis", in.redis.Health)
	}
	if in.kafka != nil {
		probes.RegisterCheck("kafka", in.kafka.Health)
	}
}

func (in *infra) Close(log *slog.Logger) {
	if in.kafka != nil {
		if err := in.kafka.Close(); err != nil {
			log.Warn("kafka close failed", "error", err)
		}
	}
	if in.redis != nil {
		if err := in.redis.Close(); err != nil {
			log.Warn("redis close failed", "error", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			log.Warn("postgres close failed", "error", err)
		}
	}
}

func credentialPersistence(cfg config.Server, in *infra) (credservice.Persistence, error) {
	switch cfg.Storage.Backend {
	case config.StoragePostgres:
		if in.db == nil {
			return nil, fmt.Errorf("postgres backend selected without a database")
		}
		return credstore.NewPostgres(in.db.DB()), nil
	case config.StorageMemory:
		return credstore.NewInMemory(), nil
	default:
		var opts []credstore.FileOption
		if cfg.Storage.EncryptionSecret != "" {
			sealer, err := secrets.NewSealer(cfg.Storage.EncryptionSecret)
			if err != nil {
				return nil, fmt.Errorf("credential encryption: %w", err)
			}
			opts = append(opts, credstore.WithSealer(sealer))
		}
		return credstore.NewFile(cfg.Storage.Path, opts...), nil
	}
}

// trustRegistry returns the remote registry when TRUST_REGISTRY_URL is set and
// a local one otherwise, wrapped for metrics and tracing. Seed DIDs apply to
// either.
func trustRegistry(ctx context.Context, cfg config.Server, in *infra, reg prometheus.Registerer, trc tracer.Tracer, log *slog.Logger) (*trustservice.Observed, error) {
	m := trustmetrics.New(reg)

	var next trustservice.Registry
	if cfg.Trust.URL != "" {
		breaker := circuit.New("trust-registry",
			circuit.WithFailureThreshold(cfg.Trust.FailureThreshold),
			circuit.WithCooldown(cfg.Trust.Cooldown),
		)
		next = adapters.NewHTTPRegistry(cfg.Trust.URL,
			httpclient.New(cfg.Trust.Timeout, cfg.Trust.RetryMax, log),
			adapters.WithLogger(log),
			adapters.WithBreaker(breaker),
			adapters.WithMetrics(m),
			adapters.WithTracer(trc),
		)
		log.InfoContext(ctx, "using remote trust registry", "url", cfg.Trust.URL)
	} else {
		var store trustservice.Store = truststore.NewInMemory()
		if in.db != nil {
			store = truststore.NewPostgres(in.db.DB())
		}
		next = trustservice.NewLocalRegistry(store, trustservice.WithLogger(log))
	}

	registry := trustservice.NewObserved(next, m, trc)
	if err := trustservice.Seed(ctx, registry, cfg.Trust.SeedDIDs, seedActor); err != nil {
		return nil, fmt.Errorf("seed trust registry: %w", err)
	}
	return registry, nil
}

func sessionStore(in *infra, log *slog.Logger) vservice.Store {
	if in.redis != nil {
		log.Info("verification sessions stored in redis")
		return vstore.NewRedis(in.redis.Client)
	}
	return vstore.NewInMemory()
}

func auditSink(cfg config.Server, in *infra) audit.Store {
	if in.kafka != nil {
		return audit.NewKafkaStore(in.kafka, cfg.Kafka.AuditTopic)
	}
	return audit.NewInMemoryStore()
}
