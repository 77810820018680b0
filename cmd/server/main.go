package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"credex/internal/audit"
	credhandler "credex/internal/credential/handler"
	credmetrics "credex/internal/credential/metrics"
	credservice "credex/internal/credential/service"
	"credex/internal/inbox/callback"
	inboxhandler "credex/internal/inbox/handler"
	inboxmetrics "credex/internal/inbox/metrics"
	inboxservice "credex/internal/inbox/service"
	inboxstore "credex/internal/inbox/store"
	"credex/internal/matcher"
	"credex/internal/platform/config"
	"credex/internal/platform/health"
	"credex/internal/platform/logger"
	httptransport "credex/internal/transport/http"
	trusthandler "credex/internal/trust/handler"
	vhandler "credex/internal/verification/handler"
	vmetrics "credex/internal/verification/metrics"
	vservice "credex/internal/verification/service"
	"credex/internal/verification/workers/cleanup"
	"credex/pkg/platform/httpclient"
	request "credex/pkg/platform/middleware/request"
	"credex/pkg/platform/tracer"
)

const (
	walletDID      = "did:credex:wallet"
	seedActor      = "startup-seed"
	serverName     = "credex"
	readHeaderWait = 10 * time.Second
)

// main loads configuration, wires the services and runs until SIGINT or
// SIGTERM. Business logic lives in the internal service packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	log.InfoContext(ctx, "initializing "+serverName,
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"storage", cfg.Storage.Backend,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	probes := health.New(cfg.Environment)
	trc := tracer.NewOTel()

	infra, err := openInfra(ctx, cfg, reg, log)
	if err != nil {
		return err
	}
	defer infra.Close(log)
	infra.registerChecks(probes)

	// Credential store
	persistence, err := credentialPersistence(cfg, infra)
	if err != nil {
		return err
	}
	credentials, err := credservice.NewService(ctx, persistence,
		credservice.WithLogger(log),
		credservice.WithMetrics(credmetrics.New(reg)),
	)
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}

	// Trust registry
	registry, err := trustRegistry(ctx, cfg, infra, reg, trc, log)
	if err != nil {
		return err
	}

	// Matcher
	strategy, err := matcher.StrategyByName(cfg.Verification.Selection)
	if err != nil {
		return err
	}
	match := matcher.New(credentials, matcher.WithStrategy(strategy), matcher.WithLogger(log))

	// Verification sessions
	sessions := vservice.NewManager(sessionStore(infra, log), registry,
		vservice.WithLogger(log),
		vservice.WithMetrics(vmetrics.New(reg)),
		vservice.WithTracer(trc),
	)

	// Audit
	auditStore := auditSink(cfg, infra)
	auditor := audit.NewPublisher(auditStore,
		audit.WithAsyncBuffer(256),
		audit.WithPublisherLogger(log),
		audit.WithPublisherMetrics(audit.NewMetrics(reg)),
	)
	defer auditor.Close()

	// Inbox
	router := inboxservice.NewRouter(inboxstore.NewInMemory(cfg.Inbox.GracePeriod), credentials, match, sessions,
		inboxservice.WithLogger(log),
		inboxservice.WithMetrics(inboxmetrics.New(reg)),
		inboxservice.WithTracer(trc),
		inboxservice.WithAuditor(auditor),
		inboxservice.WithCallbackNotifier(callback.NewHTTPNotifier(
			httpclient.New(cfg.Verification.CallbackTimeout, 0, log), log)),
		inboxservice.WithWalletIdentity(walletDID, "http://"+advertisedHost(cfg.Addr)+"/didcomm"),
	)

	// Background sweeps
	sweeper, err := cleanup.New(sessions,
		cleanup.WithCleanupInterval(sweepInterval(cfg)),
		cleanup.WithPendingTimeout(cfg.Verification.PendingTimeout),
		cleanup.WithRetention(cfg.Verification.Retention),
		cleanup.WithNotificationPurger(router),
		cleanup.WithCleanupLogger(log),
	)
	if err != nil {
		return err
	}

	handler := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:     log,
		Timeout:    cfg.RequestTimeout,
		AdminToken: cfg.AdminToken,
		Metrics:    request.NewMetrics(reg),
		Gatherer:   reg,
		Probes:     probes,
		Public: []httptransport.Registrar{
			credhandler.New(credentials, log),
			inboxhandler.New(router, log),
			vhandler.New(sessions, log),
		},
		Admin: []httptransport.Registrar{
			trusthandler.New(registry, log),
		},
	})
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderWait,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.InfoContext(gctx, "starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := sweeper.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if infra.redis != nil {
		g.Go(func() error {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					infra.redis.RecordPoolStats()
				case <-gctx.Done():
					return nil
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// sweepInterval runs the sweep at least as often as the inbox purge.
func sweepInterval(cfg config.Server) time.Duration {
	interval := cfg.Inbox.PurgeInterval
	if cfg.Verification.PendingTimeout > 0 && cfg.Verification.SweepInterval < interval {
		interval = cfg.Verification.SweepInterval
	}
	return interval
}

func advertisedHost(addr string) string {
	if len(addr) > 0 && addr[0] == ':' {
		return "localhost" + addr
	}
	return addr
}
