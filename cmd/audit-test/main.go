// Command audit-test floods the audit publisher to observe its drop
// behavior and metrics under backpressure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credex/internal/audit"
	id "credex/pkg/domain"
)

// slowStore delays every append so the publisher queue fills up.
type slowStore struct {
	inner *audit.InMemoryStore
	delay time.Duration
}

func (s slowStore) Append(ctx context.Context, event audit.Event) error {
	time.Sleep(s.delay)
	return s.inner.Append(ctx, event)
}

func main() {
	buffer := flag.Int("buffer", 10, "publisher buffer size")
	flood := flag.Int("flood", 50, "events emitted in the flood phase")
	delay := flag.Duration("delay", 20*time.Millisecond, "simulated store latency")
	addr := flag.String("metrics-addr", ":9090", "metrics listen address, empty to disable")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	reg := prometheus.NewRegistry()
	metrics := audit.NewMetrics(reg)
	store := audit.NewInMemoryStore()
	publisher := audit.NewPublisher(
		slowStore{inner: store, delay: *delay},
		audit.WithAsyncBuffer(*buffer),
		audit.WithPublisherMetrics(metrics),
		audit.WithPublisherLogger(logger),
	)

	if *addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			fmt.Printf("Metrics available at http://localhost%s/metrics\n", *addr)
			if err := http.ListenAndServe(*addr, mux); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	ctx := context.Background()

	fmt.Println("\n=== Audit Publisher Test ===")

	fmt.Println("1. Emitting 5 paced events (should all be persisted)...")
	for i := range 5 {
		emit(ctx, publisher, audit.EventVerificationCompleted, fmt.Sprintf("paced event %d", i+1))
		time.Sleep(*delay * 2)
	}

	fmt.Printf("\n2. Flooding with %d events (buffer size is %d)...\n", *flood, *buffer)
	for i := range *flood {
		emit(ctx, publisher, audit.EventCallbackFailed, fmt.Sprintf("flood event %d", i+1))
	}

	publisher.Close()

	fmt.Println("\n3. Checking store contents...")
	all, _ := store.ListAll(ctx)
	fmt.Printf("   Total events in store: %d of %d emitted\n", len(all), 5+*flood)

	fmt.Println("\n=== Metrics Summary ===")
	families, err := reg.Gather()
	if err != nil {
		logger.Error("gather metrics", "error", err)
		os.Exit(1)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			switch {
			case m.GetCounter() != nil:
				fmt.Printf("   %s %.0f\n", mf.GetName(), m.GetCounter().GetValue())
			case m.GetGauge() != nil:
				fmt.Printf("   %s %.0f\n", mf.GetName(), m.GetGauge().GetValue())
			}
		}
	}

	if *addr != "" {
		fmt.Println("\nPress Ctrl+C to exit...")
		select {}
	}
}

func emit(ctx context.Context, p *audit.Publisher, action audit.AuditEvent, reason string) {
	notificationID := id.NewNotificationID()
	_ = p.Emit(ctx, audit.Event{
		Action:    action,
		Subject:   notificationID.String(),
		SessionID: id.NewSessionID().String(),
		Requester: "audit-test",
		Reason:    reason,
	})
}
