package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"credex/pkg/platform/middleware/admin"
	request "credex/pkg/platform/middleware/request"
	"credex/pkg/platform/validation"
)

// Registrar mounts a domain handler's routes.
type Registrar interface {
	Register(r chi.Router)
}

// RouterConfig collects what NewRouter wires. Public routes are open; Admin
// routes sit behind the X-Admin-Token guard.
type RouterConfig struct {
	Logger     *slog.Logger
	Timeout    time.Duration
	AdminToken string
	Metrics    *request.Metrics
	Gatherer   prometheus.Gatherer
	Probes     Registrar
	Public     []Registrar
	Admin      []Registrar
}

// NewRouter wires all endpoints with the shared middleware stack.
// Handlers stay thin and delegate to domain services.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Timeout(cfg.Timeout))
	r.Use(request.ContentTypeJSON)
	r.Use(request.BodyLimit(validation.MaxBodySize))
	r.Use(request.Latency(cfg.Metrics))

	if cfg.Probes != nil {
		cfg.Probes.Register(r)
	}
	if cfg.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	for _, h := range cfg.Public {
		h.Register(r)
	}

	if len(cfg.Admin) > 0 {
		r.Group(func(ar chi.Router) {
			ar.Use(admin.RequireAdminToken(cfg.AdminToken, cfg.Logger))
			for _, h := range cfg.Admin {
				h.Register(ar)
			}
		})
	}

	return r
}
