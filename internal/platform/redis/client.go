package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"

	"credex/internal/platform/config"
)

// PoolMetrics mirrors go-redis pool statistics into prometheus.
type PoolMetrics struct {
	TotalConns prometheus.Gauge
	IdleConns  prometheus.Gauge
	StaleConns prometheus.Gauge
	Timeouts   prometheus.Counter
}

func NewPoolMetrics(reg prometheus.Registerer) *PoolMetrics {
	f := promauto.With(reg)
	return &PoolMetrics{
		TotalConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_redis_pool_total_conns",
			Help: "Number of total connections in the session store pool",
		}),
		IdleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_redis_pool_idle_conns",
			Help: "Number of idle connections in the session store pool",
		}),
		StaleConns: f.NewGauge(prometheus.GaugeOpts{
			Name: "credex_redis_pool_stale_conns",
			Help: "Number of stale connections removed from the pool",
		}),
		Timeouts: f.NewCounter(prometheus.CounterOpts{
			Name: "credex_redis_pool_timeouts_total",
			Help: "Number of times a connection was not obtained due to timeout",
		}),
	}
}

// Client is the redis connection backing verification sessions.
type Client struct {
	*redis.Client
	metrics      *PoolMetrics
	lastTimeouts uint32
}

type Option func(*Client)

func WithPoolMetrics(m *PoolMetrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// New connects using cfg. An empty URL means redis is not configured and
// yields nil, nil.
func New(ctx context.Context, cfg config.RedisConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	ro, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	ro.PoolSize = cfg.PoolSize
	ro.MinIdleConns = cfg.MinIdleConns
	ro.DialTimeout = cfg.DialTimeout
	ro.ReadTimeout = cfg.ReadTimeout
	ro.WriteTimeout = cfg.WriteTimeout

	rc := redis.NewClient(ro)
	if err := rc.Ping(ctx).Err(); err != nil {
		rc.Close() //nolint:errcheck // best-effort cleanup on init failure
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	c := &Client{Client: rc}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Health is the readiness check for redis.
func (c *Client) Health(ctx context.Context) error {
	if c == nil || c.Client == nil {
		return errors.New("redis not configured")
	}
	return c.Ping(ctx).Err()
}

// RecordPoolStats copies the current pool statistics into the metrics. It
// is called from a single ticker goroutine.
func (c *Client) RecordPoolStats() {
	if c.metrics == nil {
		return
	}
	stats := c.PoolStats()
	c.metrics.TotalConns.Set(float64(stats.TotalConns))
	c.metrics.IdleConns.Set(float64(stats.IdleConns))
	c.metrics.StaleConns.Set(float64(stats.StaleConns))
	if stats.Timeouts > c.lastTimeouts {
		c.metrics.Timeouts.Add(float64(stats.Timeouts - c.lastTimeouts))
	}
	c.lastTimeouts = stats.Timeouts
}
