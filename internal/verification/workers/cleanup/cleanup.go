package cleanup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SessionSweeper expires stale pending sessions and removes old terminal ones.
type SessionSweeper interface {
	ExpirePending(ctx context.Context, now time.Time, timeout time.Duration) (int, error)
	PurgeCompleted(ctx context.Context, cutoff time.Time) (int, error)
}

// NotificationPurger removes decided notifications whose grace period ended.
type NotificationPurger interface {
	PurgeInert(ctx context.Context) (int, error)
}

// CleanupResult summarizes a single sweep.
type CleanupResult struct {
	ExpiredSessions     int
	PurgedSessions      int
	PurgedNotifications int
}

// CleanupService periodically sweeps verification sessions and inert notifications.
type CleanupService struct {
	sessions       SessionSweeper
	notifications  NotificationPurger
	interval       time.Duration
	pendingTimeout time.Duration
	retention      time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// CleanupOption configures CleanupService.
type CleanupOption func(*CleanupService)

// WithCleanupInterval overrides the sweep interval when greater than zero.
func WithCleanupInterval(interval time.Duration) CleanupOption {
	return func(s *CleanupService) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

// WithPendingTimeout enables expiry of pending sessions older than timeout.
func WithPendingTimeout(timeout time.Duration) CleanupOption {
	return func(s *CleanupService) {
		s.pendingTimeout = timeout
	}
}

// WithRetention enables removal of terminal sessions completed longer ago
// than retention. Zero keeps them forever.
func WithRetention(retention time.Duration) CleanupOption {
	return func(s *CleanupService) {
		s.retention = retention
	}
}

// WithNotificationPurger adds inbox purging to each sweep.
func WithNotificationPurger(p NotificationPurger) CleanupOption {
	return func(s *CleanupService) {
		s.notifications = p
	}
}

// WithCleanupLogger overrides the logger used for sweep errors.
func WithCleanupLogger(logger *slog.Logger) CleanupOption {
	return func(s *CleanupService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithCleanupClock(now func() time.Time) CleanupOption {
	return func(s *CleanupService) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a CleanupService with options applied.
func New(sessions SessionSweeper, opts ...CleanupOption) (*CleanupService, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session sweeper is required")
	}
	svc := &CleanupService{
		sessions: sessions,
		interval: time.Minute,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc, nil
}

// Start runs the sweep periodically until ctx is cancelled.
func (s *CleanupService) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.ErrorContext(ctx, "verification cleanup failed", "error", err)
			}
			if res.ExpiredSessions+res.PurgedSessions+res.PurgedNotifications > 0 {
				s.logger.InfoContext(ctx, "verification cleanup",
					"expired_sessions", res.ExpiredSessions,
					"purged_sessions", res.PurgedSessions,
					"purged_notifications", res.PurgedNotifications,
				)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single sweep. Each step runs even when an earlier one
// fails; errors are joined.
func (s *CleanupService) RunOnce(ctx context.Context) (CleanupResult, error) {
	now := s.now()
	var res CleanupResult
	var errs []error

	expired, err := s.sessions.ExpirePending(ctx, now, s.pendingTimeout)
	if err != nil {
		errs = append(errs, fmt.Errorf("expire pending sessions: %w", err))
	}
	res.ExpiredSessions = expired

	if s.retention > 0 {
		purged, err := s.sessions.PurgeCompleted(ctx, now.Add(-s.retention))
		if err != nil {
			errs = append(errs, fmt.Errorf("purge completed sessions: %w", err))
		}
		res.PurgedSessions = purged
	}

	if s.notifications != nil {
		purged, err := s.notifications.PurgeInert(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("purge inert notifications: %w", err))
		}
		res.PurgedNotifications = purged
	}

	if len(errs) > 0 {
		return res, errors.Join(errs...)
	}
	return res, nil
}
