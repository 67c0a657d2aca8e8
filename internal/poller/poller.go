package poller

import (
	"log/slog"
	"time"

	"github.com/rickgao/feedsync/internal/loop"
	"github.com/rickgao/feedsync/internal/metrics"
)

// Resource names used for logging and metrics.
const (
	ResourceFeed          = "feed"
	ResourceMessages      = "messages"
	ResourceNotifications = "notifications"
)

// Default intervals per resource.
const (
	DefaultFeedInterval          = 60 * time.Second
	DefaultMessagesInterval      = 15 * time.Second
	DefaultNotificationsInterval = 30 * time.Second
)

// Config holds scheduler configuration.
type Config struct {
	Resource string
	Interval time.Duration
}

// DefaultConfig returns the default interval for resource.
func DefaultConfig(resource string) Config {
	cfg := Config{Resource: resource, Interval: DefaultFeedInterval}
	switch resource {
	case ResourceMessages:
		cfg.Interval = DefaultMessagesInterval
	case ResourceNotifications:
		cfg.Interval = DefaultNotificationsInterval
	}
	return cfg
}

// Scheduler runs a poll function on the loop at a fixed interval. All
// methods must be called from the loop.
type Scheduler struct {
	cfg    Config
	loop   *loop.Loop
	poll   func()
	logger *slog.Logger

	ticker *loop.Ticker
	polls  int
}

// New creates a stopped Scheduler. poll runs on the loop and should start
// its fetch asynchronously.
func New(cfg Config, lp *loop.Loop, poll func(), logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:    cfg,
		loop:   lp,
		poll:   poll,
		logger: logger.With("resource", cfg.Resource),
	}
}

// Start polls immediately and then every interval. No-op when already
// running.
func (s *Scheduler) Start() {
	if s.ticker.Active() {
		return
	}

	s.logger.Info("polling fallback started", "interval", s.cfg.Interval)

	s.ticker = s.loop.Every(s.cfg.Interval, s.tick)
	s.tick()
}

// Stop cancels polling. No-op when not running.
func (s *Scheduler) Stop() {
	if !s.ticker.Active() {
		return
	}
	s.ticker.Stop()
	s.ticker = nil

	s.logger.Info("polling fallback stopped", "polls", s.polls)
}

// Active reports whether polling is running.
func (s *Scheduler) Active() bool {
	return s.ticker.Active()
}

// Polls returns the number of polls issued since creation.
func (s *Scheduler) Polls() int {
	return s.polls
}

func (s *Scheduler) tick() {
	s.polls++
	metrics.Polls.WithLabelValues(s.cfg.Resource).Inc()
	s.logger.Debug("polling", "poll", s.polls)
	s.poll()
}
