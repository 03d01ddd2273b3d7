package server

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// ShutdownHandler runs registered hooks in priority order when the process
// receives a termination signal or Shutdown is called. The serve command uses
// it to stop the HTTP listener before flushing traces and the audit log.
type ShutdownHandler struct {
	mu         sync.Mutex
	hooks      []shutdownHook
	timeout    time.Duration
	signals    []os.Signal
	shutdownCh chan struct{}
	doneCh     chan struct{}
	started    bool
	stopOnce   sync.Once
	doneOnce   sync.Once
}

type shutdownHook struct {
	name     string
	priority int
	fn       func(ctx context.Context) error
}

// ShutdownConfig configures the shutdown handler.
type ShutdownConfig struct {
	// Timeout bounds the whole hook sequence (default: 30s).
	Timeout time.Duration
	// Signals to listen for (default: SIGTERM, SIGINT).
	Signals []os.Signal
}

// DefaultShutdownConfig returns the default configuration.
func DefaultShutdownConfig() *ShutdownConfig {
	return &ShutdownConfig{
		Timeout: 30 * time.Second,
		Signals: []os.Signal{syscall.SIGTERM, syscall.SIGINT},
	}
}

// NewShutdownHandler creates a shutdown handler. A nil config selects
// DefaultShutdownConfig.
func NewShutdownHandler(config *ShutdownConfig) *ShutdownHandler {
	if config == nil {
		config = DefaultShutdownConfig()
	}
	return &ShutdownHandler{
		timeout:    config.Timeout,
		signals:    config.Signals,
		shutdownCh: make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// RegisterHook adds a named hook. Lower priority runs first; the HTTP
// listener should stop before the sinks it reports to.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, shutdownHook{name: name, priority: priority, fn: fn})
	sort.SliceStable(s.hooks, func(i, j int) bool {
		return s.hooks[i].priority < s.hooks[j].priority
	})
}

// Start begins listening for shutdown signals.
func (s *ShutdownHandler) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, s.signals...)

	go func() {
		select {
		case sig := <-sigCh:
			slog.Info("shutdown signal received", "signal", sig.String())
		case <-s.shutdownCh:
		}
		signal.Stop(sigCh)
		s.runHooks()
	}()
}

// Shutdown triggers the hook sequence without a signal.
func (s *ShutdownHandler) Shutdown() {
	s.mu.Lock()
	started := s.started
	s.mu.Unlock()
	if !started {
		return
	}
	s.stopOnce.Do(func() { close(s.shutdownCh) })
}

// Wait blocks until every hook has run.
func (s *ShutdownHandler) Wait() {
	<-s.doneCh
}

// WaitWithTimeout blocks until the hooks complete or the timeout elapses,
// reporting which happened.
func (s *ShutdownHandler) WaitWithTimeout(timeout time.Duration) bool {
	select {
	case <-s.doneCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done returns a channel that closes when shutdown is complete.
func (s *ShutdownHandler) Done() <-chan struct{} {
	return s.doneCh
}

func (s *ShutdownHandler) runHooks() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	s.mu.Lock()
	hooks := make([]shutdownHook, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook.fn(ctx); err != nil {
			slog.Error("shutdown hook failed", "hook", hook.name, "error", err)
		}
	}

	s.doneOnce.Do(func() { close(s.doneCh) })
}
