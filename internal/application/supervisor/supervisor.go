// ABOUTME: Supervisor that launches the stream client as a detached goroutine
// ABOUTME: Recovers panics, logs unexpected exits, and optionally respawns the task
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/harper/nowplaying/internal/infrastructure/clock"
)

var ErrPanic = errors.New("task panicked")

// Task is a long-running unit of work. It should only return once ctx is
// cancelled; any other return is treated as a fault.
type Task func(ctx context.Context) error

type Config struct {
	Name string

	// Restart respawns the task after Backoff when it exits unexpectedly.
	// When false the fault is logged and the task stays down.
	Restart bool
	Backoff time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

type Supervisor struct {
	task    Task
	name    string
	restart bool
	backoff time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	started  atomic.Bool
	running  atomic.Bool
	restarts atomic.Uint64
	faults   atomic.Uint64
	done     chan struct{}
}

func New(cfg Config, task Task) *Supervisor {
	if cfg.Name == "" {
		cfg.Name = "task"
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 5 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Supervisor{
		task:    task,
		name:    cfg.Name,
		restart: cfg.Restart,
		backoff: cfg.Backoff,
		clock:   cfg.Clock,
		logger:  cfg.Logger.With("task", cfg.Name),
		done:    make(chan struct{}),
	}
}

// Start spawns the task and returns immediately. Calling it again is a no-op.
func (s *Supervisor) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.loop(ctx)
}

// Wait blocks until the supervised goroutine has finished. It returns at
// once if Start was never called.
func (s *Supervisor) Wait() {
	if !s.started.Load() {
		return
	}
	<-s.done
}

// Done is closed when the supervised goroutine has finished.
func (s *Supervisor) Done() <-chan struct{} {
	return s.done
}

func (s *Supervisor) Running() bool {
	return s.running.Load()
}

func (s *Supervisor) Restarts() uint64 {
	return s.restarts.Load()
}

func (s *Supervisor) Faults() uint64 {
	return s.faults.Load()
}

func (s *Supervisor) loop(ctx context.Context) {
	defer close(s.done)

	for {
		s.running.Store(true)
		err := s.runOnce(ctx)
		s.running.Store(false)

		if ctx.Err() != nil {
			s.logger.Info("task stopped")
			return
		}

		s.faults.Add(1)
		if !s.restart {
			s.logger.Error("task exited unexpectedly, not restarting", "error", err)
			return
		}
		s.logger.Error("task exited unexpectedly, restarting", "error", err, "backoff", s.backoff)

		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(s.backoff):
		}
		s.restarts.Add(1)
	}
}

func (s *Supervisor) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()

	if err := s.task(ctx); err != nil {
		return err
	}
	return errors.New("task returned without error")
}
