// ABOUTME: Manager that wires the snapshot store, stream client, bus, and supervisor
// ABOUTME: Owns their lifecycle and serves the synchronous current-song query
package manager

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/harper/nowplaying/internal/application/config"
	"github.com/harper/nowplaying/internal/application/supervisor"
	"github.com/harper/nowplaying/internal/domain"
	"github.com/harper/nowplaying/internal/domain/snapshot"
	"github.com/harper/nowplaying/internal/domain/song"
	"github.com/harper/nowplaying/internal/infrastructure/bus"
	"github.com/harper/nowplaying/internal/infrastructure/client"
	"github.com/harper/nowplaying/internal/infrastructure/clock"
	"github.com/harper/nowplaying/internal/infrastructure/source"
	"github.com/harper/nowplaying/internal/infrastructure/sse"
)

// Options overrides collaborators that NewFromConfig would otherwise build.
// Zero values mean "build from config".
type Options struct {
	Source domain.StreamSource
	Clock  clock.Clock
	Logger *slog.Logger
}

type skipCounter interface {
	Skipped() uint64
}

type Manager struct {
	store      *snapshot.Store
	bus        *bus.Bus
	client     *client.Client
	parser     domain.Parser
	supervisor *supervisor.Supervisor
	subBuffer  int
	logger     *slog.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Status is the health view reported over HTTP.
type Status struct {
	State        string     `json:"state"`
	Attempts     uint64     `json:"attempts"`
	Applied      uint64     `json:"applied"`
	Closed       uint64     `json:"closed"`
	Failed       uint64     `json:"failed"`
	Skipped      uint64     `json:"skipped"`
	Published    uint64     `json:"published"`
	Subscribers  int        `json:"subscribers"`
	TaskRunning  bool       `json:"task_running"`
	TaskRestarts uint64     `json:"task_restarts"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func NewFromConfig(cfg *config.Config, opts Options) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	src := opts.Source
	if src == nil {
		src = source.NewHTTP(source.HTTPConfig{
			URL:            cfg.Source.URL,
			ConnectTimeout: cfg.ConnectTimeout(),
			Headers:        cfg.Source.RequestHeaders,
		})
	}

	var parser domain.Parser
	switch cfg.Stream.Parser {
	case config.ParserLine:
		parser = sse.NewLineParser(cfg.Stream.ReadBufferBytes)
	default:
		parser = sse.NewChunkParser(cfg.Stream.ReadBufferBytes)
	}

	store := snapshot.New(clk.Now)
	b := bus.New()

	c := client.New(client.Config{
		Backoff: cfg.Backoff(),
		Clock:   clk,
		Logger:  logger.With("component", "client"),
	}, src, parser, store, b)

	sup := supervisor.New(supervisor.Config{
		Name:    "stream-client",
		Restart: cfg.Supervisor.Restart,
		Backoff: cfg.Backoff(),
		Clock:   clk,
		Logger:  logger.With("component", "supervisor"),
	}, c.Run)

	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		store:      store,
		bus:        b,
		client:     c,
		parser:     parser,
		supervisor: sup,
		subBuffer:  cfg.Bus.SubscriberBuffer,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start launches the stream client in the background and returns at once.
func (m *Manager) Start() error {
	m.supervisor.Start(m.ctx)
	m.logger.Info("stream client started")
	return nil
}

// Shutdown cancels the client, waits for it to exit, and closes the bus.
func (m *Manager) Shutdown() error {
	m.stopOnce.Do(func() {
		m.cancel()
		m.supervisor.Wait()
		m.bus.Close()
	})
	return nil
}

// CurrentSong returns the current snapshot. It never blocks on the network.
func (m *Manager) CurrentSong() song.Info {
	return m.store.Read()
}

func (m *Manager) Subscribe() *bus.Subscription {
	return m.bus.Subscribe(m.subBuffer)
}

func (m *Manager) Unsubscribe(sub *bus.Subscription) {
	m.bus.Unsubscribe(sub)
}

func (m *Manager) Status() Status {
	stats := m.client.Stats()
	st := Status{
		State:        stats.State.String(),
		Attempts:     stats.Attempts,
		Applied:      stats.Applied,
		Closed:       stats.Closed,
		Failed:       stats.Failed,
		Published:    m.bus.Published(),
		Subscribers:  m.bus.SubscriberCount(),
		TaskRunning:  m.supervisor.Running(),
		TaskRestarts: m.supervisor.Restarts(),
	}
	if sc, ok := m.parser.(skipCounter); ok {
		st.Skipped = sc.Skipped()
	}
	if t, ok := m.store.UpdatedAt(); ok {
		st.UpdatedAt = &t
	}
	return st
}
