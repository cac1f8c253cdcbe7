// ABOUTME: Reconnecting client for the upstream now-playing event stream
// ABOUTME: Applies each decoded event to the snapshot store, publishes it, and retries forever
package client

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/harper/nowplaying/internal/domain"
	"github.com/harper/nowplaying/internal/domain/snapshot"
	"github.com/harper/nowplaying/internal/domain/song"
	"github.com/harper/nowplaying/internal/infrastructure/clock"
)

// DefaultBackoff is the fixed wait between a closed or failed session and
// the next connection attempt.
const DefaultBackoff = 5 * time.Second

type Config struct {
	Backoff time.Duration
	Clock   clock.Clock
	Logger  *slog.Logger
}

// Stats is a point-in-time view of the client's counters.
type Stats struct {
	State    State
	Attempts uint64
	Applied  uint64
	Closed   uint64
	Failed   uint64
}

type Client struct {
	source    domain.StreamSource
	parser    domain.Parser
	store     *snapshot.Store
	publisher domain.Publisher

	backoff time.Duration
	clock   clock.Clock
	logger  *slog.Logger

	state    atomic.Int32
	attempts atomic.Uint64
	applied  atomic.Uint64
	closed   atomic.Uint64
	failed   atomic.Uint64
}

func New(cfg Config, source domain.StreamSource, parser domain.Parser, store *snapshot.Store, publisher domain.Publisher) *Client {
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		source:    source,
		parser:    parser,
		store:     store,
		publisher: publisher,
		backoff:   cfg.Backoff,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
}

func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) Stats() Stats {
	return Stats{
		State:    c.State(),
		Attempts: c.attempts.Load(),
		Applied:  c.applied.Load(),
		Closed:   c.closed.Load(),
		Failed:   c.failed.Load(),
	}
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
}

// Run connects, drains events, and reconnects after a fixed backoff until
// ctx is cancelled. It only returns ctx.Err().
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(StateIdle)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		logger := c.logger.With("session", uuid.NewString())
		err := c.session(ctx, logger)

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err != nil {
			c.setState(StateFailed)
			c.failed.Add(1)
			logger.Warn("stream failed, reconnecting", "error", err, "backoff", c.backoff)
		} else {
			c.setState(StateClosed)
			c.closed.Add(1)
			logger.Info("stream closed by remote, reconnecting", "backoff", c.backoff)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.clock.After(c.backoff):
		}
		c.setState(StateIdle)
	}
}

// session runs one connection from connect to end of body. A nil return
// means the remote closed the stream cleanly.
func (c *Client) session(ctx context.Context, logger *slog.Logger) error {
	c.setState(StateConnecting)
	c.attempts.Add(1)

	body, err := c.source.Connect(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer body.Close()

	c.setState(StateStreaming)
	logger.Info("stream connected")

	return c.drain(body, logger)
}

func (c *Client) drain(body io.Reader, logger *slog.Logger) error {
	for ev, err := range c.parser.Events(body) {
		if err != nil {
			return err
		}

		info := song.FromEvent(ev)
		c.store.Replace(info)
		c.applied.Add(1)
		c.publisher.Publish(song.TopicUpdate, info)

		logger.Debug("song updated", "title", info.Title, "artist", info.Artist)
	}
	return nil
}
