// ABOUTME: Tests for the reconnecting stream client
// ABOUTME: Drives sessions through pipes and the reconnect backoff through a fake clock
package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harper/nowplaying/internal/domain/snapshot"
	"github.com/harper/nowplaying/internal/domain/song"
	"github.com/harper/nowplaying/internal/infrastructure/bus"
	"github.com/harper/nowplaying/internal/infrastructure/clock"
	"github.com/harper/nowplaying/internal/infrastructure/sse"
)

type session struct {
	body *io.PipeReader
	err  error
}

// fakeSource hands out one queued session per Connect call.
type fakeSource struct {
	sessions chan session
	connects atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{sessions: make(chan session, 4)}
}

func (f *fakeSource) Connect(ctx context.Context) (io.ReadCloser, error) {
	f.connects.Add(1)
	select {
	case s := <-f.sessions:
		if s.err != nil {
			return nil, s.err
		}
		go func() {
			<-ctx.Done()
			s.body.CloseWithError(ctx.Err())
		}()
		return s.body, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// queue registers a new streaming session and returns its writer.
func (f *fakeSource) queue() *io.PipeWriter {
	pr, pw := io.Pipe()
	f.sessions <- session{body: pr}
	return pw
}

type harness struct {
	source *fakeSource
	clock  *clock.FakeClock
	store  *snapshot.Store
	bus    *bus.Bus
	sub    *bus.Subscription
	client *Client
	cancel context.CancelFunc
	done   chan error
}

func start(t *testing.T) *harness {
	t.Helper()

	clk := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	h := &harness{
		source: newFakeSource(),
		clock:  clk,
		store:  snapshot.New(clk.Now),
		bus:    bus.New(),
		done:   make(chan error, 1),
	}
	h.sub = h.bus.Subscribe(16)
	h.client = New(Config{
		Backoff: 5 * time.Second,
		Clock:   h.clock,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, h.source, sse.NewChunkParser(0), h.store, h.bus)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.client.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
			t.Error("client did not stop")
		}
	})
	return h
}

func (h *harness) next(t *testing.T) bus.Message {
	t.Helper()
	select {
	case msg := <-h.sub.C():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for publish")
		return bus.Message{}
	}
}

func write(t *testing.T, w *io.PipeWriter, s string) {
	t.Helper()
	_, err := w.Write([]byte(s))
	require.NoError(t, err)
}

func TestClient_AppliesAndPublishes(t *testing.T) {
	h := start(t)
	w := h.source.queue()

	write(t, w, "data: {\"title\":\"Song A\",\"artist\":\"Artist A\"}\n\n")

	msg := h.next(t)
	require.Equal(t, song.TopicUpdate, msg.Topic)
	require.Equal(t, song.Info{Title: "Song A", Artist: "Artist A"}, msg.Song)
	require.Equal(t, msg.Song, h.store.Read())
	require.Equal(t, StateStreaming, h.client.State())

	at, ok := h.store.UpdatedAt()
	require.True(t, ok)
	require.Equal(t, h.clock.Now(), at)
}

func TestClient_DefaultsMissingArtist(t *testing.T) {
	h := start(t)
	w := h.source.queue()

	write(t, w, "data: {\"title\":\"Song B\"}\n\n")

	msg := h.next(t)
	require.Equal(t, song.Info{Title: "Song B", Artist: "Unknown Artist"}, msg.Song)
	require.Equal(t, msg.Song, h.store.Read())
}

func TestClient_KeepAliveLeavesStoreUntouched(t *testing.T) {
	h := start(t)
	w := h.source.queue()

	write(t, w, ": keep-alive\n\n")
	require.Equal(t, song.Placeholder(), h.store.Read())

	write(t, w, "data: {\"title\":\"T\",\"artist\":\"A\"}\n\n")
	msg := h.next(t)
	require.Equal(t, "T", msg.Song.Title)
	require.Equal(t, uint64(1), h.bus.Published())
}

func TestClient_OrderAndRepeatedFrames(t *testing.T) {
	h := start(t)
	w := h.source.queue()

	frames := []string{
		"data: {\"title\":\"1\",\"artist\":\"a\"}\n\n",
		"data: {\"title\":\"2\",\"artist\":\"b\"}\n\n",
		"data: {\"title\":\"2\",\"artist\":\"b\"}\n\n",
	}
	for _, f := range frames {
		write(t, w, f)
	}

	require.Equal(t, "1", h.next(t).Song.Title)
	require.Equal(t, "2", h.next(t).Song.Title)
	require.Equal(t, "2", h.next(t).Song.Title)
	require.Equal(t, song.Info{Title: "2", Artist: "b"}, h.store.Read())
	require.Equal(t, uint64(3), h.client.Stats().Applied)
}

func TestClient_ReconnectsAfterCleanEOF(t *testing.T) {
	h := start(t)
	w := h.source.queue()

	write(t, w, "data: {\"title\":\"First\",\"artist\":\"A\"}\n\n")
	h.next(t)
	require.NoError(t, w.Close())

	h.clock.WaitForTimers(1)
	stats := h.client.Stats()
	require.Equal(t, StateClosed, stats.State)
	require.Equal(t, uint64(1), stats.Closed)
	require.Equal(t, uint64(1), stats.Attempts)

	w2 := h.source.queue()
	h.clock.Advance(5 * time.Second)

	write(t, w2, "data: {\"title\":\"Second\",\"artist\":\"B\"}\n\n")
	require.Equal(t, "Second", h.next(t).Song.Title)
	require.Equal(t, uint64(2), h.client.Stats().Attempts)
	require.Equal(t, int32(2), h.source.connects.Load())
}

func TestClient_NoReconnectBeforeBackoffElapses(t *testing.T) {
	h := start(t)
	w := h.source.queue()
	require.NoError(t, w.Close())

	h.clock.WaitForTimers(1)
	h.clock.Advance(4 * time.Second)

	require.Equal(t, int32(1), h.source.connects.Load())
	require.Equal(t, 1, h.clock.PendingCount())
}

func TestClient_ConnectFailureRetries(t *testing.T) {
	h := start(t)
	h.source.sessions <- session{err: errors.New("dial tcp: connection refused")}

	h.clock.WaitForTimers(1)
	stats := h.client.Stats()
	require.Equal(t, StateFailed, stats.State)
	require.Equal(t, uint64(1), stats.Failed)
	require.Equal(t, song.Placeholder(), h.store.Read())

	w := h.source.queue()
	h.clock.Advance(5 * time.Second)
	write(t, w, "data: {\"title\":\"Recovered\",\"artist\":\"R\"}\n\n")
	require.Equal(t, "Recovered", h.next(t).Song.Title)
}

func TestClient_MidStreamFailureKeepsLastGoodValue(t *testing.T) {
	h := start(t)
	w := h.source.queue()

	write(t, w, "data: {\"title\":\"Good\",\"artist\":\"G\"}\n\n")
	h.next(t)
	w.CloseWithError(errors.New("connection reset by peer"))

	h.clock.WaitForTimers(1)
	require.Equal(t, StateFailed, h.client.State())
	require.Equal(t, song.Info{Title: "Good", Artist: "G"}, h.store.Read())
}

func TestClient_CancelDuringBackoff(t *testing.T) {
	h := start(t)
	w := h.source.queue()
	require.NoError(t, w.Close())
	h.clock.WaitForTimers(1)

	h.cancel()
	select {
	case err := <-h.done:
		require.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Equal(t, StateIdle, h.client.State())
}

func TestClient_CancelWhileStreaming(t *testing.T) {
	h := start(t)
	w := h.source.queue()
	write(t, w, "data: {\"title\":\"Live\",\"artist\":\"L\"}\n\n")
	h.next(t)

	h.cancel()
	select {
	case err := <-h.done:
		require.ErrorIs(t, err, context.Canceled)
		h.done <- err
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	require.Equal(t, uint64(0), h.client.Stats().Failed)
}

func TestState_String(t *testing.T) {
	require.Equal(t, "idle", StateIdle.String())
	require.Equal(t, "streaming", StateStreaming.String())
	require.Equal(t, "failed", StateFailed.String())
	require.Equal(t, "unknown", State(99).String())
}
