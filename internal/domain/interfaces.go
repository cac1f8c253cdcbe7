// ABOUTME: Domain interfaces for dependency inversion
// ABOUTME: Lets the stream client depend on abstractions, not concrete transports or sinks
package domain

import (
	"context"
	"io"
	"iter"

	"github.com/harper/nowplaying/internal/domain/song"
)

// StreamSource opens one connection session to the upstream event stream.
type StreamSource interface {
	Connect(ctx context.Context) (io.ReadCloser, error)
}

// Parser turns a response body into a lazy sequence of decoded events.
// A non-nil error is yielded at most once, as the last element, when the
// body fails mid-stream. A clean end of stream yields no error.
type Parser interface {
	Events(r io.Reader) iter.Seq2[song.IncomingEvent, error]
}

// Publisher receives every applied update, in order.
type Publisher interface {
	Publish(topic string, info song.Info)
}
