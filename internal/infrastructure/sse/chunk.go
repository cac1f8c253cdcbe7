// ABOUTME: Chunk-at-a-time stream parser for the upstream event stream
// ABOUTME: Each read is parsed on its own; frames split across reads are dropped
package sse

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/harper/nowplaying/internal/domain/song"
)

const DefaultBufferSize = 8192

// ChunkParser treats every Read result as one frame. A chunk that does not
// start with DataPrefix is ignored, which covers keep-alives and the tail
// half of a split frame. Partial frames are not buffered across reads.
type ChunkParser struct {
	bufferSize int
	skipped    atomic.Uint64
}

func NewChunkParser(bufferSize int) *ChunkParser {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &ChunkParser{bufferSize: bufferSize}
}

// Skipped counts chunks that yielded no event.
func (p *ChunkParser) Skipped() uint64 {
	return p.skipped.Load()
}

func (p *ChunkParser) Events(r io.Reader) iter.Seq2[song.IncomingEvent, error] {
	return func(yield func(song.IncomingEvent, error) bool) {
		buf := make([]byte, p.bufferSize)
		for {
			n, err := r.Read(buf)
			if n > 0 {
				chunk := buf[:n]
				if !utf8.Valid(chunk) {
					yield(song.IncomingEvent{}, ErrInvalidUTF8)
					return
				}

				if ev, ok := p.parseChunk(string(chunk)); ok {
					if !yield(ev, nil) {
						return
					}
				} else {
					p.skipped.Add(1)
				}
			}

			if err != nil {
				if !errors.Is(err, io.EOF) {
					yield(song.IncomingEvent{}, fmt.Errorf("read body: %w", err))
				}
				return
			}
		}
	}
}

func (p *ChunkParser) parseChunk(data string) (song.IncomingEvent, bool) {
	if !strings.HasPrefix(data, DataPrefix) {
		return song.IncomingEvent{}, false
	}
	for strings.HasPrefix(data, DataPrefix) {
		data = data[len(DataPrefix):]
	}
	return decodePayload(data)
}
