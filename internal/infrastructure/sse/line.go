// ABOUTME: Reassembling stream parser following W3C server-sent event framing
// ABOUTME: Buffers across reads, frames on blank lines, joins multi-line data fields
package sse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"sync/atomic"
	"unicode/utf8"

	"github.com/harper/nowplaying/internal/domain/song"
)

// LineParser is the strict alternative to ChunkParser. Comment lines and
// the event, id and retry fields are ignored.
type LineParser struct {
	bufferSize int
	skipped    atomic.Uint64
}

func NewLineParser(bufferSize int) *LineParser {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &LineParser{bufferSize: bufferSize}
}

// Skipped counts complete frames whose payload did not decode.
func (p *LineParser) Skipped() uint64 {
	return p.skipped.Load()
}

func (p *LineParser) Events(r io.Reader) iter.Seq2[song.IncomingEvent, error] {
	return func(yield func(song.IncomingEvent, error) bool) {
		reader := bufio.NewReaderSize(r, p.bufferSize)

		var dataLines []string
		hasData := false

		// flush emits the accumulated frame. It returns false when the
		// consumer stopped iterating.
		flush := func() bool {
			if !hasData {
				return true
			}
			payload := strings.Join(dataLines, "\n")
			dataLines = dataLines[:0]
			hasData = false

			ev, ok := decodePayload(payload)
			if !ok {
				p.skipped.Add(1)
				return true
			}
			return yield(ev, nil)
		}

		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				if !utf8.ValidString(line) {
					yield(song.IncomingEvent{}, ErrInvalidUTF8)
					return
				}

				line = strings.TrimRight(line, "\r\n")
				switch {
				case line == "":
					if !flush() {
						return
					}
				case strings.HasPrefix(line, ":"):
				default:
					field, value, _ := strings.Cut(line, ":")
					if field == "data" {
						dataLines = append(dataLines, strings.TrimPrefix(value, " "))
						hasData = true
					}
				}
			}

			if err != nil {
				// A frame without its terminating blank line is incomplete.
				if errors.Is(err, io.EOF) {
					return
				}
				yield(song.IncomingEvent{}, fmt.Errorf("read body: %w", err))
				return
			}
		}
	}
}
