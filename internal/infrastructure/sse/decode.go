// ABOUTME: Shared payload decoding for server-sent event frames
// ABOUTME: Malformed JSON is reported as not-ok, never as an error
package sse

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/harper/nowplaying/internal/domain/song"
)

// DataPrefix marks an event line on the upstream stream.
const DataPrefix = "data: "

// ErrInvalidUTF8 is yielded when a chunk is not valid UTF-8. It ends the session.
var ErrInvalidUTF8 = errors.New("stream chunk is not valid utf-8")

// decodePayload parses one JSON object payload. Only whitespace is trimmed.
// Keys match exactly: "Title" is an unknown field, not the title. A repeated
// title or artist key, a non-string value under either key, or trailing
// data after the object rejects the frame.
func decodePayload(payload string) (song.IncomingEvent, bool) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(payload)))

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return song.IncomingEvent{}, false
	}

	var ev song.IncomingEvent
	seen := make(map[string]bool, 2)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return song.IncomingEvent{}, false
		}
		key, ok := tok.(string)
		if !ok {
			return song.IncomingEvent{}, false
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return song.IncomingEvent{}, false
		}

		var dst **string
		switch key {
		case "title":
			dst = &ev.Title
		case "artist":
			dst = &ev.Artist
		default:
			continue
		}

		if seen[key] {
			return song.IncomingEvent{}, false
		}
		seen[key] = true

		if err := json.Unmarshal(raw, dst); err != nil {
			return song.IncomingEvent{}, false
		}
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return song.IncomingEvent{}, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return song.IncomingEvent{}, false
	}
	return ev, true
}
