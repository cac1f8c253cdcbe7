// ABOUTME: Now-playing song model and the wire event it is decoded from
// ABOUTME: Applies fallback values so a published song never has missing fields
package song

// TopicUpdate is the notification topic every applied update is published on.
const TopicUpdate = "song-info-update"

const (
	UnknownTitle  = "Unknown Title"
	UnknownArtist = "Unknown Artist"

	placeholderTitle = "Loading..."
)

// Info is the current-value snapshot shown to consumers.
type Info struct {
	Title  string `json:"title" cbor:"title"`
	Artist string `json:"artist" cbor:"artist"`
}

// IncomingEvent is one decoded "data:" payload. Absent or null fields stay nil.
type IncomingEvent struct {
	Title  *string `json:"title"`
	Artist *string `json:"artist"`
}

// Placeholder is the value held before the first update arrives.
func Placeholder() Info {
	return Info{Title: placeholderTitle, Artist: ""}
}

// FromEvent converts a wire event into an Info, substituting the
// Unknown* values for absent fields.
func FromEvent(ev IncomingEvent) Info {
	info := Info{Title: UnknownTitle, Artist: UnknownArtist}
	if ev.Title != nil {
		info.Title = *ev.Title
	}
	if ev.Artist != nil {
		info.Artist = *ev.Artist
	}
	return info
}
