// ABOUTME: Tests for song model conversion
// ABOUTME: Verifies fallback substitution for absent event fields
package song

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestFromEvent(t *testing.T) {
	tests := []struct {
		name string
		ev   IncomingEvent
		want Info
	}{
		{"both fields", IncomingEvent{Title: strp("Song A"), Artist: strp("Artist A")}, Info{"Song A", "Artist A"}},
		{"artist missing", IncomingEvent{Title: strp("Song B")}, Info{"Song B", UnknownArtist}},
		{"title missing", IncomingEvent{Artist: strp("Artist C")}, Info{UnknownTitle, "Artist C"}},
		{"both missing", IncomingEvent{}, Info{UnknownTitle, UnknownArtist}},
		{"empty strings kept", IncomingEvent{Title: strp(""), Artist: strp("")}, Info{"", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, FromEvent(tt.ev))
		})
	}
}

func TestPlaceholder(t *testing.T) {
	require.Equal(t, Info{Title: "Loading...", Artist: ""}, Placeholder())
}
