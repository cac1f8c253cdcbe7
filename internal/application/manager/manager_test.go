// ABOUTME: Tests for the manager lifecycle and current-song query
// ABOUTME: Runs the full pipeline against an httptest event stream
package manager

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/harper/nowplaying/internal/application/config"
	"github.com/harper/nowplaying/internal/domain/song"
)

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestManager_NewFromConfig(t *testing.T) {
	mgr, err := NewFromConfig(config.Default(), quietOptions())
	require.NoError(t, err)

	require.Equal(t, song.Info{Title: "Loading...", Artist: ""}, mgr.CurrentSong())

	st := mgr.Status()
	require.Equal(t, "idle", st.State)
	require.Nil(t, st.UpdatedAt)

	require.NoError(t, mgr.Shutdown())
}

func TestManager_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Stream.Parser = "bogus"

	_, err := NewFromConfig(cfg, quietOptions())
	require.Error(t, err)
}

func TestManager_StreamsIntoQuery(t *testing.T) {
	for _, parser := range []string{config.ParserChunk, config.ParserLine} {
		t.Run(parser, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				fmt.Fprint(w, "data: {\"title\":\"Song A\",\"artist\":\"Artist A\"}\n\n")
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			}))
			t.Cleanup(server.Close)

			cfg := config.Default()
			cfg.Source.URL = server.URL
			cfg.Stream.Parser = parser

			mgr, err := NewFromConfig(cfg, quietOptions())
			require.NoError(t, err)
			t.Cleanup(func() { mgr.Shutdown() })

			sub := mgr.Subscribe()
			require.NoError(t, mgr.Start())

			select {
			case msg := <-sub.C():
				require.Equal(t, song.TopicUpdate, msg.Topic)
				require.Equal(t, song.Info{Title: "Song A", Artist: "Artist A"}, msg.Song)
			case <-time.After(5 * time.Second):
				t.Fatal("no update published")
			}

			require.Equal(t, song.Info{Title: "Song A", Artist: "Artist A"}, mgr.CurrentSong())

			st := mgr.Status()
			require.Equal(t, "streaming", st.State)
			require.Equal(t, uint64(1), st.Applied)
			require.NotNil(t, st.UpdatedAt)
			require.True(t, st.TaskRunning)

			require.NoError(t, mgr.Shutdown())
			require.NoError(t, mgr.Shutdown())

			_, ok := <-sub.C()
			require.False(t, ok)
		})
	}
}
