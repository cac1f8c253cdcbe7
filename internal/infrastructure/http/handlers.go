// ABOUTME: HTTP handlers for the current song, the push event stream, health, and window commands
// ABOUTME: Republishes bus updates to downstream consumers as server-sent events
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/harper/nowplaying/internal/application/manager"
	"github.com/harper/nowplaying/internal/infrastructure/codec"
	"github.com/harper/nowplaying/internal/infrastructure/window"
)

// NewRouter mounts every route on a fresh mux.
func NewRouter(mgr *manager.Manager, cmds *window.Commands) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /current", NewCurrentHandler(mgr))
	mux.Handle("GET /events", NewEventsHandler(mgr))
	mux.Handle("GET /healthz", NewHealthzHandler(mgr))

	wh := NewWindowHandler(cmds)
	mux.HandleFunc("POST /window/always-on-top", wh.AlwaysOnTop)
	mux.HandleFunc("POST /window/mouse-passthrough", wh.MousePassthrough)
	mux.HandleFunc("POST /window/theme-color", wh.ThemeColor)
	mux.HandleFunc("GET /greet", wh.Greet)
	return mux
}

type CurrentHandler struct {
	mgr *manager.Manager
}

func NewCurrentHandler(mgr *manager.Manager) *CurrentHandler {
	return &CurrentHandler{mgr: mgr}
}

func (h *CurrentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	current := h.mgr.CurrentSong()

	w.Header().Set("Cache-Control", "no-store")

	if strings.Contains(r.Header.Get("Accept"), codec.ContentType) {
		data, err := codec.Marshal(current)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", codec.ContentType)
		w.Write(data)
		return
	}

	writeJSON(w, http.StatusOK, current)
}

// EventsHandler streams every published update as an SSE frame.
type EventsHandler struct {
	mgr *manager.Manager
}

func NewEventsHandler(mgr *manager.Manager) *EventsHandler {
	return &EventsHandler{mgr: mgr}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := h.mgr.Subscribe()
	defer h.mgr.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, ok := <-sub.C():
			if !ok {
				return
			}

			data, err := json.Marshal(msg.Song)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Topic, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type HealthzHandler struct {
	mgr *manager.Manager
}

func NewHealthzHandler(mgr *manager.Manager) *HealthzHandler {
	return &HealthzHandler{mgr: mgr}
}

func (h *HealthzHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK     bool           `json:"ok"`
		Stream manager.Status `json:"stream"`
	}

	writeJSON(w, http.StatusOK, response{OK: true, Stream: h.mgr.Status()})
}

// WindowHandler exposes the shell's window commands. Failures come back
// as a plain-text error string.
type WindowHandler struct {
	cmds *window.Commands
}

func NewWindowHandler(cmds *window.Commands) *WindowHandler {
	return &WindowHandler{cmds: cmds}
}

func (h *WindowHandler) AlwaysOnTop(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.cmds.SetAlwaysOnTop)
}

func (h *WindowHandler) MousePassthrough(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, h.cmds.SetMousePassthrough)
}

func (h *WindowHandler) setFlag(w http.ResponseWriter, r *http.Request, set func(bool) error) {
	flag, err := strconv.ParseBool(r.URL.Query().Get("flag"))
	if err != nil {
		http.Error(w, "flag must be true or false", http.StatusBadRequest)
		return
	}
	if err := set(flag); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WindowHandler) ThemeColor(w http.ResponseWriter, r *http.Request) {
	color, err := h.cmds.ChangeThemeColor(r.URL.Query().Get("color"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"color": color})
}

func (h *WindowHandler) Greet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": h.cmds.Greet(r.URL.Query().Get("name"))})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
