// ABOUTME: HTTP handlers for channel endpoints
// ABOUTME: Implements PCM stream, buffer stats, overwrite toggle, and health routes
package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/harper/sample-ring/internal/application/manager"
	"github.com/harper/sample-ring/internal/domain/channel"
)

// lookup resolves /{channel}/{action} paths.
func lookup(mgr *manager.Manager, w http.ResponseWriter, r *http.Request, action string) *channel.Channel {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[1] != action {
		http.NotFound(w, r)
		return nil
	}

	ch := mgr.Get(parts[0])
	if ch == nil {
		http.NotFound(w, r)
		return nil
	}
	return ch
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

type StreamHandler struct {
	mgr *manager.Manager
}

func NewStreamHandler(mgr *manager.Manager) *StreamHandler {
	return &StreamHandler{mgr: mgr}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch := lookup(h.mgr, w, r, "stream")
	if ch == nil {
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("X-Sample-Format", "f32le")
	w.Header().Set("X-Sample-Rate", strconv.Itoa(ch.SampleRate()))
	w.Header().Set("X-Channels", "1")
	w.Header().Set("X-Quantum", strconv.Itoa(ch.Quantum()))
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "close")

	w.WriteHeader(http.StatusOK)

	client := &channel.Client{ID: fmt.Sprintf("http-%p", r)}
	chunks := ch.Subscribe(client)
	defer ch.Unsubscribe(client)

	flusher, ok := w.(http.Flusher)
	if !ok {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			if _, err := w.Write(chunk); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

type StatsHandler struct {
	mgr *manager.Manager
}

func NewStatsHandler(mgr *manager.Manager) *StatsHandler {
	return &StatsHandler{mgr: mgr}
}

func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch := lookup(h.mgr, w, r, "stats")
	if ch == nil {
		return
	}

	writeJSON(w, ch.Snapshot())
}

// OverwriteHandler toggles overwrite mode: POST /{channel}/overwrite?on=true
type OverwriteHandler struct {
	mgr *manager.Manager
}

func NewOverwriteHandler(mgr *manager.Manager) *OverwriteHandler {
	return &OverwriteHandler{mgr: mgr}
}

func (h *OverwriteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ch := lookup(h.mgr, w, r, "overwrite")
	if ch == nil {
		return
	}

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	on, err := strconv.ParseBool(r.URL.Query().Get("on"))
	if err != nil {
		http.Error(w, "on must be true or false", http.StatusBadRequest)
		return
	}

	ch.SetOverwrite(on)

	type response struct {
		Overwrite bool `json:"overwrite"`
	}
	writeJSON(w, response{Overwrite: on})
}

type ChannelsHandler struct {
	mgr *manager.Manager
}

func NewChannelsHandler(mgr *manager.Manager) *ChannelsHandler {
	return &ChannelsHandler{mgr: mgr}
}

func (h *ChannelsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type channelInfo struct {
		ID            string `json:"id"`
		StreamURL     string `json:"stream_url"`
		StatsURL      string `json:"stats_url"`
		Listeners     int    `json:"listeners"`
		SourceHealthy bool   `json:"sourceHealthy"`
	}

	channels := h.mgr.List()
	result := make([]channelInfo, 0, len(channels))

	for _, ch := range channels {
		result = append(result, channelInfo{
			ID:            ch.ID(),
			StreamURL:     fmt.Sprintf("/%s/stream", ch.ID()),
			StatsURL:      fmt.Sprintf("/%s/stats", ch.ID()),
			Listeners:     ch.ClientCount(),
			SourceHealthy: ch.SourceHealthy(),
		})
	}

	writeJSON(w, result)
}

func HealthzHandler(w http.ResponseWriter, r *http.Request) {
	type response struct {
		OK bool `json:"ok"`
	}

	writeJSON(w, response{OK: true})
}

// Router dispatches /{channel}/{action} requests to the per-channel handlers.
func Router(mgr *manager.Manager) http.Handler {
	routes := map[string]http.Handler{
		"stream":    NewStreamHandler(mgr),
		"stats":     NewStatsHandler(mgr),
		"overwrite": NewOverwriteHandler(mgr),
	}

	mux := http.NewServeMux()
	mux.Handle("/channels", NewChannelsHandler(mgr))
	mux.HandleFunc("/healthz", HealthzHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.Trim(r.URL.Path, "/")
		if i := strings.LastIndexByte(path, '/'); i >= 0 {
			if h, ok := routes[path[i+1:]]; ok {
				h.ServeHTTP(w, r)
				return
			}
		}
		http.NotFound(w, r)
	})

	return mux
}
