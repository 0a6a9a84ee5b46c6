package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/store"
)

// Change is one SSE payload.
type Change struct {
	Name  string `json:"name"`
	State any    `json:"state"`
}

// StreamManager fans store changes out to SSE subscribers.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[chan Change]struct{}
	stops       []store.Unsubscribe
	logger      *slog.Logger
}

// NewStreamManager creates an empty StreamManager. A nil logger discards.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[chan Change]struct{}),
		logger:      logger,
	}
}

// Track broadcasts every change of o under name.
func (sm *StreamManager) Track(name string, o store.Observable) {
	stop := o.Subscribe(func() {
		sm.Broadcast(Change{Name: name, State: o.Snapshot()})
	})
	sm.mu.Lock()
	sm.stops = append(sm.stops, stop)
	sm.mu.Unlock()
}

// Subscribe registers a buffered channel. The returned func unregisters and closes it.
func (sm *StreamManager) Subscribe() (<-chan Change, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Change, 16)
	sm.subscribers[ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if _, ok := sm.subscribers[ch]; ok {
			delete(sm.subscribers, ch)
			close(ch)
		}
	}
}

// Broadcast delivers c to every subscriber, dropping it for slow ones.
func (sm *StreamManager) Broadcast(c Change) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers {
		select {
		case ch <- c:
		default:
			sm.logger.Warn("SSE: Client buffer full, dropping change", "name", c.Name)
		}
	}
}

// Len reports the number of subscribers.
func (sm *StreamManager) Len() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers)
}

// Close stops tracking and disconnects every subscriber.
func (sm *StreamManager) Close() {
	sm.mu.Lock()
	stops := sm.stops
	sm.stops = nil
	for ch := range sm.subscribers {
		delete(sm.subscribers, ch)
		close(ch)
	}
	sm.mu.Unlock()

	for _, stop := range stops {
		stop()
	}
}

// SubscribeEvents handles GET /events. The optional watch query parameter
// is a comma separated list of observable names to forward.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	watch := parseWatch(r.URL.Query().Get("watch"))
	ch, cancel := s.streams.Subscribe()
	defer cancel()

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case change, ok := <-ch:
			if !ok {
				return
			}
			if watch != nil && !watch[change.Name] {
				continue
			}
			data, err := json.Marshal(change)
			if err != nil {
				s.logger.Error("SSE: Failed to encode change", "name", change.Name, "err", err)
				continue
			}
			fmt.Fprintf(w, "event: change\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
