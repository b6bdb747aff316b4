package server

import (
	"encoding/json"
	"net/http"

	"github.com/desertthunder/voxup/internal/tasks"
)

// QueueSource is the read-only queue surface the status endpoint reports on.
type QueueSource interface {
	Uploading() []string
	Stats() tasks.QueueStats
	Idle() bool
}

// CompletedSource lists completed locator keys.
type CompletedSource interface {
	Keys() []string
}

// Status is the body of GET /status.
type Status struct {
	Idle      bool             `json:"idle"`
	Uploading []string         `json:"uploading"`
	Uploaded  []string         `json:"uploaded"`
	Pending   int              `json:"pending"`
	Stats     tasks.QueueStats `json:"stats"`
}

// StatusHandler reports live queue state as JSON.
type StatusHandler struct {
	queue  QueueSource
	ledger CompletedSource
}

// NewStatusHandler creates a [StatusHandler].
func NewStatusHandler(queue QueueSource, ledger CompletedSource) *StatusHandler {
	return &StatusHandler{queue: queue, ledger: ledger}
}

// Routes returns the HTTP routes this handler serves.
func (h *StatusHandler) Routes() []string {
	return []string{"/status"}
}

func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats := h.queue.Stats()
	status := Status{
		Idle:      h.queue.Idle(),
		Uploading: h.queue.Uploading(),
		Uploaded:  h.ledger.Keys(),
		Pending:   stats.Pending,
		Stats:     stats,
	}
	if status.Uploading == nil {
		status.Uploading = []string{}
	}
	if status.Uploaded == nil {
		status.Uploaded = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewStatusRouter builds the router for the local status server.
//
// metrics may be nil, in which case /metrics is not served.
func NewStatusRouter(status *StatusHandler, metrics http.Handler, middleware ...Middleware) *BasicRouter {
	r := NewBasicRouter()
	r.Use(middleware...)
	r.Handler(status)
	r.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	}))
	if metrics != nil {
		r.Handle(http.MethodGet, "/metrics", metrics)
	}
	return r
}
