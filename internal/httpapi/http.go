package httpapi

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"example.com/clocksim/internal/cluster"
	"example.com/clocksim/internal/config"
	"example.com/clocksim/internal/node"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
)

type API struct {
	gm       *cluster.Manager
	cfg      config.Config
	upgrader websocket.Upgrader
}

func New(gm *cluster.Manager, cfg config.Config) *API {
	return &API{
		gm:  gm,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.AllowAll().Handler)

	r.Get("/api/config", a.handleConfig)
	r.Get("/api/vms", a.handleListVMs)
	r.Get("/api/vms/{id}/status", a.handleStatus)
	r.Get("/api/vms/{id}/events", a.handleEvents)        // mirrored events, ?from=&limit=
	r.Get("/api/vms/{id}/events/stream", a.handleStream) // SSE replay + live tail
	r.Get("/api/vms/{id}/events/ws", a.handleWebsocket)  // live tail only
	r.Get("/api/vms/{id}/events/export", a.handleExport)

	return r
}

func (a *API) nodeOf(r *http.Request) (*node.Node, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("bad vm id %q", raw)
	}
	n, ok := a.gm.Get(id)
	if !ok {
		return nil, fmt.Errorf("vm %d not found", id)
	}
	return n, nil
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, a.cfg)
}

func (a *API) handleListVMs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{"vms": a.gm.ListIDs()})
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	n, err := a.nodeOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, n.Status())
}

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	n, err := a.nodeOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if n.Store() == nil {
		http.Error(w, "event store disabled", http.StatusServiceUnavailable)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	recs, err := n.Store().List(parseFrom(r.URL.Query().Get("from")), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, recs)
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	n, err := a.nodeOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if n.Store() == nil {
		http.Error(w, "event store disabled", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=vm%d.json", n.ID))
	if err := n.Store().Export(w, n.ID, n.RunID); err != nil {
		log.Printf("[WARN] export vm %d: %v", n.ID, err)
	}
}

func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	n, err := a.nodeOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// subscribe before replaying so nothing recorded in between is lost
	ch, cancel := n.Hub().Subscribe()
	defer cancel()

	var replayed uint64
	if n.Store() != nil {
		_ = n.Store().Range(parseFrom(r.URL.Query().Get("from")), func(seq uint64, raw []byte) error {
			fmt.Fprintf(w, "data: %s\n\n", raw)
			replayed = seq
			return nil
		})
	}
	flusher.Flush()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if rec.Seq <= replayed {
				continue
			}
			bs, _ := json.Marshal(rec)
			fmt.Fprintf(w, "data: %s\n\n", bs)
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (a *API) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	n, err := a.nodeOf(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WARN] websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ch, cancel := n.Hub().Subscribe()
	defer cancel()

	// the read loop only notices the client going away
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("[WARN] websocket vm %d: %v", n.ID, err)
				}
				return
			}
		}
	}()

	for {
		select {
		case rec, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(rec); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func parseFrom(s string) uint64 {
	if s == "" {
		return 1
	}
	if n, err := strconv.ParseUint(s, 10, 64); err == nil {
		return n
	}
	return 1
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
