package handlers

import (
	"net/http"
	"strconv"
	"sync"

	"github.com/catalystcommunity/app-utils-go/logging"
	"github.com/catalystcommunity/enginectl/internal/loghub"
	"github.com/catalystcommunity/enginectl/internal/metrics"
	"github.com/catalystcommunity/enginectl/internal/middleware"
	"github.com/gorilla/websocket"
)

var logsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (api *API) handleRecentLogs(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 100)
	tag := r.URL.Query().Get("tag")
	entries := api.Facade.Logs.Recent(limit, tag)
	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// handleLogsWebSocket upgrades to a WebSocket and streams log entries as
// they are emitted (spec §6.2). History is replayed on connect unless the
// caller opts out with ?history=false; inbound frames are ignored.
func (api *API) handleLogsWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := logsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Log.WithField("err", err).Warn("websocket upgrade failed")
		return
	}

	sub := &wsLogSubscriber{conn: conn}

	if r.URL.Query().Get("history") != "false" {
		limit := queryInt(r, "limit", 100)
		tag := r.URL.Query().Get("tag")
		for _, entry := range api.Facade.Logs.Recent(limit, tag) {
			if sub.Send(entry) != nil {
				sub.Close()
				return
			}
		}
	}

	api.Facade.Logs.Subscribe(sub)
	metrics.WebSocketSubscribers.Inc()
	defer func() {
		api.Facade.Logs.Unsubscribe(sub)
		sub.Close()
		metrics.WebSocketSubscribers.Dec()
	}()

	// Drain and discard inbound frames so the connection's read deadline
	// machinery notices a client disconnect; the protocol is one-way.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// wsLogSubscriber adapts a gorilla/websocket connection to loghub.Subscriber.
// Writes are serialized with a mutex since the hub's dispatch goroutine and
// an inbound keepalive reader could otherwise race on the same connection.
type wsLogSubscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (s *wsLogSubscriber) Send(entry loghub.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteJSON(map[string]interface{}{
		"type": "log",
		"data": entry,
	})
}

func (s *wsLogSubscriber) Close() {
	s.conn.Close()
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}
