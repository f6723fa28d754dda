package requestlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prasenjit/go-mockserver/internal/logging"
	"github.com/prasenjit/go-mockserver/internal/models"
)

const maxBacklog = 500

// WebSocketHandler streams new request records to websocket clients
type WebSocketHandler struct {
	service  *Service
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(service *Service, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		service: service,
		logger:  logging.OrNop(logger),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // dashboards may be served from another origin
			},
		},
	}
}

// ServeHTTP handles WebSocket upgrade and streaming.
//
// The query string narrows the stream with the same filters as the request
// list (method, path, mockId, matched). backlog=N first replays the newest N
// matching records, oldest first.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	filter, backlog, err := parseStreamQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	// subscribe before reading the backlog so nothing falls in between
	subID, records := h.service.Subscribe()
	defer h.service.Unsubscribe(subID)

	sent := make(map[string]bool)
	if backlog > 0 {
		replayFilter := *filter
		replayFilter.Limit = backlog
		replay := h.service.Requests(&replayFilter)
		for i := len(replay) - 1; i >= 0; i-- {
			if !h.send(conn, replay[i]) {
				return
			}
			sent[replay[i].ID] = true
		}
	}

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	// reader goroutine notices client close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case rec, ok := <-records:
			if !ok {
				return
			}
			if sent[rec.ID] || !filter.Matches(rec) {
				continue
			}
			if !h.send(conn, rec) {
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// send writes rec as a text frame and reports whether the client is still there
func (h *WebSocketHandler) send(conn *websocket.Conn, rec *models.RequestRecord) bool {
	data, err := json.Marshal(rec)
	if err != nil {
		h.logger.Error("failed to marshal request record", "error", err)
		return true
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("websocket client went away", "error", err)
		return false
	}
	return true
}

func parseStreamQuery(q url.Values) (*models.RequestFilter, int, error) {
	filter := &models.RequestFilter{
		Method: q.Get("method"),
		Path:   q.Get("path"),
		MockID: q.Get("mockId"),
	}
	if v := q.Get("matched"); v != "" {
		matched, err := strconv.ParseBool(v)
		if err != nil {
			return nil, 0, fmt.Errorf("matched must be true or false")
		}
		filter.Matched = &matched
	}

	backlog := 0
	if v := q.Get("backlog"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, 0, fmt.Errorf("backlog must be a non-negative number")
		}
		backlog = min(n, maxBacklog)
	}
	return filter, backlog, nil
}
