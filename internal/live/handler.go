// Package live streams run snapshots to browsers over WebSocket.
package live

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"daq-svr/internal/observability"
	"daq-svr/internal/pipeline"
)

const writeWait = 10 * time.Second

// Handler upgrades each request and pushes a snapshot every interval until
// the client goes away.
type Handler struct {
	upgrader websocket.Upgrader
	interval time.Duration
	build    func() *pipeline.Snapshot
	logger   *slog.Logger
}

func NewHandler(interval time.Duration, build func() *pipeline.Snapshot, lg *slog.Logger) *Handler {
	if lg == nil {
		lg = slog.Default()
	}
	return &Handler{
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(_ *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		interval: interval,
		build:    build,
		logger:   lg.With("component", "live"),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("live: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	observability.LiveClients.Inc()
	defer observability.LiveClients.Dec()
	h.logger.Info("live: client connected", "remote", r.RemoteAddr)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	t := time.NewTicker(h.interval)
	defer t.Stop()
	for {
		if err := h.push(conn); err != nil {
			h.logger.Info("live: client gone", "remote", r.RemoteAddr, "err", err)
			return
		}
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case <-t.C:
		}
	}
}

func (h *Handler) push(conn *websocket.Conn) error {
	data, err := pipeline.ToJSON(h.build())
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
