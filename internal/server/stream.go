package server

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"devicemonitor/internal/metrics"
	"devicemonitor/internal/models"
)

const (
	streamKeepAlive    = 30 * time.Second
	streamWriteTimeout = 5 * time.Second
)

var streamUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		host := strings.ToLower(strings.TrimSpace(r.Host))
		originHost := strings.ToLower(strings.TrimSpace(u.Host))
		return host == originHost
	},
}

type deviceSnapshot struct {
	GeneratedAt time.Time           `json:"generated_at"`
	Devices     []models.Device     `json:"devices"`
	Summary     metrics.Summary     `json:"summary"`
	Schedule    models.ScheduleView `json:"schedule"`
}

func (s *Server) buildSnapshot() deviceSnapshot {
	return deviceSnapshot{
		GeneratedAt: time.Now().UTC(),
		Devices:     s.devices.ListDevices(),
		Summary:     s.devices.Counts(),
		Schedule:    s.devices.Schedule(),
	}
}

func (s *Server) handleDevicesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	s.serveStream(conn)
}

// serveStream pushes a snapshot on connect, after every registry change and
// on a keep-alive ticker until the client goes away.
func (s *Server) serveStream(conn *websocket.Conn) {
	defer conn.Close()

	changes, unsubscribe := s.devices.Subscribe()
	defer unsubscribe()

	if err := writeSnapshot(conn, s.buildSnapshot()); err != nil {
		return
	}

	ticker := time.NewTicker(s.pushEvery)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-changes:
		case <-ticker.C:
		case <-done:
			return
		}
		if err := writeSnapshot(conn, s.buildSnapshot()); err != nil {
			return
		}
	}
}

func writeSnapshot(conn *websocket.Conn, payload deviceSnapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	return conn.WriteJSON(payload)
}
