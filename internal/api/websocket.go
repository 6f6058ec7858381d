package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/topicseg/topicseg-agent/internal/catalog"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

// The agent listens on loopback only, so any origin is accepted.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// jobProgressSocketHandler streams ProgressEvents of one job. The first
// message is a snapshot of the stored job; the connection closes after a
// terminal event.
func jobProgressSocketHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobID := chi.URLParam(r, "id")

		job, err := cfg.Service.GetJob(r.Context(), jobID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
			return
		}
		if job == nil {
			WriteError(w, http.StatusNotFound, "job not found", "NOT_FOUND")
			return
		}
		if cfg.Hub == nil {
			WriteError(w, http.StatusServiceUnavailable, "progress stream unavailable", "UNAVAILABLE")
			return
		}

		// subscribe before the snapshot so no event between the two is lost
		events, unsubscribe := cfg.Hub.Subscribe(jobID)
		defer unsubscribe()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			cfg.Logger.Warn("websocket upgrade failed", "job_id", jobID, "error", err)
			return
		}
		defer conn.Close()

		logger := cfg.Logger.With("job_id", jobID, "request_id", RequestID(r.Context()))

		// re-read after subscribing; the job may have moved on
		if fresh, err := cfg.Service.GetJob(r.Context(), jobID); err == nil && fresh != nil {
			job = fresh
		}
		snapshot := jobSnapshot(job)
		if err := writeEvent(conn, snapshot); err != nil {
			return
		}
		if snapshot.Terminal() {
			closeNormal(conn)
			return
		}

		closed := make(chan struct{})
		go readPump(conn, closed)

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case ev, ok := <-events:
				if !ok {
					closeNormal(conn)
					return
				}
				if err := writeEvent(conn, ev); err != nil {
					logger.Debug("websocket write failed", "error", err)
					return
				}
				if ev.Terminal() {
					closeNormal(conn)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-closed:
				logger.Debug("websocket client went away")
				return
			case <-r.Context().Done():
				return
			}
		}
	}
}

func jobSnapshot(job *catalog.Job) catalog.ProgressEvent {
	return catalog.ProgressEvent{
		JobID:    job.ID,
		VideoID:  job.VideoID,
		Status:   job.Status,
		Progress: job.Progress,
		Error:    job.Error,
		Time:     job.UpdatedAt,
	}
}

func writeEvent(conn *websocket.Conn, ev catalog.ProgressEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(ev)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}

// readPump discards client messages and signals when the peer is gone.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

