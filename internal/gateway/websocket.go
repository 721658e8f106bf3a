package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wardops/simcore/internal/replay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSClient is one connected peer, tailing either a replay or a run's
// progress. Both use the same send/done shape; only what feeds Send
// differs.
type WSClient struct {
	ID   uuid.UUID
	Conn *websocket.Conn
	Send chan []byte
	Done chan struct{}
}

func (g *Gateway) registerWSClient(conn *websocket.Conn) *WSClient {
	client := &WSClient{
		ID:   uuid.New(),
		Conn: conn,
		Send: make(chan []byte, 16),
		Done: make(chan struct{}),
	}
	g.wsMu.Lock()
	g.wsClients[client.ID] = client
	g.wsMu.Unlock()
	return client
}

func (g *Gateway) unregisterWSClient(client *WSClient) {
	g.wsMu.Lock()
	delete(g.wsClients, client.ID)
	g.wsMu.Unlock()
}

// wsWritePump drains client.Send onto the socket until Done closes.
// Shared by both WebSocket surfaces.
func (g *Gateway) wsWritePump(client *WSClient) {
	for {
		select {
		case message, ok := <-client.Send:
			if !ok {
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-client.Done:
			return
		}
	}
}

// handleReplayWS drives a replay session: inbound frames control
// play/pause/seek/speed/stop, outbound frames are the session's tick
// stream serialized to JSON.
func (g *Gateway) handleReplayWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	unitID := queryIntDefault(c, "unit_id", 1)
	startTime, _ := queryTime(c, "start_time")
	speed := 1.0
	if raw := c.Query("speed"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			speed = v
		}
	}

	var start time.Time
	if startTime != nil {
		start = *startTime
	}

	session := replay.NewSession(g.store, g.kpi, unitID, start, speed)
	client := g.registerWSClient(conn)
	defer func() {
		g.unregisterWSClient(client)
		close(client.Done)
		conn.Close()
	}()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go g.wsWritePump(client)
	go g.wsReplayReadPump(client, session, cancel)

	for msg := range session.Stream(ctx) {
		raw, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		select {
		case client.Send <- raw:
		case <-client.Done:
			return
		}
		if msg.Type == "complete" || msg.Type == "error" {
			return
		}
	}
}

func (g *Gateway) wsReplayReadPump(client *WSClient, session *replay.Session, cancel context.CancelFunc) {
	defer cancel()
	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			return
		}
		var frame struct {
			Action string    `json:"action"`
			Time   time.Time `json:"time"`
			Speed  float64   `json:"speed"`
		}
		if err := json.Unmarshal(message, &frame); err != nil {
			continue
		}

		cmd := replay.Command{Time: frame.Time, Speed: frame.Speed}
		switch frame.Action {
		case "play":
			cmd.Type = replay.CommandPlay
		case "pause":
			cmd.Type = replay.CommandPause
		case "seek":
			cmd.Type = replay.CommandSeek
		case "speed":
			cmd.Type = replay.CommandSpeed
		case "stop":
			cmd.Type = replay.CommandStop
		default:
			continue
		}

		select {
		case session.Control() <- cmd:
		case <-client.Done:
			return
		}
	}
}

const runProgressPollInterval = time.Second

// handleRunProgressWS polls the run row once a second and forwards its
// status/progress until the run reaches a terminal state or the peer
// disconnects.
func (g *Gateway) handleRunProgressWS(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("job_id"))
	if err != nil {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	client := g.registerWSClient(conn)
	defer func() {
		g.unregisterWSClient(client)
		close(client.Done)
		conn.Close()
	}()

	go g.wsWritePump(client)
	go g.wsDrainReads(client)

	ticker := time.NewTicker(runProgressPollInterval)
	defer ticker.Stop()

	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done:
			return
		case <-ticker.C:
			run, err := g.store.GetRun(ctx, runID)
			if err != nil {
				return
			}
			raw, err := json.Marshal(run)
			if err != nil {
				continue
			}
			select {
			case client.Send <- raw:
			case <-client.Done:
				return
			}
			if run.Status == "completed" || run.Status == "failed" {
				return
			}
		}
	}
}

// wsDrainReads discards inbound frames on a read-only socket (the
// run-progress stream takes no control input) so a client's pong/close
// frames are still processed and a dead connection is detected promptly.
func (g *Gateway) wsDrainReads(client *WSClient) {
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
