package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"speakcity/shared"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
	sendBuffer   = 16
)

// frameFormat selects the wire encoding of one viewer's messages.
type frameFormat string

const (
	formatJSON    frameFormat = "json"
	formatMsgpack frameFormat = "msgpack"
)

func encodeFrame(f frameFormat, msg shared.ViewerMessage) (int, []byte, error) {
	if f == formatMsgpack {
		b, err := marshalMsgpack(msg)
		return websocket.BinaryMessage, b, err
	}
	b, err := json.Marshal(msg)
	return websocket.TextMessage, b, err
}

// marshalMsgpack reuses the json tags so both encodings share field names.
func marshalMsgpack(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// viewerSession is one connected browser or dashboard.
type viewerSession struct {
	id     string
	conn   *websocket.Conn
	format frameFormat
	send   chan shared.ViewerMessage
	done   chan struct{}
	once   sync.Once
}

func (v *viewerSession) close() {
	v.once.Do(func() { close(v.done) })
}

// offer queues msg without blocking. A full queue drops the frame.
func (v *viewerSession) offer(msg shared.ViewerMessage) bool {
	select {
	case v.send <- msg:
		return true
	default:
		return false
	}
}

// WebSocketServer streams snapshots and events to viewers and accepts
// command batches from them.
type WebSocketServer struct {
	core     *SimulationCore
	upgrader websocket.Upgrader
	sessions map[string]*viewerSession
	mu       sync.Mutex
}

// NewWebSocketServer creates a viewer hub on top of core and subscribes to
// its events.
func NewWebSocketServer(core *SimulationCore) *WebSocketServer {
	s := &WebSocketServer{
		core: core,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow connections from any origin
			},
		},
		sessions: make(map[string]*viewerSession),
	}
	core.SetEventSink(s.BroadcastEvent)
	return s
}

// HandleViewer upgrades the request and serves one viewer session.
// ?format=msgpack switches frames to binary msgpack.
func (s *WebSocketServer) HandleViewer(c *gin.Context) {
	format := formatJSON
	if c.Query("format") == string(formatMsgpack) {
		format = formatMsgpack
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Failed to upgrade connection: %v", err)
		return
	}

	v := &viewerSession{
		id:     uuid.NewString(),
		conn:   conn,
		format: format,
		send:   make(chan shared.ViewerMessage, sendBuffer),
		done:   make(chan struct{}),
	}
	s.mu.Lock()
	s.sessions[v.id] = v
	count := len(s.sessions)
	s.mu.Unlock()

	log.WithFields(log.Fields{"session": v.id, "format": format, "viewers": count}).Info("Viewer connected")

	snap := s.core.Snapshot()
	v.offer(shared.ViewerMessage{Type: shared.MessageSnapshot, SessionID: v.id, Snapshot: &snap})

	go s.writeLoop(v)
	s.readLoop(v)
}

// readLoop executes inbound command batches until the viewer disconnects.
func (s *WebSocketServer) readLoop(v *viewerSession) {
	defer s.drop(v)

	v.conn.SetPongHandler(func(string) error {
		return nil
	})
	for {
		var batch shared.CommandBatch
		if err := v.conn.ReadJSON(&batch); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Viewer %s read failed: %v", v.id, err)
			}
			return
		}
		if len(batch.Commands) == 0 {
			v.offer(shared.ViewerMessage{Type: shared.MessageError, SessionID: v.id, Error: "empty command batch"})
			continue
		}
		if batch.RequestID == "" {
			batch.RequestID = uuid.NewString()
		}
		resp := s.core.ExecuteBatch(batch)
		v.offer(shared.ViewerMessage{Type: shared.MessageResults, SessionID: v.id, Results: &resp})
	}
}

// writeLoop owns all writes to the connection, including keepalive pings.
func (s *WebSocketServer) writeLoop(v *viewerSession) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		v.conn.Close()
	}()

	for {
		select {
		case <-v.done:
			return
		case msg := <-v.send:
			kind, data, err := encodeFrame(v.format, msg)
			if err != nil {
				log.Printf("Viewer %s encode failed: %v", v.id, err)
				continue
			}
			v.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := v.conn.WriteMessage(kind, data); err != nil {
				log.Printf("Viewer %s write failed: %v", v.id, err)
				s.drop(v)
				return
			}
		case <-ticker.C:
			if err := v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				log.Printf("Viewer %s ping failed: %v", v.id, err)
				s.drop(v)
				return
			}
		}
	}
}

func (s *WebSocketServer) drop(v *viewerSession) {
	s.mu.Lock()
	_, ok := s.sessions[v.id]
	delete(s.sessions, v.id)
	s.mu.Unlock()
	v.close()
	if ok {
		log.WithField("session", v.id).Info("Viewer disconnected")
	}
}

func (s *WebSocketServer) broadcast(msg shared.ViewerMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range s.sessions {
		if !v.offer(msg) {
			log.WithField("session", v.id).Debug("Viewer lagging, frame dropped")
		}
	}
}

// BroadcastSnapshot pushes a frame to every viewer.
func (s *WebSocketServer) BroadcastSnapshot(snap shared.Snapshot) {
	s.broadcast(shared.ViewerMessage{Type: shared.MessageSnapshot, Snapshot: &snap})
}

// BroadcastEvent forwards an engine event to every viewer.
func (s *WebSocketServer) BroadcastEvent(e shared.EventState) {
	s.broadcast(shared.ViewerMessage{Type: shared.MessageEvent, Event: &e})
}

// ViewerCount returns the number of connected viewers.
func (s *WebSocketServer) ViewerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Stop closes every viewer connection.
func (s *WebSocketServer) Stop() {
	log.Println("Shutting down WebSocket viewers...")

	s.mu.Lock()
	sessions := make([]*viewerSession, 0, len(s.sessions))
	for _, v := range s.sessions {
		sessions = append(sessions, v)
	}
	s.mu.Unlock()

	for _, v := range sessions {
		s.drop(v)
	}
}
