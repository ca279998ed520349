package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nerrad567/bosun-core/internal/infrastructure/config"
	"github.com/nerrad567/bosun-core/internal/publisher"
)

// WebSocket defaults applied when the config leaves a field zero.
const (
	defaultMaxMessageSize = 4096
	defaultPingInterval   = 30 * time.Second
	defaultPongTimeout    = 10 * time.Second
	wsSendBufferSize      = 64
)

// errClientClosed is returned by Deliver once the connection is gone.
var errClientClosed = errors.New("websocket client closed")

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Origin checking is handled by CORS middleware
		return true
	},
}

// clientMessage is the envelope of a message sent by a client.
type clientMessage struct {
	Type string `json:"type"`
}

// welcomeData is the payload of the system:welcome message.
type welcomeData struct {
	SessionID  string `json:"session_id"`
	Version    string `json:"version,omitempty"`
	Site       string `json:"site,omitempty"`
	ServerTime string `json:"server_time"`
}

// wsTimings are the resolved keepalive settings for a connection.
type wsTimings struct {
	maxMessageSize int64
	pingInterval   time.Duration
	pongWait       time.Duration
}

func resolveTimings(cfg config.WebSocketConfig) wsTimings {
	t := wsTimings{
		maxMessageSize: int64(cfg.MaxMessageSize),
		pingInterval:   time.Duration(cfg.PingInterval) * time.Second,
		pongWait:       time.Duration(cfg.PongTimeout) * time.Second,
	}
	if t.maxMessageSize <= 0 {
		t.maxMessageSize = defaultMaxMessageSize
	}
	if t.pingInterval <= 0 {
		t.pingInterval = defaultPingInterval
	}
	if t.pongWait <= 0 {
		t.pongWait = defaultPongTimeout
	}
	return t
}

// wsClient is one WebSocket session. It is the publisher.Observer for its
// subscription; writePump owns every write to conn.
type wsClient struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	mu     sync.Mutex
	sub    *publisher.Subscription
	server *Server
}

// attach records the subscription unless the client already closed.
func (c *wsClient) attach(sub *publisher.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return false
	default:
	}
	c.sub = sub
	return true
}

// Deliver hands one message to the write pump. It blocks while the send
// buffer is full; the publisher's own queue absorbs the backlog.
func (c *wsClient) Deliver(m publisher.Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errClientClosed
	}
}

// close tears the session down exactly once.
func (c *wsClient) close() {
	c.once.Do(func() {
		c.mu.Lock()
		close(c.done)
		sub := c.sub
		c.mu.Unlock()
		if sub != nil {
			c.server.pipeline.Publisher().Unsubscribe(sub)
		}
		c.conn.Close()
		c.server.sessions.remove(c)
	})
}

// sessionSet tracks live WebSocket sessions for shutdown.
type sessionSet struct {
	mu      sync.Mutex
	clients map[*wsClient]struct{}
}

func newSessionSet() *sessionSet {
	return &sessionSet{clients: make(map[*wsClient]struct{})}
}

func (s *sessionSet) add(c *wsClient) {
	s.mu.Lock()
	s.clients[c] = struct{}{}
	s.mu.Unlock()
}

func (s *sessionSet) remove(c *wsClient) {
	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
}

func (s *sessionSet) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// closeAll disconnects every session.
func (s *sessionSet) closeAll() {
	s.mu.Lock()
	clients := make([]*wsClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
}

// handleWebSocket upgrades the connection and subscribes it to the
// publisher. The client receives system:welcome, then one
// state:full-update, then state:patch messages.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &wsClient{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, wsSendBufferSize),
		done:   make(chan struct{}),
		server: s,
	}
	timings := resolveTimings(s.wsCfg)
	s.sessions.add(client)

	// The write pump must be running before Subscribe queues the preamble.
	go client.writePump(timings)

	welcome := publisher.Message{
		Type: publisher.TypeWelcome,
		Data: welcomeData{
			SessionID:  client.id,
			Version:    s.version,
			Site:       s.site.ID,
			ServerTime: time.Now().UTC().Format(time.RFC3339),
		},
	}
	sub, err := s.pipeline.Publisher().Subscribe(client, welcome)
	if err != nil {
		s.logger.Warn("websocket subscribe failed", "error", err)
		client.close()
		return
	}
	if !client.attach(sub) {
		s.pipeline.Publisher().Unsubscribe(sub)
		return
	}

	s.logger.Debug("websocket client connected",
		"session_id", client.id,
		"subscription", sub.ID(),
		"sessions", s.sessions.count(),
	)
	go client.readPump(timings)
}

// readPump reads client messages until the connection fails.
func (c *wsClient) readPump(t wsTimings) {
	defer c.close()

	c.conn.SetReadLimit(t.maxMessageSize)
	//nolint:errcheck // Best-effort deadline on connection setup
	c.conn.SetReadDeadline(time.Now().Add(t.pingInterval + t.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(t.pingInterval + t.pongWait))
	})

	logger := c.server.logger
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read error", "session_id", c.id, "error", err)
			} else {
				logger.Debug("websocket closed", "session_id", c.id, "error", err)
			}
			return
		}
		// Any client message counts as liveness.
		//nolint:errcheck // Best-effort deadline reset
		c.conn.SetReadDeadline(time.Now().Add(t.pingInterval + t.pongWait))
		c.handleMessage(data)
	}
}

// writePump writes queued messages and keepalive pings.
func (c *wsClient) writePump(t wsTimings) {
	ticker := time.NewTicker(t.pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			//nolint:errcheck // Best-effort close message
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(time.Second))
			return
		case message := <-c.send:
			//nolint:errcheck // Best-effort deadline; write error caught below
			c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			//nolint:errcheck // Best-effort deadline; ping error caught below
			c.conn.SetWriteDeadline(time.Now().Add(t.pongWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage processes one client message. Only state:resync is
// understood; anything else is logged and ignored.
func (c *wsClient) handleMessage(data []byte) {
	logger := c.server.logger
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.Debug("ignoring malformed websocket message", "session_id", c.id)
		return
	}

	switch msg.Type {
	case publisher.TypeResync:
		if err := c.server.pipeline.Publisher().Resync(c.sub); err != nil {
			logger.Warn("websocket resync failed", "session_id", c.id, "error", err)
		}
	default:
		logger.Debug("ignoring websocket message", "session_id", c.id, "type", msg.Type)
	}
}
