package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/klaxon/klaxon/pkg/logger"
)

const (
	wsDefaultMaxConnections = 100
	wsDefaultPingInterval   = 30 * time.Second
	wsDefaultPongTimeout    = 10 * time.Second
	wsWriteTimeout          = 10 * time.Second
	wsSendBuffer            = 32
	wsMaxFrameSize          = 1 << 20
)

// WebSocketConfig configures the event stream handler.
type WebSocketConfig struct {
	AllowedOrigins []string
	MaxConnections int
	PingInterval   time.Duration
	PongTimeout    time.Duration
}

// EventMessage is the wire format of one event stream frame.
type EventMessage struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// streamClient is one connected event stream consumer. Its subscription
// set lives in the hub goroutine, not here; the client itself is only a
// connection and an outbound frame queue.
type streamClient struct {
	conn *websocket.Conn
	send chan []byte
}

type wsCommandKind int

const (
	wsJoin wsCommandKind = iota
	wsLeave
	wsSubscribe
	wsUnsubscribe
	wsDeliver
)

type wsCommand struct {
	kind        wsCommandKind
	client      *streamClient
	operationID string
	frame       []byte
	accepted    chan bool
}

// WebSocketHandler streams operation lifecycle events to websocket
// clients at /ws/events.
//
// All client bookkeeping is owned by a single hub goroutine fed through
// a command channel: joins, leaves, subscription changes, and event
// delivery are serialized there, so no lock is shared between the
// per-connection read and write loops. A client may narrow its stream
// with {"type":"subscribe","operation_id":...} frames; the hub confirms
// each change with a "subscribed"/"unsubscribed" frame, and a client
// with no subscriptions receives every event.
type WebSocketHandler struct {
	log            logger.Logger
	upgrader       websocket.Upgrader
	pingInterval   time.Duration
	pongTimeout    time.Duration
	maxConnections int

	commands  chan wsCommand
	done      chan struct{}
	closeOnce sync.Once
	count     atomic.Int64
}

// NewWebSocketHandler creates the handler and starts its hub goroutine.
func NewWebSocketHandler(log logger.Logger, cfg WebSocketConfig) *WebSocketHandler {
	if log == nil {
		log = logger.Global()
	}
	if cfg.MaxConnections <= 0 {
		cfg.MaxConnections = wsDefaultMaxConnections
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = wsDefaultPingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = wsDefaultPongTimeout
	}

	h := &WebSocketHandler{
		log:            log,
		pingInterval:   cfg.PingInterval,
		pongTimeout:    cfg.PongTimeout,
		maxConnections: cfg.MaxConnections,
		commands:       make(chan wsCommand, 64),
		done:           make(chan struct{}),
	}

	allowedOrigins := append([]string(nil), cfg.AllowedOrigins...)
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return isWebSocketOriginAllowed(r, allowedOrigins)
		},
	}

	go h.run()
	return h
}

// run is the hub loop. It is the only goroutine that touches the client
// map and the per-client subscription sets.
func (h *WebSocketHandler) run() {
	clients := make(map[*streamClient]map[string]struct{})

	drop := func(c *streamClient) {
		if _, ok := clients[c]; !ok {
			return
		}
		delete(clients, c)
		close(c.send)
		h.count.Store(int64(len(clients)))
	}

	for {
		select {
		case <-h.done:
			for c := range clients {
				close(c.send)
			}
			h.count.Store(0)
			return

		case cmd := <-h.commands:
			switch cmd.kind {
			case wsJoin:
				if len(clients) >= h.maxConnections {
					cmd.accepted <- false
					continue
				}
				clients[cmd.client] = make(map[string]struct{})
				h.count.Store(int64(len(clients)))
				cmd.accepted <- true

			case wsLeave:
				drop(cmd.client)

			case wsSubscribe:
				subs, ok := clients[cmd.client]
				if !ok || cmd.operationID == "" {
					continue
				}
				subs[cmd.operationID] = struct{}{}
				h.ack(cmd.client, "subscribed", cmd.operationID)

			case wsUnsubscribe:
				subs, ok := clients[cmd.client]
				if !ok || cmd.operationID == "" {
					continue
				}
				delete(subs, cmd.operationID)
				h.ack(cmd.client, "unsubscribed", cmd.operationID)

			case wsDeliver:
				for c, subs := range clients {
					if !wantsOperation(subs, cmd.operationID) {
						continue
					}
					select {
					case c.send <- cmd.frame:
					default:
						// A consumer that cannot keep up is dropped
						// rather than allowed to stall delivery.
						drop(c)
					}
				}
			}
		}
	}
}

// ack confirms a subscription change back to the client, best effort.
func (h *WebSocketHandler) ack(c *streamClient, kind, operationID string) {
	frame, err := json.Marshal(EventMessage{
		Type:      kind,
		Timestamp: time.Now().UTC(),
		Payload:   map[string]string{"operation_id": operationID},
	})
	if err != nil {
		return
	}
	select {
	case c.send <- frame:
	default:
	}
}

// wantsOperation decides delivery: an unfiltered client takes every
// event, a filtered one only events carrying a subscribed operation ID.
func wantsOperation(subs map[string]struct{}, operationID string) bool {
	if len(subs) == 0 {
		return true
	}
	if operationID == "" {
		return false
	}
	_, ok := subs[operationID]
	return ok
}

// submit enqueues a hub command. It reports false once the handler is
// closed.
func (h *WebSocketHandler) submit(cmd wsCommand) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.commands <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// ServeHTTP upgrades the connection and runs the read loop until the
// client goes away.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !websocket.IsWebSocketUpgrade(r) {
		http.Error(w, "websocket upgrade required", http.StatusBadRequest)
		return
	}
	if int(h.count.Load()) >= h.maxConnections {
		http.Error(w, "event stream connection limit reached", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := &streamClient{conn: conn, send: make(chan []byte, wsSendBuffer)}
	accepted := make(chan bool, 1)
	joined := false
	if h.submit(wsCommand{kind: wsJoin, client: client, accepted: accepted}) {
		select {
		case joined = <-accepted:
		case <-h.done:
		}
	}
	if !joined {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "connection limit reached"),
			time.Now().Add(wsWriteTimeout))
		_ = conn.Close()
		return
	}

	go h.writeLoop(client)
	h.readLoop(client)
}

func (h *WebSocketHandler) readLoop(c *streamClient) {
	defer func() {
		h.submit(wsCommand{kind: wsLeave, client: c})
		_ = c.conn.Close()
	}()

	idle := h.pingInterval + h.pongTimeout
	c.conn.SetReadLimit(wsMaxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(idle))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idle))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("event stream read ended", "error", err)
			}
			return
		}
		h.dispatch(c, frame)
	}
}

// dispatch routes one inbound control frame to the hub.
func (h *WebSocketHandler) dispatch(c *streamClient, frame []byte) {
	var msg struct {
		Type        string `json:"type"`
		OperationID string `json:"operation_id"`
	}
	if err := json.Unmarshal(frame, &msg); err != nil {
		return
	}

	operationID := strings.TrimSpace(msg.OperationID)
	switch strings.ToLower(strings.TrimSpace(msg.Type)) {
	case "subscribe":
		h.submit(wsCommand{kind: wsSubscribe, client: c, operationID: operationID})
	case "unsubscribe":
		h.submit(wsCommand{kind: wsUnsubscribe, client: c, operationID: operationID})
	}
}

func (h *WebSocketHandler) writeLoop(c *streamClient) {
	ticker := time.NewTicker(h.pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(wsWriteTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout)); err != nil {
				return
			}
		}
	}
}

// Broadcast delivers event to all matching clients. It returns an error
// only when the frame cannot be encoded or the handler is closed; slow
// clients are dropped, not reported.
func (h *WebSocketHandler) Broadcast(event EventMessage) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	frame, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if !h.submit(wsCommand{kind: wsDeliver, frame: frame, operationID: eventOperationID(event.Payload)}) {
		return errors.New("event stream closed")
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *WebSocketHandler) ClientCount() int {
	return int(h.count.Load())
}

// Close stops the hub and disconnects every client. The handler cannot
// be reused afterwards.
func (h *WebSocketHandler) Close() {
	h.closeOnce.Do(func() {
		close(h.done)
	})
}

// eventOperationID extracts the operation ID an outbound event is about,
// for subscription filtering.
func eventOperationID(payload any) string {
	switch value := payload.(type) {
	case map[string]any:
		id, _ := value["operation_id"].(string)
		return id
	case map[string]string:
		return value["operation_id"]
	}
	return ""
}

// isWebSocketOriginAllowed accepts requests with no Origin header,
// origins on the allowlist, and same-host origins.
func isWebSocketOriginAllowed(r *http.Request, allowedOrigins []string) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}

	for _, allowed := range allowedOrigins {
		if allowed == "*" || strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(originURL.Host, r.Host)
}
