package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/teranos/promptc/errors"
	"github.com/teranos/promptc/logger"
)

// WebSocket timeouts, following the gorilla chat example
const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = 54 * time.Second
)

// Client is one live-parse WebSocket connection. Each message read produces
// exactly one response, in order.
type Client struct {
	server    *Server
	conn      *websocket.Conn
	send      chan ServerMessage
	id        string
	done      chan struct{}
	closeOnce sync.Once
}

// HandleWebSocket upgrades the connection and serves live-parse requests
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.getState() != ServerStateRunning {
		writeErr(w, ErrDraining)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		logger.LoggerFromContext(r.Context()).Warnw("WebSocket upgrade failed",
			logger.FieldError, err.Error(),
			logger.FieldAddress, r.RemoteAddr,
		)
		return
	}

	client := &Client{
		server: s,
		conn:   conn,
		send:   make(chan ServerMessage, MaxClientMessageQueueSize),
		id:     uuid.New().String(),
		done:   make(chan struct{}),
	}
	if !s.register(client) {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many clients"),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		client.writePump()
	}()
	go func() {
		defer s.wg.Done()
		client.readPump()
	}()
}

// readPump reads requests until the connection closes and queues one response per request
func (c *Client) readPump() {
	defer func() {
		c.server.unregister(c)
		c.close()
	}()

	c.conn.SetReadLimit(bodyLimit(c.server.Config().GetMaxPromptBytes()))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if logger.ShouldOutput(c.server.verbosity(), logger.OutputBodies) {
			c.server.logger.Debugw("Received WebSocket message",
				logger.FieldClientID, c.id,
				logger.FieldSize, len(data),
			)
		}

		if !c.enqueue(c.handleMessage(data)) {
			return
		}
	}
}

// handleReadError logs unexpected read errors. Normal closures are silent.
func (c *Client) handleReadError(err error) {
	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseNormalClosure,
		websocket.CloseAbnormalClosure,
		websocket.CloseNoStatusReceived,
	) {
		c.server.logger.Warnw("WebSocket read error",
			logger.FieldClientID, c.id,
			logger.FieldError, err.Error(),
		)
	}
}

// handleMessage decodes and answers one request
func (c *Client) handleMessage(data []byte) ServerMessage {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return errorMessage("", errors.WrapInvalidRequest(err, "decode message"))
	}

	switch msg.Type {
	case MessagePing:
		return ServerMessage{ID: msg.ID, Type: MessagePong}

	case MessageLegacy:
		resp, err := c.server.legacy(LegacyRequest{Prompt: msg.Prompt})
		if err != nil {
			return errorMessage(msg.ID, err)
		}
		return ServerMessage{ID: msg.ID, Type: MessageLegacyResult, Legacy: resp}

	case MessageParse, "":
		resp, err := c.server.parse(ParseRequest{
			Prompt:      msg.Prompt,
			Tree:        msg.Tree,
			LegacyBlend: msg.LegacyBlend,
		})
		if err != nil {
			return errorMessage(msg.ID, err)
		}
		return ServerMessage{ID: msg.ID, Type: MessageResult, Result: resp}

	default:
		return errorMessage(msg.ID, errors.NewInvalidRequestError("unknown message type %q", msg.Type))
	}
}

func errorMessage(id string, err error) ServerMessage {
	resp := errorResponse(err)
	return ServerMessage{ID: id, Type: MessageError, Error: resp.Error, Diagnostic: resp.Diagnostic}
}

// enqueue hands a response to writePump. A client whose queue is full is
// disconnected so responses are never dropped silently.
func (c *Client) enqueue(msg ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	case <-c.server.ctx.Done():
		return false
	default:
		c.server.logger.Warnw("Client send queue full, disconnecting",
			logger.FieldClientID, c.id,
			"queue_size", MaxClientMessageQueueSize,
		)
		return false
	}
}

// writePump writes queued responses and keepalive pings
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return

		case <-c.server.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return

		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				c.server.logger.Debugw("WebSocket write error",
					logger.FieldClientID, c.id,
					logger.FieldError, err.Error(),
				)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// close shuts the connection once. Both pumps call it on exit.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
