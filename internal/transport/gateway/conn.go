package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	mboterror "github.com/msto63/mBOT/foundation/core/error"
	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// Frame types
const (
	TypeMessage = "message"
	TypePing    = "ping"
	TypePong    = "pong"
	TypeReply   = "reply"
	TypeDone    = "done"
	TypeError   = "error"
)

// WSMessage represents an inbound frame
type WSMessage struct {
	Type    string          `json:"type"`    // "message", "ping"
	Payload json.RawMessage `json:"payload"` // Message-specific payload
}

// MessagePayload is the payload of a "message" frame
type MessagePayload struct {
	ID        string `json:"id,omitempty"` // client correlation id, echoed back
	Platform  string `json:"platform,omitempty"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id,omitempty"`
	Text      string `json:"text"`
}

// WSResponse represents an outbound frame
type WSResponse struct {
	Type    string      `json:"type"`              // "reply", "done", "error", "pong"
	Payload interface{} `json:"payload,omitempty"` // Response-specific payload
}

// ReplyPayload carries one bot reply
type ReplyPayload struct {
	ID        string `json:"id,omitempty"`
	Platform  string `json:"platform"`
	UserID    string `json:"user_id"`
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
}

// DonePayload marks the end of one inbound message's processing
type DonePayload struct {
	ID      string `json:"id,omitempty"`
	Handled bool   `json:"handled"`
}

// ErrorPayload represents an error frame
type ErrorPayload struct {
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// connection serializes writes to one websocket
type connection struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	logger       *log.Logger

	mu     sync.Mutex
	closed bool
}

func (c *connection) send(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return mboterror.New("connection closed").WithCode(mboterror.CodeRemoteUnreachable).WithOperation("gateway.send")
	}
	c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.ws.WriteJSON(resp); err != nil {
		c.logger.Warn("websocket send error", log.Err(err))
		return mboterror.Wrap(err, "websocket send failed").WithCode(mboterror.CodeRemoteUnreachable).WithOperation("gateway.send")
	}
	return nil
}

func (c *connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeTimeout))
}

func (c *connection) sendError(id, code, message string) {
	c.send(WSResponse{Type: TypeError, Payload: ErrorPayload{ID: id, Code: code, Message: message}})
}

func (c *connection) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		c.ws.Close()
	}
}

// conversations holds the pending messages of every conversation that has
// a worker running on one connection
type conversations struct {
	mu     sync.Mutex
	queues map[string][]MessagePayload
}

// push queues p and reports whether the caller must start a worker
func (q *conversations) push(key string, p MessagePayload) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.queues == nil {
		q.queues = make(map[string][]MessagePayload)
	}
	pending, active := q.queues[key]
	q.queues[key] = append(pending, p)
	return !active
}

// pop takes the oldest message of key; the worker stops once it reports false
func (q *conversations) pop(key string) (MessagePayload, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	pending := q.queues[key]
	if len(pending) == 0 {
		delete(q.queues, key)
		return MessagePayload{}, false
	}
	p := pending[0]
	q.queues[key] = pending[1:]
	return p, true
}

// drop discards whatever is still queued for key
func (q *conversations) drop(key string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.queues[key])
	delete(q.queues, key)
	return n
}

func conversationKey(p MessagePayload) string {
	return p.Platform + "\x00" + p.ChannelID + "\x00" + p.UserID
}

// withDefaults fills the platform and channel a client may omit
func withDefaults(p MessagePayload) MessagePayload {
	if p.Platform == "" {
		p.Platform = DefaultPlatform
	}
	if p.ChannelID == "" {
		p.ChannelID = p.UserID
	}
	return p
}

// serveWS handles WebSocket upgrade and the connection's read loop
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WarnWithErr("websocket upgrade failed", err)
		return
	}

	s.conns.Add(1)
	defer s.conns.Done()

	conn := &connection{
		ws:           ws,
		writeTimeout: s.config.WriteTimeout,
		logger:       s.logger.WithField("remote", ws.RemoteAddr().String()),
	}
	s.handleConnection(conn)
}

// handleConnection reads frames until the peer goes away. Messages of one
// conversation are dispatched in arrival order by a single worker, so an
// answer never overtakes the command that asked for it; distinct
// conversations run concurrently.
func (s *Server) handleConnection(conn *connection) {
	conn.logger.Info("websocket connection established")

	var wg sync.WaitGroup
	var queued conversations
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		wg.Wait()
		conn.close()
	}()

	readTimeout := s.config.ReadTimeout
	conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
	conn.ws.SetPongHandler(func(string) error {
		conn.ws.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepAlive(ctx, conn, readTimeout*9/10)
	}()

	for {
		var msg WSMessage
		if err := conn.ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				conn.logger.Warn("websocket read error", log.Err(err))
			} else {
				conn.logger.Info("websocket connection closed")
			}
			return
		}
		conn.ws.SetReadDeadline(time.Now().Add(readTimeout))

		switch msg.Type {
		case TypePing:
			conn.send(WSResponse{Type: TypePong})

		case TypeMessage:
			var payload MessagePayload
			if err := json.Unmarshal(msg.Payload, &payload); err != nil {
				conn.sendError("", "invalid_payload", "invalid message payload")
				continue
			}
			if strings.TrimSpace(payload.UserID) == "" {
				conn.sendError(payload.ID, "invalid_payload", "user_id required")
				continue
			}

			payload = withDefaults(payload)
			key := conversationKey(payload)
			if !queued.push(key, payload) {
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.drainConversation(ctx, conn, &queued, key)
			}()

		default:
			conn.sendError("", "unknown_type", "unknown message type: "+msg.Type)
		}
	}
}

func (s *Server) keepAlive(ctx context.Context, conn *connection, period time.Duration) {
	if period <= 0 {
		return
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				conn.logger.Debug("websocket ping failed", log.Err(err))
				return
			}
		}
	}
}

// drainConversation handles the queued messages of one conversation until
// none are left or the connection goes away
func (s *Server) drainConversation(ctx context.Context, conn *connection, queued *conversations, key string) {
	for {
		if ctx.Err() != nil {
			if n := queued.drop(key); n > 0 {
				conn.logger.Debug("dropped queued messages", log.Fields{"count": n})
			}
			return
		}
		p, ok := queued.pop(key)
		if !ok {
			return
		}
		s.handleMessage(ctx, conn, p)
	}
}

// handleMessage dispatches one message and reports completion
func (s *Server) handleMessage(ctx context.Context, conn *connection, p MessagePayload) {
	p = withDefaults(p)

	reply := dispatch.ReplierFunc(func(ctx context.Context, text string) error {
		return conn.send(WSResponse{Type: TypeReply, Payload: ReplyPayload{
			ID:        p.ID,
			Platform:  p.Platform,
			UserID:    p.UserID,
			ChannelID: p.ChannelID,
			Text:      text,
		}})
	})

	handled, err := s.dispatcher.Dispatch(ctx, dispatch.Message{
		Platform:  p.Platform,
		UserID:    p.UserID,
		ChannelID: p.ChannelID,
		Text:      p.Text,
		Reply:     reply,
	})
	if err != nil {
		conn.logger.WarnWithErr("dispatch failed", err, log.Fields{"user_id": p.UserID})
		conn.sendError(p.ID, "dispatch_failed", err.Error())
		return
	}
	conn.send(WSResponse{Type: TypeDone, Payload: DonePayload{ID: p.ID, Handled: handled}})
}
