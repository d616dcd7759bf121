package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/lox/triadsync/internal/protocol"
	"github.com/lox/triadsync/internal/store"
	"github.com/rs/zerolog"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 64 * 1024

	// Outgoing frames buffered per connection
	sendBuffer = 256
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")

	errConflict = errors.New("version conflict")
)

// Connection serves one remote participant. It owns a store connection, so
// the participant's on-disconnect patches fire when the socket goes away.
type Connection struct {
	conn      *websocket.Conn
	store     *store.LocalConn
	send      chan *protocol.Message
	logger    zerolog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu   sync.Mutex
	subs map[string]context.CancelFunc
}

// NewConnection creates a new connection wrapper
func NewConnection(conn *websocket.Conn, sc *store.LocalConn, logger zerolog.Logger) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	return &Connection{
		conn:   conn,
		store:  sc,
		send:   make(chan *protocol.Message, sendBuffer),
		logger: logger.With().Str("component", "conn").Str("remote", conn.RemoteAddr().String()).Logger(),
		ctx:    ctx,
		cancel: cancel,
		subs:   make(map[string]context.CancelFunc),
	}
}

// Start begins handling the connection
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Done is closed once the connection has shut down.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Close tears the connection down and applies the participant's
// on-disconnect patches.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if serr := c.store.Close(); serr != nil {
			c.logger.Warn().Err(serr).Msg("Disconnect patches failed")
		}
		err = c.conn.Close()
	})
	return err
}

// SendMessage queues a message for the client
func (c *Connection) SendMessage(msg *protocol.Message) error {
	select {
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
	}

	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		return ErrConnectionClosed
	default:
		c.logger.Warn().Msg("Connection send buffer full, closing connection")
		_ = c.Close()
		return ErrSendBufferFull
	}
}

// readPump handles incoming messages from the client
func (c *Connection) readPump() {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error().Err(err).Msg("WebSocket error")
			}
			return
		}
		c.handleMessage(&msg)
	}
}

// writePump handles outgoing messages to the client
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
	}()

	for {
		select {
		case message := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				c.logger.Error().Err(err).Msg("Failed to write message")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.ctx.Done():
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}

// handleMessage processes one request. Requests are handled in arrival
// order.
func (c *Connection) handleMessage(msg *protocol.Message) {
	c.logger.Debug().Str("type", msg.Type.String()).Str("request_id", msg.RequestID).Msg("Received message")

	switch msg.Type {
	case protocol.TypeGet:
		var data protocol.KeyData
		if c.decode(msg, &data) {
			c.handleGet(msg.RequestID, data)
		}

	case protocol.TypeList:
		var data protocol.ListData
		if c.decode(msg, &data) {
			c.handleList(msg.RequestID, data)
		}

	case protocol.TypeSubscribe:
		var data protocol.KeyData
		if c.decode(msg, &data) {
			c.handleSubscribe(msg.RequestID, data)
		}

	case protocol.TypeUnsubscribe:
		var data protocol.UnsubscribeData
		if c.decode(msg, &data) {
			c.handleUnsubscribe(msg.RequestID, data)
		}

	case protocol.TypeCAS:
		var data protocol.CASData
		if c.decode(msg, &data) {
			c.handleCAS(msg.RequestID, data)
		}

	case protocol.TypeDelete:
		var data protocol.KeyData
		if c.decode(msg, &data) {
			c.handleDelete(msg.RequestID, data)
		}

	case protocol.TypeOnDisconnect:
		var data protocol.OnDisconnectData
		if c.decode(msg, &data) {
			c.handleOnDisconnect(msg.RequestID, data)
		}

	case protocol.TypeCancelOnDisconnect:
		var data protocol.KeyData
		if c.decode(msg, &data) {
			c.handleCancelOnDisconnect(msg.RequestID, data)
		}

	default:
		c.sendError(msg.RequestID, protocol.CodeUnknownType, "Unknown message type: "+msg.Type.String())
	}
}

func (c *Connection) decode(msg *protocol.Message, v any) bool {
	if err := msg.Decode(v); err != nil {
		c.sendError(msg.RequestID, protocol.CodeInvalidMessage, err.Error())
		return false
	}
	return true
}

// sendError sends an error message to the client
func (c *Connection) sendError(requestID, code, message string) {
	msg, err := protocol.NewRequest(protocol.TypeError, requestID, protocol.ErrorData{
		Code:    code,
		Message: message,
	})
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create error message")
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) sendStoreError(requestID string, err error) {
	c.sendError(requestID, protocol.CodeFor(err), err.Error())
}

func (c *Connection) sendResult(requestID string, data protocol.ResultData) {
	msg, err := protocol.NewRequest(protocol.TypeResult, requestID, data)
	if err != nil {
		c.logger.Error().Err(err).Msg("Failed to create result message")
		return
	}
	_ = c.SendMessage(msg)
}

func (c *Connection) handleGet(requestID string, data protocol.KeyData) {
	snap, err := c.store.Get(c.ctx, data.Key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		c.sendStoreError(requestID, err)
		return
	}
	c.sendResult(requestID, protocol.ResultData{Snapshot: &snap})
}

func (c *Connection) handleList(requestID string, data protocol.ListData) {
	snaps, err := c.store.List(c.ctx, data.Prefix)
	if err != nil {
		c.sendStoreError(requestID, err)
		return
	}
	c.sendResult(requestID, protocol.ResultData{Snapshots: snaps})
}

// handleSubscribe streams snapshots of a key tagged with the subscribe
// request's id until the client unsubscribes or disconnects.
func (c *Connection) handleSubscribe(requestID string, data protocol.KeyData) {
	if requestID == "" {
		c.sendError(requestID, protocol.CodeInvalidMessage, "subscribe needs a requestId")
		return
	}

	c.mu.Lock()
	if _, dup := c.subs[requestID]; dup {
		c.mu.Unlock()
		c.sendError(requestID, protocol.CodeInvalidMessage, "duplicate subscription id")
		return
	}
	ctx, cancel := context.WithCancel(c.ctx)
	c.subs[requestID] = cancel
	c.mu.Unlock()

	updates, err := c.store.Subscribe(ctx, data.Key)
	if err != nil {
		c.dropSub(requestID)
		c.sendStoreError(requestID, err)
		return
	}
	c.sendResult(requestID, protocol.ResultData{})

	go func() {
		defer c.dropSub(requestID)
		for snap := range updates {
			msg, err := protocol.NewRequest(protocol.TypeSnapshot, requestID, snap)
			if err != nil {
				c.logger.Error().Err(err).Msg("Failed to create snapshot message")
				continue
			}
			if err := c.SendMessage(msg); err != nil {
				return
			}
		}
	}()
}

func (c *Connection) dropSub(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cancel, ok := c.subs[id]; ok {
		cancel()
		delete(c.subs, id)
	}
}

func (c *Connection) handleUnsubscribe(requestID string, data protocol.UnsubscribeData) {
	c.dropSub(data.SubscriptionID)
	c.sendResult(requestID, protocol.ResultData{})
}

// handleCAS commits the client's value only if the document is still at the
// version the client computed it from. Otherwise it answers with the latest
// snapshot so the client can recompute.
func (c *Connection) handleCAS(requestID string, data protocol.CASData) {
	res, err := c.store.Update(c.ctx, data.Key, func(current store.Snapshot) ([]byte, error) {
		if current.Version != data.ExpectedVersion {
			return nil, store.Abort(errConflict)
		}
		if data.Delete {
			return nil, nil
		}
		return data.Value, nil
	})
	if err != nil {
		c.sendStoreError(requestID, err)
		return
	}

	snap := res.Snapshot
	if !res.Committed {
		c.logger.Debug().Str("key", data.Key).Uint64("expected", data.ExpectedVersion).Uint64("actual", snap.Version).Msg("CAS conflict")
		c.sendResult(requestID, protocol.ResultData{Conflict: true, Snapshot: &snap})
		return
	}
	c.sendResult(requestID, protocol.ResultData{Committed: true, Snapshot: &snap})
}

func (c *Connection) handleDelete(requestID string, data protocol.KeyData) {
	if err := c.store.Delete(c.ctx, data.Key); err != nil {
		c.sendStoreError(requestID, err)
		return
	}
	c.sendResult(requestID, protocol.ResultData{})
}

func (c *Connection) handleOnDisconnect(requestID string, data protocol.OnDisconnectData) {
	if err := c.store.OnDisconnect(c.ctx, data.Key, data.Patch); err != nil {
		c.sendStoreError(requestID, err)
		return
	}
	c.logger.Debug().Str("key", data.Key).Msg("Registered disconnect patch")
	c.sendResult(requestID, protocol.ResultData{})
}

func (c *Connection) handleCancelOnDisconnect(requestID string, data protocol.KeyData) {
	if err := c.store.CancelOnDisconnect(c.ctx, data.Key); err != nil {
		c.sendStoreError(requestID, err)
		return
	}
	c.sendResult(requestID, protocol.ResultData{})
}
