// Package client connects to a remote store server and presents it as a
// store.Conn, so sessions run unchanged against a local or remote store.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"
	"github.com/lox/triadsync/internal/auth"
	"github.com/lox/triadsync/internal/protocol"
	"github.com/lox/triadsync/internal/store"
)

// ErrUnauthorized is returned by Dial when the server rejects the token.
var ErrUnauthorized = errors.New("server rejected credentials")

const (
	writeWait       = 10 * time.Second
	handshakeWait   = 10 * time.Second
	unsubscribeWait = time.Second
)

// Client is a store.Conn backed by a websocket to a store server.
type Client struct {
	serverURL     string
	participantID string
	conn          *websocket.Conn
	logger        *log.Logger
	maxRetries    int

	writeMu sync.Mutex
	nextID  atomic.Uint64

	mu      sync.Mutex
	pending map[string]chan *protocol.Message
	subs    map[string]chan store.Snapshot
	closed  bool

	done chan struct{}
}

var _ store.Conn = (*Client)(nil)

// DialOption configures Dial.
type DialOption func(*dialOptions)

type dialOptions struct {
	header http.Header
}

// WithToken sends token as a bearer credential on the websocket upgrade.
func WithToken(token string) DialOption {
	return func(o *dialOptions) {
		if token != "" {
			o.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// Dial connects to the store server at serverURL. http(s) URLs are mapped
// to ws(s) and a missing path defaults to /ws.
func Dial(ctx context.Context, serverURL string, logger *log.Logger, opts ...DialOption) (*Client, error) {
	o := dialOptions{header: http.Header{}}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		u.Scheme = "ws"
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = "/ws"
	}

	logger = logger.WithPrefix("client")
	logger.Info("Connecting to server", "url", u.String())

	dialer := websocket.Dialer{HandshakeTimeout: handshakeWait}
	conn, resp, err := dialer.DialContext(ctx, u.String(), o.header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, u.String())
		}
		return nil, fmt.Errorf("%w: failed to connect: %v", store.ErrUnavailable, err)
	}

	c := &Client{
		serverURL:     u.String(),
		participantID: resp.Header.Get(auth.ParticipantHeader),
		conn:          conn,
		logger:        logger,
		maxRetries:    store.DefaultMaxRetries,
		pending:       make(map[string]chan *protocol.Message),
		subs:          make(map[string]chan store.Snapshot),
		done:          make(chan struct{}),
	}
	if c.participantID != "" {
		logger.Debug("Authenticated", "participant", c.participantID)
	}
	go c.readMessages()
	return c, nil
}

// ParticipantID returns the participant the server authenticated this
// connection as, empty for anonymous connections.
func (c *Client) ParticipantID() string {
	return c.participantID
}

// Done is closed when the connection is lost or closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) readMessages() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		for id, ch := range c.subs {
			close(ch)
			delete(c.subs, id)
		}
		c.mu.Unlock()
		close(c.done)
	}()

	for {
		var msg protocol.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Error("WebSocket error", "error", err)
			}
			return
		}
		c.dispatch(&msg)
	}
}

func (c *Client) dispatch(msg *protocol.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.Type == protocol.TypeSnapshot {
		ch, ok := c.subs[msg.RequestID]
		if !ok {
			return
		}
		var snap store.Snapshot
		if err := msg.Decode(&snap); err != nil {
			c.logger.Warn("Dropping bad snapshot", "error", err)
			return
		}
		// latest wins
		select {
		case <-ch:
		default:
		}
		ch <- snap
		return
	}

	if ch, ok := c.pending[msg.RequestID]; ok {
		delete(c.pending, msg.RequestID)
		ch <- msg
		return
	}
	c.logger.Debug("Unmatched message", "type", msg.Type, "request_id", msg.RequestID)
}

func (c *Client) write(msg *protocol.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// request sends one message and waits for its result.
func (c *Client) request(ctx context.Context, typ protocol.MessageType, data any) (protocol.ResultData, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	return c.requestWithID(ctx, typ, id, data)
}

func (c *Client) requestWithID(ctx context.Context, typ protocol.MessageType, id string, data any) (protocol.ResultData, error) {
	var res protocol.ResultData

	msg, err := protocol.NewRequest(typ, id, data)
	if err != nil {
		return res, err
	}

	reply := make(chan *protocol.Message, 1)
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return res, store.ErrClosed
	}
	c.pending[id] = reply
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	if err := c.write(msg); err != nil {
		forget()
		return res, err
	}

	select {
	case m := <-reply:
		if m.Type == protocol.TypeError {
			var e protocol.ErrorData
			if err := m.Decode(&e); err != nil {
				return res, err
			}
			return res, e.Err()
		}
		if len(m.Data) > 0 && string(m.Data) != "null" {
			if err := json.Unmarshal(m.Data, &res); err != nil {
				return res, fmt.Errorf("decode result: %w", err)
			}
		}
		return res, nil
	case <-ctx.Done():
		forget()
		return res, ctx.Err()
	case <-c.done:
		return res, fmt.Errorf("%w: connection lost", store.ErrUnavailable)
	}
}

// Get implements store.Backend.
func (c *Client) Get(ctx context.Context, key string) (store.Snapshot, error) {
	res, err := c.request(ctx, protocol.TypeGet, protocol.KeyData{Key: key})
	if err != nil {
		return store.Snapshot{}, err
	}
	if res.Snapshot == nil || !res.Snapshot.Exists {
		return store.Snapshot{Key: key}, store.ErrNotFound
	}
	return *res.Snapshot, nil
}

// List implements store.Backend.
func (c *Client) List(ctx context.Context, prefix string) ([]store.Snapshot, error) {
	res, err := c.request(ctx, protocol.TypeList, protocol.ListData{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return res.Snapshots, nil
}

// Subscribe implements store.Backend. The channel also closes when the
// connection is lost.
func (c *Client) Subscribe(ctx context.Context, key string) (<-chan store.Snapshot, error) {
	id := strconv.FormatUint(c.nextID.Add(1), 10)
	in := make(chan store.Snapshot, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, store.ErrClosed
	}
	c.subs[id] = in
	c.mu.Unlock()

	if _, err := c.requestWithID(ctx, protocol.TypeSubscribe, id, protocol.KeyData{Key: key}); err != nil {
		c.dropSub(id)
		return nil, err
	}

	out := make(chan store.Snapshot)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				c.unsubscribe(id)
				return
			case snap, ok := <-in:
				if !ok {
					return
				}
				select {
				case out <- snap:
				case <-ctx.Done():
					c.unsubscribe(id)
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Client) dropSub(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, id)
}

func (c *Client) unsubscribe(id string) {
	c.dropSub(id)
	ctx, cancel := context.WithTimeout(context.Background(), unsubscribeWait)
	defer cancel()
	if _, err := c.request(ctx, protocol.TypeUnsubscribe, protocol.UnsubscribeData{SubscriptionID: id}); err != nil {
		c.logger.Debug("Unsubscribe failed", "error", err)
	}
}

// Update implements store.Backend. fn runs locally against the latest
// snapshot; the server commits its output only if nobody wrote in between,
// otherwise fn runs again on the newer snapshot it sends back.
func (c *Client) Update(ctx context.Context, key string, fn store.UpdateFunc) (store.Result, error) {
	current, err := c.Get(ctx, key)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return store.Result{}, err
	}

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		next, err := fn(current)
		if err != nil {
			if errors.Is(err, store.ErrAbort) {
				return store.Aborted(current, err), nil
			}
			return store.Result{}, err
		}

		res, err := c.request(ctx, protocol.TypeCAS, protocol.CASData{
			Key:             key,
			ExpectedVersion: current.Version,
			Value:           next,
			Delete:          next == nil,
		})
		if err != nil {
			return store.Result{}, err
		}
		if res.Snapshot == nil {
			return store.Result{}, fmt.Errorf("cas on %s: server sent no snapshot", key)
		}
		if res.Committed {
			return store.Result{Committed: true, Snapshot: *res.Snapshot}, nil
		}

		c.logger.Debug("CAS conflict, retrying", "key", key, "attempt", attempt+1)
		current = *res.Snapshot
	}
	return store.Result{}, store.ErrTooManyRetries
}

// Delete implements store.Backend.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.request(ctx, protocol.TypeDelete, protocol.KeyData{Key: key})
	return err
}

// OnDisconnect implements store.Conn. The server applies patch if this
// client's socket drops for any reason.
func (c *Client) OnDisconnect(ctx context.Context, key string, patch store.Patch) error {
	_, err := c.request(ctx, protocol.TypeOnDisconnect, protocol.OnDisconnectData{Key: key, Patch: patch})
	return err
}

// CancelOnDisconnect implements store.Conn.
func (c *Client) CancelOnDisconnect(ctx context.Context, key string) error {
	_, err := c.request(ctx, protocol.TypeCancelOnDisconnect, protocol.KeyData{Key: key})
	return err
}

// Close sends a close frame and drops the connection. Registered
// disconnect patches fire on the server.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(writeWait))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	c.logger.Info("Disconnected from server")
	return err
}
