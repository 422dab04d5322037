// Package bybit is a client for the Bybit v5 public WebSocket streams.
package bybit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/depthview/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the dial and upgrade.
	handshakeTimeout = 15 * time.Second

	// DefaultPingInterval is the keepalive period Bybit recommends.
	DefaultPingInterval = 20 * time.Second
)

// EventHandler is called for every decoded event, from the read goroutine.
type EventHandler func(domain.Event)

// ErrorHandler is called for frames that could not be decoded.
type ErrorHandler func(raw []byte, err error)

// WSClient is a single connection to a Bybit public stream. It does not
// reconnect on its own: when the read loop fails, Done is closed and Err
// reports why, and the owner decides whether to dial again.
type WSClient struct {
	wsURL        string
	pingInterval time.Duration

	mu     sync.RWMutex
	conn   *websocket.Conn
	closed bool

	// writeMu serializes writes; gorilla allows one concurrent writer.
	writeMu sync.Mutex

	// Topics to restore on Connect.
	topics []string

	handlerMu     sync.RWMutex
	eventHandlers []EventHandler
	errorHandlers []ErrorHandler

	done    chan struct{}
	errOnce sync.Once
	err     error
}

// NewWSClient creates a client for wsURL, e.g.
// "wss://stream.bybit.com/v5/public/spot". A non-positive pingInterval
// selects DefaultPingInterval.
func NewWSClient(wsURL string, pingInterval time.Duration) *WSClient {
	if pingInterval <= 0 {
		pingInterval = DefaultPingInterval
	}
	return &WSClient{
		wsURL:        wsURL,
		pingInterval: pingInterval,
		done:         make(chan struct{}),
	}
}

// Connect dials the stream and starts the read and ping loops.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("bybit/ws: %w", domain.ErrWSDisconnect)
	}
	if w.conn != nil {
		return fmt.Errorf("bybit/ws: already connected")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("bybit/ws: connect: %w", err)
	}
	w.conn = conn

	// Bybit answers application pings with a text frame, so any inbound
	// frame extends the deadline.
	conn.SetReadDeadline(time.Now().Add(w.readWait()))

	go w.readLoop(conn)
	go w.pingLoop(conn)

	if len(w.topics) > 0 {
		if err := w.send(ctx, conn, WSCommand{Op: "subscribe", Args: w.topics}); err != nil {
			return fmt.Errorf("bybit/ws: restore subscription: %w", err)
		}
	}
	return nil
}

// Subscribe adds topics to the connection and remembers them for Connect.
// The write gives up at ctx's deadline when that comes before writeWait.
// Bybit answers asynchronously; a refusal ends the connection with an error
// wrapping domain.ErrSubscribeRejected.
func (w *WSClient) Subscribe(ctx context.Context, topics ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("bybit/ws: not connected")
	}
	if err := w.send(ctx, w.conn, WSCommand{Op: "subscribe", Args: topics}); err != nil {
		return fmt.Errorf("bybit/ws: subscribe %v: %w", topics, err)
	}
	w.topics = append(w.topics, topics...)
	return nil
}

// Close sends a close frame and tears down the connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	w.fail(domain.ErrFeedClosed)

	if w.conn != nil {
		w.writeMu.Lock()
		_ = w.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait),
		)
		w.writeMu.Unlock()
		return w.conn.Close()
	}
	return nil
}

// Done is closed when the connection ends for any reason.
func (w *WSClient) Done() <-chan struct{} { return w.done }

// Err returns the reason the connection ended, once Done is closed.
func (w *WSClient) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// OnEvent registers a handler for decoded events.
func (w *WSClient) OnEvent(handler EventHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.eventHandlers = append(w.eventHandlers, handler)
}

// OnDecodeError registers a handler for undecodable frames.
func (w *WSClient) OnDecodeError(handler ErrorHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.errorHandlers = append(w.errorHandlers, handler)
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

func (w *WSClient) readWait() time.Duration {
	return 3 * w.pingInterval
}

func (w *WSClient) fail(err error) {
	w.errOnce.Do(func() {
		w.err = err
		close(w.done)
	})
}

func (w *WSClient) send(ctx context.Context, conn *websocket.Conn, cmd WSCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal command: %w", err)
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	conn.SetWriteDeadline(deadline)
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (w *WSClient) readLoop(conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			w.fail(fmt.Errorf("bybit/ws: read: %w: %w", domain.ErrWSDisconnect, err))
			return
		}
		conn.SetReadDeadline(time.Now().Add(w.readWait()))
		if err := w.handleMessage(message); err != nil {
			w.fail(fmt.Errorf("bybit/ws: %w", err))
			return
		}
	}
}

func (w *WSClient) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(w.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			if err := w.send(context.Background(), conn, WSCommand{Op: "ping"}); err != nil {
				w.fail(fmt.Errorf("bybit/ws: ping: %w: %w", domain.ErrWSDisconnect, err))
				conn.Close()
				return
			}
		}
	}
}

// handleMessage dispatches one frame. It returns an error only when the
// connection cannot continue; undecodable frames go to the error handlers.
func (w *WSClient) handleMessage(raw []byte) error {
	events, err := DecodeMessage(raw)
	if errors.Is(err, domain.ErrSubscribeRejected) {
		return err
	}

	w.handlerMu.RLock()
	eventHandlers := w.eventHandlers
	errorHandlers := w.errorHandlers
	w.handlerMu.RUnlock()

	if err != nil {
		for _, h := range errorHandlers {
			h(raw, err)
		}
		return nil
	}
	for _, ev := range events {
		for _, h := range eventHandlers {
			h(ev)
		}
	}
	return nil
}
