// internal/transport/conn.go
//
// Peer link between the two players of a match.
// Responsibilities:
//   - Define Conn, the transport contract the session consumes.
//   - Implement it over a websocket (read/write pumps, pings, deadlines).
//
// Notes:
//   - Delivery is ordered and reliable as long as the socket is up; any
//     read or write failure closes the Conn and is reported once to OnClose.
//   - Frames are protocol envelopes; unknown kinds are skipped here so the
//     session never sees them.

package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/codebreak/internal/protocol"
)

var (
	// ErrClosed is returned by Send after the Conn has closed.
	ErrClosed = errors.New("connection closed")
	// ErrPeerClosed is passed to OnClose when the other side hung up.
	ErrPeerClosed = errors.New("peer closed connection")
	// ErrSlowPeer is passed to OnClose when the send buffer overflowed.
	ErrSlowPeer = errors.New("peer not reading, send buffer full")
)

// Conn is one end of an ordered, reliable, bidirectional message channel.
// Register handlers before calling Start.
type Conn interface {
	ID() string
	Send(protocol.Message) error
	OnMessage(func(protocol.Message))
	OnOpen(func())
	OnClose(func(error))
	Start()
	Close() error
}

// Options holds configuration for websocket connections.
type Options struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBuffer     int
	Logger         zerolog.Logger
}

// DefaultOptions returns the default websocket configuration.
func DefaultOptions() Options {
	return Options{
		WriteTimeout:   10 * time.Second,
		ReadTimeout:    60 * time.Second,
		PingInterval:   30 * time.Second,
		MaxMessageSize: 1024,
		SendBuffer:     64,
		Logger:         log.Logger,
	}
}

// normalized fills unset fields from DefaultOptions and keeps ReadTimeout
// above PingInterval. Each side refreshes its read deadline on the pong to
// its own ping, so a shorter timeout drops idle but healthy links.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PingInterval <= 0 {
		o.PingInterval = d.PingInterval
	}
	if o.ReadTimeout <= o.PingInterval {
		o.ReadTimeout = 2 * o.PingInterval
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	return o
}

// handlers is shared by every Conn implementation.
type handlers struct {
	mu      sync.Mutex
	message func(protocol.Message)
	open    func()
	close   func(error)
}

func (h *handlers) OnMessage(fn func(protocol.Message)) { h.mu.Lock(); h.message = fn; h.mu.Unlock() }
func (h *handlers) OnOpen(fn func())                    { h.mu.Lock(); h.open = fn; h.mu.Unlock() }
func (h *handlers) OnClose(fn func(error))              { h.mu.Lock(); h.close = fn; h.mu.Unlock() }

func (h *handlers) fireMessage(m protocol.Message) {
	h.mu.Lock()
	fn := h.message
	h.mu.Unlock()
	if fn != nil {
		fn(m)
	}
}

func (h *handlers) fireOpen() {
	h.mu.Lock()
	fn := h.open
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func (h *handlers) fireClose(err error) {
	h.mu.Lock()
	fn := h.close
	h.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// wsConn is a Conn over a gorilla websocket.
type wsConn struct {
	handlers

	id   string
	ws   *websocket.Conn
	opts Options
	log  zerolog.Logger

	send      chan []byte
	closing   chan struct{} // asks the write pump to flush and close
	done      chan struct{}
	started   atomic.Bool
	closeReq  sync.Once
	closeOnce sync.Once
	startOnce sync.Once
}

func newWSConn(ws *websocket.Conn, opts Options, side string) *wsConn {
	opts = opts.normalized()
	id := uuid.NewString()
	return &wsConn{
		id:      id,
		ws:      ws,
		opts:    opts,
		log:     opts.Logger.With().Str("connection_id", id).Str("side", side).Logger(),
		send:    make(chan []byte, opts.SendBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (c *wsConn) ID() string { return c.id }

// Start reports the link as open and begins pumping frames.
func (c *wsConn) Start() {
	c.startOnce.Do(func() {
		c.started.Store(true)
		c.fireOpen()
		go c.writePump()
		go c.readPump()
		c.log.Info().Str("remote", c.ws.RemoteAddr().String()).Msg("websocket connection established")
	})
}

// Send encodes m and queues it for the write pump.
func (c *wsConn) Send(m protocol.Message) error {
	b, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.send <- b:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		// Send is usually called from the session loop, and OnClose posts
		// back into it; report the close from another goroutine.
		go c.shutdown(ErrSlowPeer)
		return ErrSlowPeer
	}
}

// Close writes every frame already queued, then a normal close frame, and
// tears the connection down. It waits at most WriteTimeout for the flush.
func (c *wsConn) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}
	if !c.started.Load() {
		c.writeClose()
		c.shutdown(nil)
		return nil
	}

	c.closeReq.Do(func() { close(c.closing) })
	select {
	case <-c.done:
	case <-time.After(c.opts.WriteTimeout):
		c.log.Warn().Msg("flush on close timed out")
		c.shutdown(nil)
	}
	return nil
}

func (c *wsConn) writeClose() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.opts.WriteTimeout))
}

// shutdown runs once: it stops both pumps and reports the cause.
func (c *wsConn) shutdown(cause error) {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
		c.log.Info().Err(cause).Msg("connection closed")
		c.fireClose(cause)
	})
}

// writePump handles sending frames and keepalive pings.
func (c *wsConn) writePump() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case <-c.closing:
			if err := c.flush(); err != nil {
				c.shutdown(err)
				return
			}
			c.writeClose()
			c.shutdown(nil)
			return

		case frame := <-c.send:
			if err := c.writeFrame(frame); err != nil {
				c.shutdown(err)
				return
			}

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Error().Err(err).Msg("failed to send ping")
				c.shutdown(err)
				return
			}
		}
	}
}

func (c *wsConn) writeFrame(frame []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.log.Error().Err(err).Msg("failed to write frame")
		return err
	}
	return nil
}

// flush writes whatever is still queued in the send buffer.
func (c *wsConn) flush() error {
	for {
		select {
		case frame := <-c.send:
			if err := c.writeFrame(frame); err != nil {
				return err
			}
		default:
			return nil
		}
	}
}

// readPump decodes inbound frames in arrival order.
func (c *wsConn) readPump() {
	c.ws.SetReadLimit(c.opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))
	})

	for {
		_, frame, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(readError(err))
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		m, err := protocol.Decode(frame)
		if err != nil {
			if errors.Is(err, protocol.ErrUnknownKind) {
				c.log.Debug().Str("kind", string(m.Kind)).Msg("skipping unknown frame")
			} else {
				c.log.Warn().Err(err).Msg("dropping malformed frame")
			}
			continue
		}
		c.fireMessage(m)
	}
}

// readError maps an orderly remote close to ErrPeerClosed.
func readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return ErrPeerClosed
	}
	return err
}
