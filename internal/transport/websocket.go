package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WSPath is where the host accepts its peer.
const WSPath = "/ws"

// Acceptor upgrades exactly one incoming HTTP request to a peer Conn.
// Later requests are refused with 409 Conflict.
type Acceptor struct {
	upgrader websocket.Upgrader
	opts     Options

	mu    sync.Mutex
	taken bool
	conns chan Conn
}

// NewAcceptor creates an Acceptor. Origins are not checked: peers are
// native clients, not browsers.
func NewAcceptor(opts Options) *Acceptor {
	return &Acceptor{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		opts:  opts,
		conns: make(chan Conn, 1),
	}
}

// ServeHTTP handles the websocket upgrade.
func (a *Acceptor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	if a.taken {
		a.mu.Unlock()
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		http.Error(w, `{"error":"session_full"}`, http.StatusConflict)
		return
	}
	a.taken = true
	a.mu.Unlock()

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		a.opts.Logger.Error().Err(err).Msg("failed to upgrade websocket connection")
		a.mu.Lock()
		a.taken = false
		a.mu.Unlock()
		return
	}
	a.conns <- newWSConn(ws, a.opts, "host")
}

// Accept waits for the peer to connect.
func (a *Acceptor) Accept(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-a.conns:
		return c, nil
	}
}

// DialOptions configures the joiner side.
type DialOptions struct {
	Options
	JoinSecret   string        // signs a join token when set
	TokenTTL     time.Duration // lifetime of the join token
	HandshakeTTL time.Duration
}

// DefaultDialOptions returns the default joiner configuration.
func DefaultDialOptions() DialOptions {
	return DialOptions{
		Options:      DefaultOptions(),
		TokenTTL:     time.Minute,
		HandshakeTTL: 10 * time.Second,
	}
}

// Dial connects to a host. addr is "host:port" or a full ws:// URL.
func Dial(ctx context.Context, addr string, opts DialOptions) (Conn, error) {
	u, err := peerURL(addr)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	if opts.JoinSecret != "" {
		tok, err := SignJoinToken(opts.JoinSecret, opts.TokenTTL)
		if err != nil {
			return nil, fmt.Errorf("sign join token: %w", err)
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	d := websocket.Dialer{
		HandshakeTimeout: opts.HandshakeTTL,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}
	ws, resp, err := d.DialContext(ctx, u, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %s: %w", u, resp.Status, err)
		}
		return nil, fmt.Errorf("dial %s: %w", u, err)
	}
	return newWSConn(ws, opts.Options, "joiner"), nil
}

// peerURL turns a bare address into the host's websocket URL.
func peerURL(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "", fmt.Errorf("empty peer address")
	}
	if !strings.Contains(addr, "://") {
		addr = "ws://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return "", fmt.Errorf("parse peer address: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Path == "" || u.Path == "/" {
		u.Path = WSPath
	}
	return u.String(), nil
}
