package irc

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	defaultDialTimeout = 10 * time.Second
	wsMaxMessageSize   = 64 * 1024
)

var ErrNotConnected = errors.New("irc: transport not connected")

// Transport is the byte stream a Session talks over.
//
// Read may be called concurrently with Write and Close. Close must unblock a
// pending Read.
type Transport interface {
	Connect(ctx context.Context, addr string) error
	Read(p []byte) (int, error)
	// Write sends p, giving up at the deadline of ctx.
	Write(ctx context.Context, p []byte) error
	Close() error
}

// TCPTransport is a plain or TLS TCP connection.
type TCPTransport struct {
	// TLSConfig enables TLS when set.
	TLSConfig   *tls.Config
	DialTimeout time.Duration

	mu   sync.Mutex
	conn net.Conn
}

func (t *TCPTransport) Connect(ctx context.Context, addr string) error {
	timeout := t.DialTimeout
	if timeout == 0 {
		timeout = defaultDialTimeout
	}

	dialer := &net.Dialer{Timeout: timeout}

	var (
		conn net.Conn
		err  error
	)

	if t.TLSConfig != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: t.TLSConfig}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}

	if err != nil {
		return err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	return nil
}

func (t *TCPTransport) current() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

func (t *TCPTransport) Read(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}

	return conn.Read(p)
}

func (t *TCPTransport) Write(ctx context.Context, p []byte) error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}

	_, err := conn.Write(p)
	return err
}

func (t *TCPTransport) Close() error {
	conn := t.current()
	if conn == nil {
		return nil
	}

	return conn.Close()
}

// WebSocketTransport speaks IRC over WebSocket text frames, one line per frame.
// Inbound frames get a CRLF appended so they frame like a TCP stream.
type WebSocketTransport struct {
	URL string

	mu sync.Mutex
	ws *websocket.Conn

	pending []byte // rest of the current frame, only touched by Read
}

// Connect dials t.URL; addr is ignored.
func (t *WebSocketTransport) Connect(ctx context.Context, _ string) error {
	ws, _, err := websocket.Dial(ctx, t.URL, nil)
	if err != nil {
		return err
	}

	ws.SetReadLimit(wsMaxMessageSize)

	t.mu.Lock()
	t.ws = ws
	t.mu.Unlock()

	return nil
}

func (t *WebSocketTransport) current() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ws
}

func (t *WebSocketTransport) Read(p []byte) (int, error) {
	ws := t.current()
	if ws == nil {
		return 0, ErrNotConnected
	}

	if len(t.pending) == 0 {
		_, data, err := ws.Read(context.Background())
		if err != nil {
			if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return 0, io.EOF
			}
			return 0, err
		}

		t.pending = append(data, '\r', '\n')
	}

	n := copy(p, t.pending)
	t.pending = t.pending[n:]

	return n, nil
}

func (t *WebSocketTransport) Write(ctx context.Context, p []byte) error {
	ws := t.current()
	if ws == nil {
		return ErrNotConnected
	}

	return ws.Write(ctx, websocket.MessageText, bytes.TrimRight(p, "\r\n"))
}

func (t *WebSocketTransport) Close() error {
	ws := t.current()
	if ws == nil {
		return nil
	}

	return ws.Close(websocket.StatusNormalClosure, "closing")
}
