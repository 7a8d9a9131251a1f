package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/cardfree/card-server-go/internal/protocol"
)

// Conn is one client connection, transport-agnostic. Reads are single
// envelopes; writes are serialized by the session's writer goroutine.
type Conn interface {
	ReadEnvelope() (*protocol.Envelope, error)
	WriteEnvelope(env *protocol.Envelope) error
	Close() error
	RemoteAddr() string
}

// Transport accepts connections and hands them to the server. Serve blocks
// until ctx is done or the listener fails.
type Transport interface {
	Name() string
	Serve(ctx context.Context, handle func(Conn)) error
}

// ---- raw TCP ----

type tcpTransport struct {
	addr     string
	maxFrame uint32
	logger   *zap.Logger
}

// NewTCPTransport serves the length-prefixed envelope protocol on addr.
func NewTCPTransport(addr string, maxFrame uint32, logger *zap.Logger) Transport {
	if maxFrame == 0 {
		maxFrame = protocol.DefaultMaxFrameBytes
	}
	return &tcpTransport{addr: addr, maxFrame: maxFrame, logger: logger}
}

func (t *tcpTransport) Name() string { return "tcp" }

func (t *tcpTransport) Serve(ctx context.Context, handle func(Conn)) error {
	lis, err := net.Listen("tcp", t.addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", t.addr, err)
	}

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	t.logger.Info("tcp listener started", zap.String("address", t.addr))
	for {
		conn, err := lis.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				continue
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go handle(&tcpConn{conn: conn, maxFrame: t.maxFrame})
	}
}

type tcpConn struct {
	conn     net.Conn
	maxFrame uint32
	writeMu  sync.Mutex
}

func (c *tcpConn) ReadEnvelope() (*protocol.Envelope, error) {
	body, err := protocol.ReadFrame(c.conn, c.maxFrame)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeEnvelope(body)
}

func (c *tcpConn) WriteEnvelope(env *protocol.Envelope) error {
	body, err := protocol.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, body)
}

func (c *tcpConn) Close() error { return c.conn.Close() }

func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

// ---- WebSocket ----

type wsTransport struct {
	addr     string
	maxFrame uint32
	logger   *zap.Logger
}

// NewWebSocketTransport serves the same envelopes as binary WebSocket
// messages. WebSocket framing replaces the length prefix.
func NewWebSocketTransport(addr string, maxFrame uint32, logger *zap.Logger) Transport {
	if maxFrame == 0 {
		maxFrame = protocol.DefaultMaxFrameBytes
	}
	return &wsTransport{addr: addr, maxFrame: maxFrame, logger: logger}
}

func (t *wsTransport) Name() string { return "websocket" }

func (t *wsTransport) Serve(ctx context.Context, handle func(Conn)) error {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.logger.Warn("websocket upgrade failed",
				zap.String("remote", r.RemoteAddr),
				zap.Error(err),
			)
			return
		}
		ws.SetReadLimit(int64(t.maxFrame))
		handle(&wsConn{conn: ws})
	})

	srv := &http.Server{Addr: t.addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	t.logger.Info("websocket listener started", zap.String("address", t.addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: websocket listen %s: %w", t.addr, err)
	}
	return nil
}

type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (c *wsConn) ReadEnvelope() (*protocol.Envelope, error) {
	msgType, body, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	if msgType != websocket.BinaryMessage {
		return nil, protocol.ErrMalformedFrame
	}
	return protocol.DecodeEnvelope(body)
}

func (c *wsConn) WriteEnvelope(env *protocol.Envelope) error {
	body, err := protocol.EncodeEnvelope(env)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.BinaryMessage, body)
}

func (c *wsConn) Close() error { return c.conn.Close() }

func (c *wsConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }
