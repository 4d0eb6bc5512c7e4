package transport

import (
	"context"
	"net"
	"runtime/debug"
	"sync"

	"github.com/agrinman/pomp/pomp"
)

// Handler receives connection lifecycle and message events from a Context,
// the way Agent in ssh_agent.go received callbacks off the accept loop.
type Handler interface {
	OnConnected(c *Conn)
	OnDisconnected(c *Conn, err error)
	OnMessage(c *Conn, m *pomp.Message)
}

// Context runs a stream listener's accept loop, handing each accepted
// connection its own reader and writer goroutine and routing events to a
// single Handler.
type Context struct {
	listener net.Listener
	handler  Handler

	mu    sync.Mutex
	conns map[string]*Conn
}

// NewContext wraps an already-bound listener. Use Listen to construct one
// from an Address.
func NewContext(listener net.Listener, h Handler) *Context {
	return &Context{
		listener: listener,
		handler:  h,
		conns:    make(map[string]*Conn),
	}
}

// Run accepts connections until ctx is canceled or the listener errors.
func (ctx *Context) Run(c context.Context) error {
	if ctx.handler == nil {
		return ErrNoHandler
	}

	go func() {
		<-c.Done()
		ctx.listener.Close()
	}()

	for {
		nc, err := ctx.listener.Accept()
		if err != nil {
			select {
			case <-c.Done():
				return nil
			default:
				log.Errorf("accept error: %s", err)
				return err
			}
		}
		conn := newConn(nc)
		ctx.track(conn)
		go ctx.serve(conn)
	}
}

func (ctx *Context) track(c *Conn) {
	ctx.mu.Lock()
	ctx.conns[c.id.String()] = c
	ctx.mu.Unlock()
}

func (ctx *Context) untrack(c *Conn) {
	ctx.mu.Lock()
	delete(ctx.conns, c.id.String())
	ctx.mu.Unlock()
}

// Broadcast sends m to every currently tracked connection, skipping any
// connection whose send queue is full or closed.
func (ctx *Context) Broadcast(m *pomp.Message) {
	ctx.mu.Lock()
	conns := make([]*Conn, 0, len(ctx.conns))
	for _, c := range ctx.conns {
		conns = append(conns, c)
	}
	ctx.mu.Unlock()
	for _, c := range conns {
		select {
		case c.sendCh <- m:
		case <-c.done:
		default:
		}
	}
}

// Connect dials addr and hands the resulting connection its reader and
// writer goroutines, the client-side counterpart of Context.Run's per-accept
// dispatch.
func Connect(c context.Context, addr *Address, h Handler) (*Conn, error) {
	if h == nil {
		return nil, ErrNoHandler
	}

	nc, err := Dial(c, addr)
	if err != nil {
		return nil, err
	}
	conn := newConn(nc)
	go conn.writeLoop()
	h.OnConnected(conn)
	go conn.readLoop(h)
	return conn, nil
}

func (ctx *Context) serve(c *Conn) {
	defer ctx.untrack(c)
	defer recoverToLog()
	go c.writeLoop()
	ctx.handler.OnConnected(c)
	c.readLoop(ctx.handler)
}

// recoverToLog mirrors RecoverToLog's role in the daemon's accept loop:
// a panic in one connection's handler must not take down the listener.
func recoverToLog() {
	if r := recover(); r != nil {
		log.Errorf("panic in connection handler: %v\n%s", r, debug.Stack())
	}
}
