package transport

import (
	"net"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/agrinman/pomp/pomp"
)

// Conn wraps a stream net.Conn with its own framer, a UUID identifying it
// for the lifetime of the process, and a buffered send queue drained by a
// dedicated writer goroutine, the way ServeKRAgent ran a reader and a writer
// side per accepted connection.
type Conn struct {
	id    uuid.UUID
	nc    net.Conn
	proto *pomp.Protocol

	sendCh chan *pomp.Message
	done   chan struct{}
	once   sync.Once
}

func newConn(nc net.Conn) *Conn {
	return &Conn{
		id:     uuid.NewV4(),
		nc:     nc,
		proto:  pomp.NewProtocol(log),
		sendCh: make(chan *pomp.Message, 64),
		done:   make(chan struct{}),
	}
}

// ID identifies this connection for the lifetime of the process.
func (c *Conn) ID() uuid.UUID { return c.id }

// RemoteAddr is the peer address reported by the underlying net.Conn.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

// Send enqueues a finished message for the writer goroutine. It never blocks
// past the connection closing.
func (c *Conn) Send(m *pomp.Message) error {
	select {
	case c.sendCh <- m:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

// WriteSync writes a finished message directly to the socket, bypassing the
// writer goroutine's queue. Useful for a one-shot send where the caller is
// about to close the connection and needs the write to have landed first.
func (c *Conn) WriteSync(m *pomp.Message) error {
	_, err := c.nc.Write(m.Bytes())
	return err
}

// Close shuts down the underlying socket and stops the writer goroutine.
// Safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.nc.Close()
	})
	return err
}

func (c *Conn) writeLoop() {
	for {
		select {
		case m := <-c.sendCh:
			if _, err := c.nc.Write(m.Bytes()); err != nil {
				log.Warningf("conn %s: write error: %s", c.id, err)
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// readLoop feeds bytes from the socket through the per-connection Protocol
// framer and invokes handler.OnMessage for each decoded message, until the
// socket errors or is closed.
func (c *Conn) readLoop(h Handler) {
	buf := make([]byte, 64*1024)
	for {
		n, err := c.nc.Read(buf)
		if err != nil {
			select {
			case <-c.done:
			default:
				h.OnDisconnected(c, err)
			}
			c.Close()
			return
		}
		offset := 0
		for offset < n {
			next, msg := c.proto.Decode(buf[:n], offset)
			offset = next
			if msg != nil {
				h.OnMessage(c, msg)
			}
		}
	}
}
