package transport

import (
	"context"
	"net"

	lru "github.com/hashicorp/golang-lru"

	"github.com/agrinman/pomp/pomp"
)

// peerCacheSize bounds the number of distinct senders a Datagram transport
// keeps per-sender framer state for, the same way ServeKRAgent bounded
// hostAuthCallbacksBySessionID to 128 entries rather than growing unbounded
// with every session seen.
const peerCacheSize = 128

// DatagramHandler receives messages decoded off a connectionless transport,
// tagged with the sender that produced them.
type DatagramHandler interface {
	OnDatagramMessage(addr net.Addr, m *pomp.Message)
}

// Datagram serves pomp messages over a connectionless socket (UDP or
// unixgram). Each sender address gets its own Protocol so that a message
// split across two packets from the same peer still reassembles, while an
// LRU eviction keeps memory bounded under many distinct or spoofed senders.
type Datagram struct {
	conn    net.PacketConn
	cache   *lru.Cache
	handler DatagramHandler
}

// DialDatagram connects a connectionless socket to addr so Write sends
// directly to that peer without needing a destination on every call.
func DialDatagram(addr *Address) (net.Conn, error) {
	return net.Dial(addr.datagramNetwork(), addr.dialAddr())
}

// ListenDatagram binds a connectionless socket at addr.
func ListenDatagram(addr *Address, h DatagramHandler) (*Datagram, error) {
	conn, err := net.ListenPacket(addr.datagramNetwork(), addr.dialAddr())
	if err != nil {
		return nil, err
	}
	cache, err := lru.New(peerCacheSize)
	if err != nil {
		return nil, err
	}
	return &Datagram{conn: conn, cache: cache, handler: h}, nil
}

// Run reads packets until ctx is canceled or the socket errors.
func (d *Datagram) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		d.conn.Close()
	}()

	buf := make([]byte, 64*1024)
	for {
		n, from, err := d.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				log.Errorf("datagram read error: %s", err)
				return err
			}
		}
		d.decode(from, buf[:n])
	}
}

func (d *Datagram) decode(from net.Addr, pkt []byte) {
	proto := d.protocolFor(from)
	offset := 0
	for offset < len(pkt) {
		next, msg := proto.Decode(pkt, offset)
		offset = next
		if msg != nil {
			d.handler.OnDatagramMessage(from, msg)
		}
	}
}

func (d *Datagram) protocolFor(from net.Addr) *pomp.Protocol {
	key := from.String()
	if v, ok := d.cache.Get(key); ok {
		return v.(*pomp.Protocol)
	}
	proto := pomp.NewProtocol(log)
	d.cache.Add(key, proto)
	return proto
}

// SendTo writes a finished message to a single destination address.
func (d *Datagram) SendTo(addr net.Addr, m *pomp.Message) error {
	_, err := d.conn.WriteTo(m.Bytes(), addr)
	return err
}

// Close releases the underlying socket.
func (d *Datagram) Close() error {
	return d.conn.Close()
}
