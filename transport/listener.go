package transport

import (
	"context"
	"net"
	"time"
)

// dialRetryDelay is how long Dial waits between connection attempts while a
// listener has not yet come up, generalized from DaemonDial's one-shot
// "restart krd and retry once" into an indefinite retry loop bounded only by
// the caller's context.
const dialRetryDelay = 2 * time.Second

// Listen binds addr and returns a net.Listener. For unix sockets it removes
// a stale socket file left behind by an unclean shutdown before binding, and
// for Windows addresses prefixed "unix:" it falls back to a named pipe since
// the platform has no AF_UNIX support before recent builds.
func Listen(addr *Address) (net.Listener, error) {
	if addr.Network == NetworkUnix {
		return listenUnix(addr)
	}

	var lc net.ListenConfig
	lc.Control = reuseAddrControl
	return lc.Listen(context.Background(), addr.dialNetwork(), addr.dialAddr())
}

// Dial connects to addr, retrying every dialRetryDelay until ctx is done.
// This mirrors DaemonDial's "restart the daemon and try again" shape, but
// generalized to a server that may simply not have started listening yet
// rather than a specific named process. Unix addresses go through dialUnix,
// whose Windows variant dials the named pipe a Windows listenUnix bound
// instead of a filesystem socket.
func Dial(ctx context.Context, addr *Address) (net.Conn, error) {
	dial := func(ctx context.Context) (net.Conn, error) {
		if addr.Network == NetworkUnix {
			return dialUnix(ctx, addr)
		}
		return new(net.Dialer).DialContext(ctx, addr.dialNetwork(), addr.dialAddr())
	}

	for {
		conn, err := dial(ctx)
		if err == nil {
			return conn, nil
		}
		log.Warningf("dial %s: %s, retrying in %s", addr, err, dialRetryDelay)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryDelay):
		}
	}
}
