//go:build windows

package transport

import (
	"context"
	"net"
	"syscall"

	"github.com/Microsoft/go-winio"
)

// listenUnix has no AF_UNIX equivalent on Windows before named pipe support
// landed in net, so a "unix:" address is served by a named pipe instead,
// following the teacher's AgentListen windows fallback. The Linux abstract
// namespace has no Windows equivalent, so an "@name" path is rejected rather
// than silently folded into the pipe name.
func listenUnix(addr *Address) (net.Listener, error) {
	if len(addr.Path) > 0 && addr.Path[0] == '@' {
		return nil, &AddressError{Raw: addr.String(), Err: ErrAbstractUnixUnsupported}
	}
	return winio.ListenPipe(`\\.\pipe\`+addr.Path, nil)
}

// dialUnix dials the named pipe a Windows listenUnix bound, the client-side
// counterpart winio.DialPipe to listenUnix's winio.ListenPipe.
func dialUnix(ctx context.Context, addr *Address) (net.Conn, error) {
	if len(addr.Path) > 0 && addr.Path[0] == '@' {
		return nil, &AddressError{Raw: addr.String(), Err: ErrAbstractUnixUnsupported}
	}
	return winio.DialPipe(`\\.\pipe\`+addr.Path, nil)
}

// reuseAddrControl is a no-op on Windows; SO_REUSEADDR semantics differ
// enough from POSIX that setting it would change rebind behavior in ways
// the original teacher code never relied on.
func reuseAddrControl(network, address string, c syscall.RawConn) error {
	return nil
}
