package transport

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Network identifies the addressing family of an Address, generalized from
// the single hardcoded daemon socket path the teacher used into the set of
// schemes a pomp endpoint can bind or dial.
type Network string

const (
	NetworkInet  Network = "inet"
	NetworkInet6 Network = "inet6"
	NetworkUnix  Network = "unix"
)

// Address is a parsed pomp endpoint address. Host/Port are populated for
// NetworkInet and NetworkInet6; Path is populated for NetworkUnix, where a
// leading '@' denotes the Linux abstract namespace rather than a filesystem
// path.
type Address struct {
	Network Network
	Host    string
	Port    uint16
	Path    string
}

// AddressError reports a malformed address string, the way EncodeError and
// DecodeError report malformed wire data.
type AddressError struct {
	Raw string
	Err error
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("transport: address %q: %s", e.Raw, e.Err)
}

func (e *AddressError) Unwrap() error { return e.Err }

// ParseAddress accepts "inet:host:port", "inet6:host:port", "unix:/path/to/socket"
// and "unix:@abstract-name".
func ParseAddress(s string) (*Address, error) {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok {
		return nil, &AddressError{Raw: s, Err: ErrBadAddress}
	}

	switch scheme {
	case "inet", "inet6":
		host, portStr, err := net.SplitHostPort(rest)
		if err != nil {
			return nil, &AddressError{Raw: s, Err: err}
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, &AddressError{Raw: s, Err: ErrBadAddress}
		}
		net := NetworkInet
		if scheme == "inet6" {
			net = NetworkInet6
		}
		return &Address{Network: net, Host: host, Port: uint16(port)}, nil
	case "unix":
		if rest == "" {
			return nil, &AddressError{Raw: s, Err: ErrBadAddress}
		}
		return &Address{Network: NetworkUnix, Path: rest}, nil
	default:
		return nil, &AddressError{Raw: s, Err: ErrUnknownNetwork}
	}
}

// String renders the address back to its "scheme:rest" textual form.
func (a *Address) String() string {
	switch a.Network {
	case NetworkInet:
		return fmt.Sprintf("inet:%s", net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port))))
	case NetworkInet6:
		return fmt.Sprintf("inet6:%s", net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port))))
	case NetworkUnix:
		return fmt.Sprintf("unix:%s", a.Path)
	default:
		return fmt.Sprintf("unknown:%s", a.Host)
	}
}

// dialNetwork and dialAddr translate an Address into the arguments net.Dial
// and net.Listen expect.
func (a *Address) dialNetwork() string {
	switch a.Network {
	case NetworkInet:
		return "tcp4"
	case NetworkInet6:
		return "tcp6"
	case NetworkUnix:
		return "unix"
	default:
		return ""
	}
}

func (a *Address) dialAddr() string {
	switch a.Network {
	case NetworkInet, NetworkInet6:
		return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
	case NetworkUnix:
		return a.Path
	default:
		return ""
	}
}

// datagramNetwork is the connectionless counterpart used by datagram.go.
func (a *Address) datagramNetwork() string {
	switch a.Network {
	case NetworkInet:
		return "udp4"
	case NetworkInet6:
		return "udp6"
	case NetworkUnix:
		return "unixgram"
	default:
		return ""
	}
}
