package transport

import "errors"

var (
	ErrBadAddress              = errors.New("transport: malformed address")
	ErrUnknownNetwork          = errors.New("transport: unknown network scheme")
	ErrClosed                  = errors.New("transport: connection closed")
	ErrNoHandler               = errors.New("transport: no handler registered")
	ErrAbstractUnixUnsupported = errors.New("transport: abstract unix sockets are only supported on linux")
)
