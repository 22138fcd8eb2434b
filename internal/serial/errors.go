package serial

import "errors"

var (
	// ErrPortUnavailable means the OS refused to open the device: missing
	// node, insufficient permissions, or a hold by a foreign process.
	ErrPortUnavailable = errors.New("port unavailable")

	// ErrNotConnected means an operation targeted a port with no open
	// connection.
	ErrNotConnected = errors.New("not connected")
)
