// Package serial owns the lifecycle of serial-port connections: exclusive
// per-port acquisition, buffered line delivery for a polling client, and
// the settling delay that makes close-then-reopen reliable on Windows.
package serial

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
	"go.bug.st/serial"
	"go.uber.org/atomic"
)

// portHandle is the part of the OS port the manager uses.
type portHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// openPort opens the OS device. Replaced in tests.
var openPort = func(name string, mode *serial.Mode) (portHandle, error) {
	return serial.Open(name, mode)
}

// DefaultSettleDelay returns the post-close settling delay for the current
// platform. Windows keeps the device node busy for a while after Close
// returns, and an immediate reopen or flash against it fails
// intermittently; other platforms release the node almost at once.
func DefaultSettleDelay() time.Duration {
	if runtime.GOOS == "windows" {
		return 2 * time.Second
	}
	return 250 * time.Millisecond
}

// Manager owns open, close and write operations against serial ports.
// Every lifecycle change goes through the Registry, which is what keeps
// monitoring and flashing from holding the same port at the same time.
type Manager struct {
	registry *Registry
	settle   time.Duration
	log      *logrus.Entry
	closed   *atomic.Bool
}

// NewManager returns a manager using registry for arbitration. settle is
// the delay applied after each disconnect; pass 0 to disable it.
func NewManager(registry *Registry, settle time.Duration, log *logrus.Entry) *Manager {
	return &Manager{
		registry: registry,
		settle:   settle,
		log:      log,
		closed:   atomic.NewBool(false),
	}
}

// Registry exposes the arbitration table, for callers that only need to
// ask "is this port busy".
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Connect opens port at baud, attaches its line buffer and registers the
// connection. Connecting to a port this process already holds returns the
// existing record without opening a second handle.
func (m *Manager) Connect(port string, baud int) (*Connection, error) {
	if m.closed.Load() {
		return nil, fmt.Errorf("open %s: %w: manager shut down", port, ErrPortUnavailable)
	}
	if conn, ok := m.registry.Get(port); ok {
		return conn, nil
	}

	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	handle, err := openPort(port, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", port, ErrPortUnavailable, err)
	}

	conn := &Connection{
		Port:     port,
		Baud:     baud,
		OpenedAt: time.Now(),
		handle:   handle,
		bridge:   newBridge(),
	}
	if !m.registry.TryAcquire(conn) {
		// Lost a connect race for this port. The winner's handle is the
		// live one; close ours and hand back theirs.
		handle.Close()
		if winner, ok := m.registry.Get(port); ok {
			return winner, nil
		}
		return nil, fmt.Errorf("open %s: %w", port, ErrPortUnavailable)
	}

	go m.readLoop(conn)
	m.log.WithFields(logrus.Fields{"port": port, "baud": baud}).Info("port connected")
	return conn, nil
}

// Disconnect closes the connection holding port and waits the settling
// delay before returning, so the caller can immediately reopen or flash
// the same port. Disconnecting an unheld port succeeds as a no-op. The
// record leaves the registry only after the OS confirms the close.
func (m *Manager) Disconnect(port string) error {
	conn, ok := m.registry.Get(port)
	if !ok {
		return nil
	}

	conn.bridge.stop()
	err := conn.handle.Close()
	m.registry.Release(port)
	if err != nil && !isClosedErr(err) {
		return fmt.Errorf("close %s: %v", port, err)
	}

	m.log.WithField("port", port).Info("port disconnected")
	if m.settle > 0 {
		time.Sleep(m.settle)
	}
	return nil
}

// Write sends data to the connection holding port. It returns once the OS
// accepts the bytes; nothing acknowledges delivery to the device.
func (m *Manager) Write(port string, data []byte) error {
	conn, ok := m.registry.Get(port)
	if !ok {
		return fmt.Errorf("write %s: %w", port, ErrNotConnected)
	}
	if _, err := conn.handle.Write(data); err != nil {
		return fmt.Errorf("write %s: %v", port, err)
	}
	return nil
}

// Drain returns and clears the buffered lines for port. An unheld port
// drains to nil.
func (m *Manager) Drain(port string) []string {
	conn, ok := m.registry.Get(port)
	if !ok {
		return nil
	}
	return conn.bridge.Drain()
}

// Held reports whether this process currently holds port.
func (m *Manager) Held(port string) bool {
	return m.registry.Held(port)
}

// CloseAll tears down every held connection without the settling delay
// and refuses further connects. For process exit, where nothing will
// reopen the ports but a late poll tick might try.
func (m *Manager) CloseAll() {
	m.closed.Store(true)
	for _, conn := range m.registry.Active() {
		conn.bridge.stop()
		conn.handle.Close()
		m.registry.Release(conn.Port)
	}
}

func (m *Manager) readLoop(conn *Connection) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-conn.bridge.done:
			return
		default:
		}

		n, err := conn.handle.Read(buf)
		if err != nil {
			// Expected when Disconnect closes the handle under us. Any
			// other cause is the device detaching; the record stays until
			// the user disconnects, and writes will surface the OS error.
			if !conn.bridge.stopped.Load() {
				m.log.WithField("port", conn.Port).WithError(err).Debug("read loop ended")
			}
			return
		}
		if n > 0 {
			conn.bridge.push(buf[:n])
		}
	}
}

// isClosedErr reports whether err is the "already closed" race that shows
// up when a device detaches mid-teardown. Treated as a successful close.
func isClosedErr(err error) bool {
	if errors.Is(err, os.ErrClosed) {
		return true
	}
	var pe *serial.PortError
	return errors.As(err, &pe) && pe.Code() == serial.PortClosed
}
