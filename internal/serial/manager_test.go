package serial

import (
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"go.bug.st/serial"

	"github.com/hadefuwa/eblocks-companion-app/internal/logging"
)

// fakePort stands in for an OS serial device. Read blocks until data is
// fed or the port is closed, like the real thing.
type fakePort struct {
	mu     sync.Mutex
	wrote  []byte
	closed bool
	data   chan []byte
}

func newFakePort() *fakePort {
	return &fakePort{data: make(chan []byte, 16)}
}

func (f *fakePort) feed(s string) { f.data <- []byte(s) }

func (f *fakePort) Read(p []byte) (int, error) {
	chunk, ok := <-f.data
	if !ok {
		return 0, io.EOF
	}
	return copy(p, chunk), nil
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, os.ErrClosed
	}
	f.wrote = append(f.wrote, p...)
	return len(p), nil
}

func (f *fakePort) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return os.ErrClosed
	}
	f.closed = true
	close(f.data)
	return nil
}

func (f *fakePort) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakePort) written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.wrote)
}

// stubOpen routes openPort through factory for the duration of the test.
func stubOpen(t *testing.T, factory func(name string) (portHandle, error)) {
	t.Helper()
	orig := openPort
	openPort = func(name string, mode *serial.Mode) (portHandle, error) {
		return factory(name)
	}
	t.Cleanup(func() { openPort = orig })
}

func newTestManager(t *testing.T, settle time.Duration) *Manager {
	t.Helper()
	m := NewManager(NewRegistry(), settle, logging.Discard())
	t.Cleanup(m.CloseAll)
	return m
}

// drainUntil polls Drain the way the UI does, accumulating lines until
// want arrive or the deadline passes.
func drainUntil(t *testing.T, m *Manager, port string, want int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var got []string
	for time.Now().Before(deadline) {
		got = append(got, m.Drain(port)...)
		if len(got) >= want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("drained %d lines before deadline, want %d", len(got), want)
	return nil
}

func TestConnectIdempotent(t *testing.T) {
	opens := 0
	stubOpen(t, func(name string) (portHandle, error) {
		opens++
		return newFakePort(), nil
	})
	m := newTestManager(t, 0)

	first, err := m.Connect("COM5", 115200)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	second, err := m.Connect("COM5", 115200)
	if err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	if first != second {
		t.Error("second Connect returned a different record")
	}
	if opens != 1 {
		t.Errorf("opened %d OS handles, want 1", opens)
	}
}

func TestConnectRefusedByOS(t *testing.T) {
	stubOpen(t, func(name string) (portHandle, error) {
		return nil, errors.New("no such device")
	})
	m := newTestManager(t, 0)

	_, err := m.Connect("COM99", 115200)
	if !errors.Is(err, ErrPortUnavailable) {
		t.Fatalf("Connect error = %v, want ErrPortUnavailable", err)
	}
	if m.Held("COM99") {
		t.Error("failed Connect left a record in the registry")
	}
	if lines := m.Drain("COM99"); lines != nil {
		t.Errorf("failed Connect created a buffer: %v", lines)
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	port := newFakePort()
	stubOpen(t, func(name string) (portHandle, error) { return port, nil })
	m := newTestManager(t, 0)

	if _, err := m.Connect("COM5", 115200); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Disconnect("COM5"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if !port.isClosed() {
		t.Error("OS handle still open after Disconnect")
	}
	if m.Held("COM5") {
		t.Error("record survived Disconnect")
	}
	if err := m.Disconnect("COM5"); err != nil {
		t.Errorf("second Disconnect: %v, want nil", err)
	}
}

func TestDisconnectThenReconnect(t *testing.T) {
	opens := 0
	stubOpen(t, func(name string) (portHandle, error) {
		opens++
		return newFakePort(), nil
	})
	m := newTestManager(t, 0)

	first, err := m.Connect("COM5", 115200)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Disconnect("COM5"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	second, err := m.Connect("COM5", 115200)
	if err != nil {
		t.Fatalf("reconnect: %v", err)
	}
	if second == first {
		t.Error("reconnect returned the torn-down record")
	}
	if opens != 2 {
		t.Errorf("opened %d OS handles, want 2", opens)
	}
}

func TestDisconnectWaitsSettleDelay(t *testing.T) {
	stubOpen(t, func(name string) (portHandle, error) { return newFakePort(), nil })
	settle := 50 * time.Millisecond
	m := newTestManager(t, settle)

	if _, err := m.Connect("COM5", 115200); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	start := time.Now()
	if err := m.Disconnect("COM5"); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if elapsed := time.Since(start); elapsed < settle {
		t.Errorf("Disconnect returned after %v, want at least %v", elapsed, settle)
	}
}

func TestWriteNotConnected(t *testing.T) {
	m := newTestManager(t, 0)
	err := m.Write("COM5", []byte("x"))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Write error = %v, want ErrNotConnected", err)
	}
}

func TestWriteReachesPort(t *testing.T) {
	port := newFakePort()
	stubOpen(t, func(name string) (portHandle, error) { return port, nil })
	m := newTestManager(t, 0)

	if _, err := m.Connect("COM5", 115200); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := m.Write("COM5", []byte("AT\r\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if got := port.written(); got != "AT\r\n" {
		t.Errorf("port received %q, want %q", got, "AT\r\n")
	}
}

func TestReceivedLinesFlowToDrain(t *testing.T) {
	port := newFakePort()
	stubOpen(t, func(name string) (portHandle, error) { return port, nil })
	m := newTestManager(t, 0)

	if _, err := m.Connect("COM5", 115200); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	port.feed("alpha\nbe")
	port.feed("ta\n")

	got := drainUntil(t, m, "COM5", 2)
	if got[0] != "alpha" || got[1] != "beta" {
		t.Errorf("drained %v, want [alpha beta]", got)
	}
	if rest := m.Drain("COM5"); len(rest) != 0 {
		t.Errorf("drain after drain returned %v, want empty", rest)
	}
}

func TestPortsDoNotShareState(t *testing.T) {
	ports := map[string]*fakePort{}
	stubOpen(t, func(name string) (portHandle, error) {
		p := newFakePort()
		ports[name] = p
		return p, nil
	})
	m := newTestManager(t, 0)

	if _, err := m.Connect("COM1", 9600); err != nil {
		t.Fatalf("Connect COM1: %v", err)
	}
	if _, err := m.Connect("COM2", 115200); err != nil {
		t.Fatalf("Connect COM2: %v", err)
	}

	ports["COM1"].feed("from one\n")
	ports["COM2"].feed("from two\n")

	one := drainUntil(t, m, "COM1", 1)
	two := drainUntil(t, m, "COM2", 1)
	if one[0] != "from one" || two[0] != "from two" {
		t.Errorf("buffers crossed: COM1=%v COM2=%v", one, two)
	}

	if err := m.Disconnect("COM1"); err != nil {
		t.Fatalf("Disconnect COM1: %v", err)
	}
	if !m.Held("COM2") {
		t.Error("disconnecting COM1 released COM2")
	}
}

func TestCloseAll(t *testing.T) {
	ports := map[string]*fakePort{}
	stubOpen(t, func(name string) (portHandle, error) {
		p := newFakePort()
		ports[name] = p
		return p, nil
	})
	// A settle this long would hang the test if CloseAll honored it.
	m := NewManager(NewRegistry(), time.Hour, logging.Discard())

	if _, err := m.Connect("COM1", 9600); err != nil {
		t.Fatalf("Connect COM1: %v", err)
	}
	if _, err := m.Connect("COM2", 9600); err != nil {
		t.Fatalf("Connect COM2: %v", err)
	}

	m.CloseAll()

	for name, p := range ports {
		if !p.isClosed() {
			t.Errorf("%s still open after CloseAll", name)
		}
	}
	if m.Held("COM1") || m.Held("COM2") {
		t.Error("registry not empty after CloseAll")
	}

	// A poll tick racing shutdown must not reopen anything
	if _, err := m.Connect("COM1", 9600); !errors.Is(err, ErrPortUnavailable) {
		t.Errorf("Connect after CloseAll = %v, want ErrPortUnavailable", err)
	}
}
