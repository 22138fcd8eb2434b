package pages

import (
	"time"

	"github.com/hadefuwa/eblocks-companion-app/internal/serial"
)

type connectCall struct {
	port string
	baud int
}

type writeCall struct {
	port string
	data []byte
}

type fakeManager struct {
	connectErr error
	listErr    error
	ports      []serial.PortInfo
	drainQueue [][]string

	connectCalls    []connectCall
	disconnectCalls []string
	writeCalls      []writeCall
	drainCalls      int
	listCalls       int
}

func (f *fakeManager) Connect(port string, baud int) (*serial.Connection, error) {
	f.connectCalls = append(f.connectCalls, connectCall{port: port, baud: baud})
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return &serial.Connection{Port: port, Baud: baud, OpenedAt: time.Now()}, nil
}

func (f *fakeManager) Disconnect(port string) error {
	f.disconnectCalls = append(f.disconnectCalls, port)
	return nil
}

func (f *fakeManager) Write(port string, data []byte) error {
	copied := append([]byte(nil), data...)
	f.writeCalls = append(f.writeCalls, writeCall{port: port, data: copied})
	return nil
}

func (f *fakeManager) Drain(port string) []string {
	f.drainCalls++
	if len(f.drainQueue) == 0 {
		return nil
	}
	lines := f.drainQueue[0]
	f.drainQueue = f.drainQueue[1:]
	return lines
}

func (f *fakeManager) ListPorts() ([]serial.PortInfo, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.ports, nil
}
