package serial

import (
	"sort"
	"sync"
	"time"
)

// Connection is the record for one held port. At most one exists per port
// identifier, enforced by the Registry. While a Connection exists its OS
// handle is open; once it leaves the registry the handle has been closed.
type Connection struct {
	Port     string
	Baud     int
	OpenedAt time.Time

	handle portHandle
	bridge *bridge
}

// Registry is the single source of truth for which ports are busy. The
// lock guards only the table and is never held across port I/O, so
// operations on different ports never serialize each other.
type Registry struct {
	mu    sync.Mutex
	conns map[string]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[string]*Connection)}
}

// TryAcquire registers conn under its port identifier. A second acquire on
// a held port fails fast rather than queueing; a caller that wants a held
// port must release the current holder first.
func (r *Registry) TryAcquire(conn *Connection) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, held := r.conns[conn.Port]; held {
		return false
	}
	r.conns[conn.Port] = conn
	return true
}

// Release removes the record for port. Releasing an unheld port is a no-op.
func (r *Registry) Release(port string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.conns, port)
}

// Held reports whether a connection currently holds port.
func (r *Registry) Held(port string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, held := r.conns[port]
	return held
}

// Get returns the connection holding port, if any.
func (r *Registry) Get(port string) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[port]
	return conn, ok
}

// Active returns all held connections, ordered by port identifier.
func (r *Registry) Active() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	conns := make([]*Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		conns = append(conns, conn)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Port < conns[j].Port })
	return conns
}
