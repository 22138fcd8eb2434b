package serial

import (
	"strings"
	"sync"

	"go.uber.org/atomic"
)

// BufferCap bounds each port's line buffer. When full, the oldest line is
// evicted first.
const BufferCap = 1000

// bridge collects bytes read from an open port into a bounded buffer of
// decoded text lines. The buffer lives exactly as long as its connection
// and is lost when the port closes.
type bridge struct {
	mu      sync.Mutex
	lines   []string
	pending string

	stopped *atomic.Bool
	done    chan struct{}
}

func newBridge() *bridge {
	return &bridge{
		stopped: atomic.NewBool(false),
		done:    make(chan struct{}),
	}
}

// push decodes chunk into lines. Bytes after the last newline are held
// back until the line completes on a later push. CR before a newline is
// stripped so CRLF and LF payloads buffer identically.
func (b *bridge) push(chunk []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending += string(chunk)
	for {
		i := strings.IndexByte(b.pending, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimRight(b.pending[:i], "\r")
		b.pending = b.pending[i+1:]
		b.lines = append(b.lines, line)
		if len(b.lines) > BufferCap {
			b.lines = b.lines[len(b.lines)-BufferCap:]
		}
	}
}

// Drain atomically returns the buffered lines and empties the buffer, so
// a stateless polling client never sees the same line twice and needs no
// cursor of its own.
func (b *bridge) Drain() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines := b.lines
	b.lines = nil
	return lines
}

// stop signals the read loop to exit. Safe to call more than once; only
// the first call closes done.
func (b *bridge) stop() {
	if b.stopped.CompareAndSwap(false, true) {
		close(b.done)
	}
}
