package device

import (
	"context"
	"sync"
)

// LoopbackLink makes bytes written to it available to Read, FIFO order. It
// is the default backend for local demos (--serial-port=loopback) and the
// end-to-end test double for the server's own test suite (spec §8 scenario
// 1).
type LoopbackLink struct {
	mu      sync.Mutex
	cond    *sync.Cond
	buf     []byte
	closed  bool
	resets  int
	onReset func()
}

// NewLoopback returns a ready-to-use LoopbackLink. onReset, if non-nil, is
// invoked synchronously from Reset — tests use it to assert reset behavior
// or to feed a scripted response into the loopback.
func NewLoopback(onReset func()) *LoopbackLink {
	l := &LoopbackLink{onReset: onReset}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Feed makes data available to a subsequent Read, as if the device had
// emitted it.
func (l *LoopbackLink) Feed(data []byte) {
	l.mu.Lock()
	l.buf = append(l.buf, data...)
	l.cond.Broadcast()
	l.mu.Unlock()
}

func (l *LoopbackLink) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for len(l.buf) == 0 && !l.closed {
		l.cond.Wait()
	}
	if l.closed && len(l.buf) == 0 {
		return 0, nil
	}
	n := copy(p, l.buf)
	l.buf = l.buf[n:]
	return n, nil
}

// Write loops the written bytes back to the read side, as a real
// loopback-wired UART would.
func (l *LoopbackLink) Write(p []byte) (int, error) {
	l.Feed(p)
	return len(p), nil
}

func (l *LoopbackLink) Reset(ctx context.Context) error {
	l.mu.Lock()
	l.resets++
	cb := l.onReset
	l.mu.Unlock()
	if cb != nil {
		cb()
	}
	return nil
}

// Resets reports how many times Reset has been called.
func (l *LoopbackLink) Resets() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resets
}

func (l *LoopbackLink) Close() error {
	l.mu.Lock()
	l.closed = true
	l.cond.Broadcast()
	l.mu.Unlock()
	return nil
}
