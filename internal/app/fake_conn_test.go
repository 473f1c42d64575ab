package app

import (
	"sync"

	"github.com/dkeye/Ringer/internal/core"
	"github.com/dkeye/Ringer/internal/domain"
)

type fakeConn struct {
	id domain.ConnID

	mu     sync.Mutex
	frames []core.Frame
	full   bool
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: domain.NewConnID()}
}

func (c *fakeConn) ID() domain.ConnID { return c.id }

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return core.ErrConnClosed
	}
	if c.full {
		return core.ErrBackpressure
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Frames() []core.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]core.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}
