package event

import (
	"sync"
	"time"
)

// Handler processes one event. Handler bodies must call sync.Checkpoint at
// cooperative checkpoints so the dispatcher can preempt them.
type Handler func(rt Runtime, e *Event, sync *HandlerSync)

// HandlerContext is one scheduled or running instance of a handler. It owns
// its event from spawn until either the EDT reaps it or, when cleanup has
// been transferred, the handler task reaps itself on return.
type HandlerContext struct {
	event     *Event
	fn        Handler
	sync      *HandlerSync
	startedAt time.Time

	mu            sync.Mutex
	running       bool
	reapInHandler bool
}

func newHandlerContext(e *Event, fn Handler) *HandlerContext {
	return &HandlerContext{
		event:     e,
		fn:        fn,
		sync:      NewHandlerSync(),
		startedAt: time.Now(),
		running:   true,
	}
}

// Event returns the event being handled.
func (c *HandlerContext) Event() *Event { return c.event }

// Sync returns the handler's sync object.
func (c *HandlerContext) Sync() *HandlerSync { return c.sync }

func (c *HandlerContext) isRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// finish is called by the handler task after the handler body returns.
// When cleanup has been transferred, the context disposes itself here;
// otherwise it only clears the running flag and leaves cleanup to the EDT.
func (c *HandlerContext) finish() {
	c.mu.Lock()
	reap := c.reapInHandler
	if !reap {
		c.running = false
	}
	c.mu.Unlock()
	if reap {
		c.dispose()
	}
}

// transferReap moves cleanup responsibility to the handler task. Reports
// false when the handler already finished, in which case the caller still
// owns cleanup.
func (c *HandlerContext) transferReap() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return false
	}
	c.reapInHandler = true
	return true
}

func (c *HandlerContext) dispose() {
	c.event.Dispose()
}
