// Package event implements the priority event-dispatch core.
//
// A single event dispatch task (EDT) owns the priority queue, the handler
// slot, and the stack of interrupted handlers. Producers enqueue events with
// Generate, or arm one-shot and recurring timers whose expirations synthesize
// events. Each event with a subscribed handler gets its own handler task; a
// strictly-higher-priority event preempts the running handler through its
// HandlerSync, pushing it onto the interrupted stack until the urgent work
// completes.
//
// Preemption is cooperative. Handler bodies must call Checkpoint on their
// sync object often enough that suspension latency stays acceptable; the
// runtime never force-kills a handler. Shutdown is cooperative too: a handler
// that itself initiates quit is detected through the sync's syscall-origin
// bit, and cleanup of its context transfers to the handler's own return path
// so the EDT never waits on it.
package event
