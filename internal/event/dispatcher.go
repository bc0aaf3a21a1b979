package event

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/notify"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/observability"
)

// reapPollInterval is the back-off used while waiting out a handler that
// must run to completion during cleanup.
const reapPollInterval = 10 * time.Millisecond

// Config holds dispatcher tuning.
type Config struct {
	// IdleSleep is the EDT sleep between loop iterations.
	IdleSleep time.Duration
	// TickResolution is the minimum interval between timer-fire passes.
	TickResolution time.Duration
	// SuspendAckTimeout bounds each wait for a handler to acknowledge a
	// suspension request before the wait is logged and retried.
	SuspendAckTimeout time.Duration
}

// DefaultConfig returns the dispatcher defaults.
func DefaultConfig() Config {
	return Config{
		IdleSleep:         10 * time.Millisecond,
		TickResolution:    10 * time.Millisecond,
		SuspendAckTimeout: 5 * time.Second,
	}
}

// Runtime is the surface handlers and plugins may call back into. The
// runtime handle implements it; the dispatcher itself provides everything
// except a runtime-level Quit.
type Runtime interface {
	Generate(t Topic, args Args)
	GenerateWithPriority(t Topic, priority uint8, args Args)
	Schedule(at time.Time, t Topic, args Args) (int16, error)
	Delay(d time.Duration, t Topic, args Args) (int16, error)
	AddTimer(period time.Duration, t Topic, args Args) (int16, error)
	RemoveTimer(id int16) error
	Timers() []int16
	Subscribe(t Topic, h Handler)
	Unsubscribe(t Topic)
	Quit() error
}

//go:generate mockgen -destination=mocks/mock_recorder.go -package=mocks github.com/AOE-khkhan/moe-serifu-agent/internal/event Recorder

// Recorder receives dispatch audit records. Calls happen on the EDT and
// must be fast.
type Recorder interface {
	RecordDispatched(e *Event)
	RecordDiscarded(e *Event)
	RecordTimerFired(id int16, t Topic, recurring bool)
}

// Speaker is the agent utterance collaborator used by built-in commands.
type Speaker interface {
	Say(text string)
}

type logSpeaker struct{}

func (logSpeaker) Say(text string) {
	log.WithComponent("agent").Info("say", "text", text)
}

// Dispatcher runs the event dispatch task. Exactly one EDT runs per
// runtime from Start until Stop completes; it is the sole mutator of the
// queue, the handler slot, and the interrupted stack.
type Dispatcher struct {
	cfg     Config
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	rec     Recorder
	hub     *notify.Hub
	speaker Speaker

	rt Runtime

	queueMu sync.Mutex
	queue   eventQueue
	nextSeq uint64

	handlersMu sync.RWMutex
	handlers   map[Topic]Handler

	// EDT-only state.
	current     *HandlerContext
	interrupted []*HandlerContext
	lastTick    time.Time

	timers *timerTable

	startMu  sync.Mutex
	started  bool
	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithRecorder sets the dispatch audit recorder.
func WithRecorder(r Recorder) Option {
	return func(d *Dispatcher) { d.rec = r }
}

// WithNotifier sets the lifecycle notification hub.
func WithNotifier(h *notify.Hub) Option {
	return func(d *Dispatcher) { d.hub = h }
}

// WithSpeaker sets the agent utterance collaborator for built-in commands.
func WithSpeaker(s Speaker) Option {
	return func(d *Dispatcher) { d.speaker = s }
}

// New creates a dispatcher. Zero config fields take their defaults.
func New(cfg Config, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if cfg.IdleSleep <= 0 {
		cfg.IdleSleep = def.IdleSleep
	}
	if cfg.TickResolution < cfg.IdleSleep {
		cfg.TickResolution = max(cfg.IdleSleep, def.TickResolution)
	}
	if cfg.SuspendAckTimeout <= 0 {
		cfg.SuspendAckTimeout = def.SuspendAckTimeout
	}
	d := &Dispatcher{
		cfg:      cfg,
		logger:   log.WithComponent("edt"),
		metrics:  observability.NoopMetrics{},
		speaker:  logSpeaker{},
		handlers: make(map[Topic]Handler),
		timers:   newTimerTable(),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the EDT. rt is the runtime passed to spawned handlers;
// nil means handlers see the dispatcher itself.
func (d *Dispatcher) Start(rt Runtime) error {
	d.startMu.Lock()
	defer d.startMu.Unlock()
	if d.started {
		return ErrAlreadyStarted
	}
	if rt == nil {
		rt = d
	}
	d.rt = rt
	d.started = true
	d.wg.Add(1)
	go d.loop()
	d.logger.Info("event dispatch task started",
		"idle_sleep", d.cfg.IdleSleep, "tick_resolution", d.cfg.TickResolution)
	return nil
}

// Stop requests EDT shutdown. Safe to call more than once and from any
// task, including a running handler.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.stopCh) })
}

// Join blocks until the EDT has exited and cleanup has run.
func (d *Dispatcher) Join() {
	d.wg.Wait()
}

// Quit lets the dispatcher stand in as a Runtime in tests and tools that
// run it without a surrounding handle.
func (d *Dispatcher) Quit() error {
	d.Stop()
	return nil
}

// Subscribe maps a topic to a handler, replacing any existing mapping.
func (d *Dispatcher) Subscribe(t Topic, h Handler) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	if h == nil {
		delete(d.handlers, t)
		return
	}
	d.handlers[t] = h
}

// Unsubscribe removes the topic's handler mapping.
func (d *Dispatcher) Unsubscribe(t Topic) {
	d.handlersMu.Lock()
	defer d.handlersMu.Unlock()
	delete(d.handlers, t)
}

func (d *Dispatcher) handlerFor(t Topic) Handler {
	d.handlersMu.RLock()
	defer d.handlersMu.RUnlock()
	return d.handlers[t]
}

// Generate enqueues an event at its topic's default priority. Lock-short
// and non-blocking; never waits on handlers.
func (d *Dispatcher) Generate(t Topic, args Args) {
	d.GenerateWithPriority(t, t.DefaultPriority(), args)
}

// GenerateWithPriority enqueues an event at an explicit priority.
func (d *Dispatcher) GenerateWithPriority(t Topic, priority uint8, args Args) {
	e := NewEvent(t, priority, args)
	d.queueMu.Lock()
	e.seq = d.nextSeq
	d.nextSeq++
	d.queue.push(e)
	d.queueMu.Unlock()
	d.logger.Debug("pushed event", "topic", t.String(), "priority", priority)
}

// Schedule arms a one-shot timer firing at the given timestamp. Returns
// -1 with ErrScheduleInPast when the timestamp is not in the future.
func (d *Dispatcher) Schedule(at time.Time, t Topic, args Args) (int16, error) {
	remaining := time.Until(at)
	if remaining <= 0 {
		return -1, ErrScheduleInPast
	}
	return d.Delay(remaining, t, args)
}

// Delay arms a one-shot timer firing after the given duration.
func (d *Dispatcher) Delay(delay time.Duration, t Topic, args Args) (int16, error) {
	id, err := d.timers.add(delay, t, args, false)
	if err != nil {
		return id, err
	}
	d.logger.Debug("scheduled one-shot timer", "topic", t.String(), "delay", delay, "id", id)
	return id, nil
}

// AddTimer arms a recurring timer with the given period.
func (d *Dispatcher) AddTimer(period time.Duration, t Topic, args Args) (int16, error) {
	id, err := d.timers.add(period, t, args, true)
	if err != nil {
		return id, err
	}
	d.logger.Debug("scheduled recurring timer", "topic", t.String(), "period", period, "id", id)
	return id, nil
}

// RemoveTimer removes and destroys a timer. Fails with ErrNoSuchTimer
// when the id is not registered.
func (d *Dispatcher) RemoveTimer(id int16) error {
	if err := d.timers.remove(id); err != nil {
		return err
	}
	d.logger.Debug("removed timer", "id", id)
	return nil
}

// Timers returns a snapshot of currently-registered timer ids.
func (d *Dispatcher) Timers() []int16 {
	return d.timers.ids()
}

// loop is the EDT main loop.
func (d *Dispatcher) loop() {
	defer d.wg.Done()
	defer d.logger.Info("event dispatch task stopped")
	for {
		select {
		case <-d.stopCh:
			d.cleanup()
			return
		default:
		}
		d.runOnce()
		time.Sleep(d.cfg.IdleSleep)
	}
}

// runOnce is a single EDT pass: poll, dispatch, reap, resume, tick.
func (d *Dispatcher) runOnce() {
	if e := d.poll(); e != nil {
		d.logger.Debug("dispatching event", "topic", e.Topic.String(), "priority", e.Priority)
		d.dispatchEvent(e)
	}

	if d.current != nil && !d.current.isRunning() {
		d.reapCurrent()
	}

	if d.current == nil && len(d.interrupted) > 0 {
		n := len(d.interrupted) - 1
		ctx := d.interrupted[n]
		d.interrupted[n] = nil
		d.interrupted = d.interrupted[:n]
		ctx.sync.Resume()
		d.current = ctx
	}

	now := time.Now()
	if !d.lastTick.Add(d.cfg.TickResolution).After(now) {
		d.lastTick = now
		d.fireTimers(now)
	}
}

// poll inspects the queue head under the queue lock. With a handler
// running, the head is taken only when strictly more urgent; equal
// priorities never preempt.
func (d *Dispatcher) poll() *Event {
	d.queueMu.Lock()
	defer d.queueMu.Unlock()
	head := d.queue.peek()
	if head == nil {
		return nil
	}
	if d.current != nil && d.current.event.Priority >= head.Priority {
		return nil
	}
	return d.queue.pop()
}

// dispatchEvent suspends any running handler, then spawns a handler for
// the event or discards it when no subscriber exists.
func (d *Dispatcher) dispatchEvent(e *Event) {
	if d.current != nil {
		d.interruptCurrent()
	}
	h := d.handlerFor(e.Topic)
	if h == nil {
		d.logger.Debug("no subscriber, discarding event", "topic", e.Topic.String())
		d.metrics.RecordDiscard(context.Background(), e.Topic.String())
		if d.rec != nil {
			d.rec.RecordDiscarded(e)
		}
		if d.hub != nil {
			d.hub.Publish("event.discarded", map[string]any{
				"topic":    e.Topic.String(),
				"priority": e.Priority,
			})
		}
		e.Dispose()
		return
	}
	d.spawnHandler(e, h)
}

// interruptCurrent suspends the running handler and pushes it onto the
// interrupted stack. A handler that finishes instead of acknowledging is
// reaped in place.
func (d *Dispatcher) interruptCurrent() {
	ctx := d.current
	ctx.sync.RequestSuspend()
	for !ctx.sync.AwaitSuspended(d.cfg.SuspendAckTimeout) {
		if !ctx.isRunning() {
			d.reapCurrent()
			return
		}
		d.logger.Warn("handler slow to acknowledge suspension",
			"topic", ctx.event.Topic.String(), "waited", d.cfg.SuspendAckTimeout)
	}
	d.metrics.RecordPreemption(context.Background())
	if d.hub != nil {
		d.hub.Publish("event.preempted", map[string]any{
			"topic":    ctx.event.Topic.String(),
			"priority": ctx.event.Priority,
		})
	}
	d.interrupted = append(d.interrupted, ctx)
	d.current = nil
}

// spawnHandler installs a fresh handler context and starts its task.
func (d *Dispatcher) spawnHandler(e *Event, h Handler) {
	ctx := newHandlerContext(e, h)
	d.current = ctx
	if d.rec != nil {
		d.rec.RecordDispatched(e)
	}
	env := &handlerEnv{Runtime: d.rt, sync: ctx.sync}
	go func() {
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("event handler panicked", "topic", e.Topic.String(), "panic", r)
			}
			ctx.finish()
		}()
		h(env, e, ctx.sync)
	}()
}

// reapCurrent disposes a naturally-finished handler and clears the slot.
func (d *Dispatcher) reapCurrent() {
	ctx := d.current
	d.current = nil
	d.metrics.RecordDispatch(context.Background(),
		ctx.event.Topic.String(), ctx.event.Priority, time.Since(ctx.startedAt))
	if d.hub != nil {
		d.hub.Publish("event.dispatched", map[string]any{
			"topic":    ctx.event.Topic.String(),
			"priority": ctx.event.Priority,
		})
	}
	ctx.dispose()
}

// fireTimers synthesizes events for all due timers.
func (d *Dispatcher) fireTimers(now time.Time) {
	d.timers.fire(now, func(id int16, t Topic, args Args, recurring bool) {
		d.Generate(t, args)
		d.metrics.RecordTimerFired(context.Background(), recurring)
		if d.rec != nil {
			d.rec.RecordTimerFired(id, t, recurring)
		}
		if d.hub != nil {
			d.hub.Publish("timer.fired", map[string]any{
				"id":        id,
				"topic":     t.String(),
				"recurring": recurring,
			})
		}
		d.logger.Debug("fired timer", "id", id, "recurring", recurring)
	})
}

// cleanup tears down EDT state after the loop exits: the current handler
// (not waited on when it originated the quit), the interrupted stack from
// top to bottom, the remaining queue, and all timers.
func (d *Dispatcher) cleanup() {
	if d.current != nil {
		wait := !d.current.sync.SyscallOrigin()
		d.disposeHandlerContext(d.current, wait)
		d.current = nil
	}
	for len(d.interrupted) > 0 {
		n := len(d.interrupted) - 1
		ctx := d.interrupted[n]
		d.interrupted[n] = nil
		d.interrupted = d.interrupted[:n]
		d.disposeHandlerContext(ctx, true)
	}
	d.queueMu.Lock()
	for d.queue.Len() > 0 {
		heap.Pop(&d.queue).(*Event).Dispose()
	}
	d.queueMu.Unlock()
	d.timers.clear()
}

// disposeHandlerContext releases a handler context. A still-running
// handler is resumed if suspended; with wait set the EDT waits it out,
// otherwise cleanup transfers to the handler's own return path.
func (d *Dispatcher) disposeHandlerContext(ctx *HandlerContext, wait bool) {
	if ctx.isRunning() {
		if ctx.sync.Suspended() {
			ctx.sync.Resume()
		}
		if wait {
			for ctx.isRunning() {
				time.Sleep(reapPollInterval)
			}
		} else if ctx.transferReap() {
			return
		}
	}
	ctx.dispose()
}

// handlerEnv is the runtime a spawned handler sees. Quit marks the
// handler's sync syscall-origin bit before delegating, so shutdown knows
// not to wait on the calling handler.
type handlerEnv struct {
	Runtime
	sync *HandlerSync
}

func (h *handlerEnv) Quit() error {
	h.sync.MarkSyscallOrigin()
	return h.Runtime.Quit()
}
