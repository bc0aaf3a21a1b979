// Package core owns the process-wide runtime handle: subsystem wiring and
// the init/quit/dispose lifecycle.
package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/agent"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/cmd"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/config"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/device"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/journal"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/notify"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/observability"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/plugin"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/storage"
)

var (
	// ErrEventNotStopped means dispose found the event subsystem live.
	ErrEventNotStopped = errors.New("event subsystem has not been torn down")

	// ErrInputNotStopped means dispose found the input subsystem live.
	ErrInputNotStopped = errors.New("input subsystem has not been torn down")

	// ErrStopped is returned by runtime operations after quit.
	ErrStopped = errors.New("runtime stopped")
)

// DisposeExitCode maps a Dispose error to the process exit code
// convention: 0 success, 1 event subsystem live, 2 input subsystem live.
func DisposeExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrEventNotStopped):
		return 1
	case errors.Is(err, ErrInputNotStopped):
		return 2
	default:
		return 1
	}
}

// AgentName is the default persona name.
const AgentName = "Masa-chan"

// Handle is the process-wide runtime state container.
type Handle struct {
	mu     sync.Mutex
	status Status

	cfg    *config.Config
	logger *slog.Logger

	hub        *notify.Hub
	dispatcher *event.Dispatcher
	plugins    *plugin.Manager
	registry   *cmd.Registry
	inputs     *device.Registry[device.InputDevice]
	outputs    *device.Registry[device.OutputDevice]
	persona    *agent.Agent
	jrnl       *journal.Journal

	startedAt time.Time
}

// Init allocates the handle and brings up the event and input subsystems,
// unwinding on failure.
func Init(cfg *config.Config) (*Handle, error) {
	if cfg == nil {
		cfg = config.Defaults()
	}

	h := &Handle{
		status:    StatusCreated,
		cfg:       cfg,
		logger:    log.WithComponent("core"),
		hub:       notify.NewHub(256),
		registry:  cmd.NewRegistry(),
		inputs:    device.NewRegistry[device.InputDevice](),
		outputs:   device.NewRegistry[device.OutputDevice](),
		startedAt: time.Now(),
	}
	h.persona = agent.New(AgentName, h.outputs)

	dispatchOpts := []event.Option{
		event.WithNotifier(h.hub),
		event.WithMetrics(observability.NewMetricsRecorder()),
		event.WithSpeaker(h.persona),
	}
	if cfg.Journal.Path != "" {
		db, err := storage.OpenSQLite(context.Background(), cfg.Journal.Path)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
		h.jrnl = journal.New(db)
		dispatchOpts = append(dispatchOpts, event.WithRecorder(h.jrnl))
	}

	h.dispatcher = event.New(event.Config{
		IdleSleep:      time.Duration(cfg.Event.IdleSleepTime) * time.Millisecond,
		TickResolution: time.Duration(cfg.Event.TickResolution) * time.Millisecond,
	}, dispatchOpts...)

	h.plugins = plugin.NewManager(h,
		plugin.WithAutoloadDir(cfg.Plugins.Dir),
		plugin.WithNotifier(h.hub),
	)

	if err := h.dispatcher.Start(h); err != nil {
		h.unwindInit()
		return nil, fmt.Errorf("start event subsystem: %w", err)
	}
	h.setStatus(StatusRunning)

	if err := h.dispatcher.Setup(h.registry); err != nil {
		_ = h.Quit()
		return nil, fmt.Errorf("register built-in commands: %w", err)
	}
	if err := h.plugins.Init(); err != nil {
		_ = h.Quit()
		return nil, fmt.Errorf("init plugin subsystem: %w", err)
	}

	h.logger.Info("runtime initialized", "status", h.Status().String())
	return h, nil
}

// unwindInit releases resources acquired before the EDT started.
func (h *Handle) unwindInit() {
	if h.jrnl != nil {
		_ = h.jrnl.Close()
		h.jrnl = nil
	}
}

// Quit transitions to STOP_REQUESTED, joins the EDT, and tears down the
// subsystems. Idempotent against subsystems already torn down.
func (h *Handle) Quit() error {
	h.mu.Lock()
	if h.status == StatusStopRequested || h.status == StatusStopped {
		h.mu.Unlock()
		return nil
	}
	h.status = StatusStopRequested
	dispatcher := h.dispatcher
	h.mu.Unlock()

	if dispatcher != nil {
		h.logger.Debug("joining on EDT")
		dispatcher.Stop()
		dispatcher.Join()
		h.logger.Debug("EDT joined")
		dispatcher.Teardown(h.registry)
	}
	if h.plugins != nil {
		h.plugins.Shutdown()
	}
	if h.jrnl != nil {
		if err := h.jrnl.Close(); err != nil {
			h.logger.Error("could not close journal", "error", err)
		}
	}

	h.mu.Lock()
	h.dispatcher = nil
	h.plugins = nil
	h.inputs = nil
	h.jrnl = nil
	h.status = StatusStopped
	h.mu.Unlock()

	h.logger.Info("runtime stopped")
	return nil
}

// Dispose releases the handle. Legal only once every subsystem pointer is
// null; the returned error identifies the live subsystem otherwise.
func (h *Handle) Dispose() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.dispatcher != nil {
		return ErrEventNotStopped
	}
	if h.inputs != nil {
		return ErrInputNotStopped
	}
	h.registry = nil
	h.outputs = nil
	h.hub = nil
	return nil
}

// setStatus updates the runtime lifecycle state under the handle lock.
func (h *Handle) setStatus(s Status) {
	h.mu.Lock()
	h.status = s
	h.mu.Unlock()
}

// Status returns the runtime lifecycle state.
func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.status
}

// StatusString returns the lifecycle state name.
func (h *Handle) StatusString() string { return h.Status().String() }

// Uptime returns how long the runtime has been up.
func (h *Handle) Uptime() time.Duration { return time.Since(h.startedAt) }

func (h *Handle) disp() *event.Dispatcher {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dispatcher
}

// Generate enqueues an event at its topic's default priority.
func (h *Handle) Generate(t event.Topic, args event.Args) {
	if d := h.disp(); d != nil {
		d.Generate(t, args)
	}
}

// GenerateWithPriority enqueues an event at an explicit priority.
func (h *Handle) GenerateWithPriority(t event.Topic, priority uint8, args event.Args) {
	if d := h.disp(); d != nil {
		d.GenerateWithPriority(t, priority, args)
	}
}

// Schedule arms a one-shot timer firing at the given timestamp.
func (h *Handle) Schedule(at time.Time, t event.Topic, args event.Args) (int16, error) {
	d := h.disp()
	if d == nil {
		return -1, ErrStopped
	}
	return d.Schedule(at, t, args)
}

// Delay arms a one-shot timer firing after the given duration.
func (h *Handle) Delay(delay time.Duration, t event.Topic, args event.Args) (int16, error) {
	d := h.disp()
	if d == nil {
		return -1, ErrStopped
	}
	return d.Delay(delay, t, args)
}

// AddTimer arms a recurring timer with the given period.
func (h *Handle) AddTimer(period time.Duration, t event.Topic, args event.Args) (int16, error) {
	d := h.disp()
	if d == nil {
		return -1, ErrStopped
	}
	return d.AddTimer(period, t, args)
}

// RemoveTimer removes and destroys a timer.
func (h *Handle) RemoveTimer(id int16) error {
	d := h.disp()
	if d == nil {
		return ErrStopped
	}
	return d.RemoveTimer(id)
}

// Timers returns a snapshot of currently-registered timer ids.
func (h *Handle) Timers() []int16 {
	d := h.disp()
	if d == nil {
		return nil
	}
	return d.Timers()
}

// Subscribe maps a topic to a handler, replacing any existing mapping.
func (h *Handle) Subscribe(t event.Topic, handler event.Handler) {
	if d := h.disp(); d != nil {
		d.Subscribe(t, handler)
	}
}

// Unsubscribe removes the topic's handler mapping.
func (h *Handle) Unsubscribe(t event.Topic) {
	if d := h.disp(); d != nil {
		d.Unsubscribe(t)
	}
}

// Commands returns the command registry.
func (h *Handle) Commands() *cmd.Registry { return h.registry }

// InputDevices returns the input device registry.
func (h *Handle) InputDevices() *device.Registry[device.InputDevice] { return h.inputs }

// OutputDevices returns the output device registry.
func (h *Handle) OutputDevices() *device.Registry[device.OutputDevice] { return h.outputs }

// Agent returns the runtime persona.
func (h *Handle) Agent() *agent.Agent { return h.persona }

// Plugins returns the plugin manager.
func (h *Handle) Plugins() *plugin.Manager {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.plugins
}

// Notifications returns the lifecycle notification hub.
func (h *Handle) Notifications() *notify.Hub { return h.hub }

// Journal returns the dispatch journal, or nil when disabled.
func (h *Handle) Journal() *journal.Journal {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.jrnl
}
