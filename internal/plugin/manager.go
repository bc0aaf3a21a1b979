package plugin

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/cmd"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/notify"
)

// Entry joins a loaded bundle, its immutable info record, and its opaque
// per-plugin environment.
type Entry struct {
	info     *Info
	env      any
	id       string
	bundle   Bundle
	path     string
	checksum string
	// commands tracks names registered at enable time so disable can
	// withdraw them.
	commands []string
}

// Description is the queryable view of an entry.
type Description struct {
	ID       string `json:"id"`
	Version  string `json:"version"`
	Path     string `json:"path"`
	Checksum string `json:"checksum,omitempty"`
	Enabled  bool   `json:"enabled"`
}

// Manager tracks loaded and enabled plugins. The enabled set is always a
// subset of the loaded set.
type Manager struct {
	host        Host
	hub         *notify.Hub
	logger      *slog.Logger
	autoloadDir string
	loaders     map[string]Loader

	mu      sync.Mutex
	loaded  map[string]*Entry
	enabled map[string]*Entry
}

// Option configures a Manager.
type Option func(*Manager)

// WithAutoloadDir sets the directory scanned at Init.
func WithAutoloadDir(dir string) Option {
	return func(m *Manager) { m.autoloadDir = dir }
}

// WithLoader installs a loader for a file extension (e.g. ".so").
func WithLoader(ext string, l Loader) Option {
	return func(m *Manager) { m.loaders[ext] = l }
}

// WithNotifier sets the lifecycle notification hub.
func WithNotifier(h *notify.Hub) Option {
	return func(m *Manager) { m.hub = h }
}

// NewManager creates a plugin manager for the given host.
func NewManager(host Host, opts ...Option) *Manager {
	m := &Manager{
		host:   host,
		logger: log.WithComponent("plugin"),
		loaders: map[string]Loader{
			".so":  NativeLoader{},
			".dll": NativeLoader{},
			".lua": LuaLoader{},
		},
		loaded:  make(map[string]*Entry),
		enabled: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Init performs autoloading when a directory is configured. Enabling is a
// separate operation, left to the caller.
func (m *Manager) Init() error {
	if m.autoloadDir == "" {
		m.logger.Warn("no plugin directory configured; plugins will not be auto-loaded")
		return nil
	}
	return m.LoadAll(m.autoloadDir)
}

// LoadAll loads every plugin bundle in the directory. File names are
// matched case-sensitively on the known extensions. Individual load
// failures are logged and skipped.
func (m *Manager) LoadAll(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("list plugin directory: %w", err)
	}
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		name := ent.Name()
		if !strings.HasSuffix(name, ".so") && !strings.HasSuffix(name, ".dll") &&
			!strings.HasSuffix(name, ".lua") {
			continue
		}
		if _, err := m.Load(filepath.Join(dir, name)); err != nil {
			m.logger.Error("failed to load plugin", "path", name, "error", err)
		}
	}
	return nil
}

// Load opens a bundle, retrieves its info record exactly once, and records
// the entry in the loaded set. The returned id is the plugin's name.
func (m *Manager) Load(path string) (string, error) {
	m.logger.Info("loading plugin bundle", "path", path)

	loader, ok := m.loaders[filepath.Ext(path)]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownExtension, filepath.Ext(path))
	}

	bundle, err := loader.Open(path)
	if err != nil {
		return "", fmt.Errorf("open bundle: %w", err)
	}

	info, err := safeInfo(bundle)
	if err != nil {
		_ = bundle.Close()
		m.logger.Error("plugin info getter failed", "path", path, "error", err)
		return "", err
	}
	if info == nil || info.Name == "" {
		_ = bundle.Close()
		m.logger.Error("plugin info getter returned nothing usable", "path", path)
		return "", ErrBadInfo
	}

	id := info.Name
	m.mu.Lock()
	if _, exists := m.loaded[id]; exists {
		m.mu.Unlock()
		_ = bundle.Close()
		m.logger.Warn("plugin id is already loaded", "plugin", id)
		return "", fmt.Errorf("%w: %s", ErrAlreadyLoaded, id)
	}
	entry := &Entry{info: info, id: id, bundle: bundle, path: path}
	if sum, err := Checksum(path); err == nil {
		entry.checksum = sum
	}
	m.loaded[id] = entry
	m.mu.Unlock()

	if m.hub != nil {
		m.hub.Publish("plugin.loaded", map[string]any{"plugin": id, "version": info.Version})
	}
	m.logger.Info("loaded plugin", "plugin", id, "version", info.Version, "checksum", entry.checksum)
	return id, nil
}

// safeInfo retrieves the bundle's info record, containing panics from the
// getter.
func safeInfo(b Bundle) (info *Info, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = nil
			err = fmt.Errorf("%w: info getter panicked: %v", ErrBadInfo, r)
		}
	}()
	return b.Info()
}

// Unload disables the plugin if needed, closes its bundle, and erases it
// from the loaded set. On close failure the entry stays loaded. Unknown
// ids are a warn-and-return.
func (m *Manager) Unload(id string) error {
	m.logger.Info("unloading plugin", "plugin", id)
	entry := m.entryFor(id)
	if entry == nil {
		m.logger.Warn("no plugin with id; not unloading", "plugin", id)
		return nil
	}
	if m.IsEnabled(id) {
		if err := m.Disable(id); err != nil {
			m.logger.Error("disable during unload failed", "plugin", id, "error", err)
		}
		// Disable may already have unloaded a misbehaving plugin.
		if !m.IsLoaded(id) {
			return nil
		}
	}
	if err := entry.bundle.Close(); err != nil {
		m.logger.Error("could not close plugin bundle", "plugin", id, "error", err)
		return fmt.Errorf("close bundle %s: %w", id, err)
	}
	m.mu.Lock()
	delete(m.loaded, id)
	m.mu.Unlock()
	if m.hub != nil {
		m.hub.Publish("plugin.unloaded", map[string]any{"plugin": id})
	}
	m.logger.Info("successfully unloaded plugin", "plugin", id)
	return nil
}

// Enable runs the plugin's init, adds it to the enabled set, then runs its
// device, agent-prop, and command contributions. A panicking entry point
// unloads the plugin; an error return aborts the remaining calls.
func (m *Manager) Enable(id string) error {
	m.logger.Info("enabling plugin", "plugin", id)
	entry := m.entryFor(id)
	if entry == nil {
		return fmt.Errorf("%w: %s", ErrNotLoaded, id)
	}
	if m.IsEnabled(id) {
		return fmt.Errorf("%w: %s", ErrAlreadyEnabled, id)
	}

	entry.env = nil
	funcs := entry.info.Functions
	if funcs.Init != nil {
		env, err := m.callInit(entry)
		if err != nil {
			return err
		}
		entry.env = env
	} else {
		m.logger.Warn("plugin does not define init; skipping", "plugin", id)
	}

	m.mu.Lock()
	m.enabled[id] = entry
	m.mu.Unlock()
	if m.hub != nil {
		m.hub.Publish("plugin.enabled", map[string]any{"plugin": id})
	}

	if !m.callFunc(entry, "add_input_devices", funcs.AddInputDevices) {
		return nil
	}
	if !m.callFunc(entry, "add_output_devices", funcs.AddOutputDevices) {
		return nil
	}
	if !m.callFunc(entry, "add_agent_props", funcs.AddAgentProps) {
		return nil
	}
	m.callAddCommands(entry)
	return nil
}

// callInit invokes init. Panics unload the plugin; error returns leave it
// loaded but disabled.
func (m *Manager) callInit(entry *Entry) (env any, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("plugin init panicked; plugin will be unloaded", "plugin", entry.id, "panic", r)
			_ = m.Unload(entry.id)
			env = nil
			err = fmt.Errorf("plugin %s init panicked: %v", entry.id, r)
		}
	}()
	env, err = entry.info.Functions.Init(m.host)
	if err != nil {
		m.logger.Error("plugin init failed", "plugin", entry.id, "error", err)
		return nil, fmt.Errorf("plugin %s init: %w", entry.id, err)
	}
	return env, nil
}

// callFunc invokes one optional entry point. Reports whether enabling
// should continue: a panic unloads the plugin, an error aborts the
// remaining calls, and an unset slot is skipped with a warning.
func (m *Manager) callFunc(entry *Entry, name string, fn func(Host, any) error) (cont bool) {
	if fn == nil {
		m.logger.Warn("plugin does not define entry point; skipping", "plugin", entry.id, "func", name)
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("plugin entry point panicked; plugin will be unloaded",
				"plugin", entry.id, "func", name, "panic", r)
			_ = m.Unload(entry.id)
			cont = false
		}
	}()
	if err := fn(m.host, entry.env); err != nil {
		m.logger.Error("plugin entry point failed", "plugin", entry.id, "func", name, "error", err)
		return false
	}
	return true
}

// callAddCommands retrieves and registers the plugin's commands, tracking
// their names for withdrawal at disable time.
func (m *Manager) callAddCommands(entry *Entry) {
	funcs := entry.info.Functions
	if funcs.AddCommands == nil {
		m.logger.Warn("plugin does not define add_commands; skipping", "plugin", entry.id)
		return
	}
	commands, err := m.safeAddCommands(entry)
	if err != nil {
		return
	}
	registry := m.host.Commands()
	for _, c := range commands {
		if err := registry.Register(c); err != nil {
			m.logger.Warn("could not register plugin command", "plugin", entry.id, "command", c.Name, "error", err)
			continue
		}
		entry.commands = append(entry.commands, c.Name)
	}
}

func (m *Manager) safeAddCommands(entry *Entry) (commands []*cmd.Command, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("plugin add_commands panicked; plugin will be unloaded", "plugin", entry.id, "panic", r)
			_ = m.Unload(entry.id)
			commands = nil
			err = fmt.Errorf("plugin %s add_commands panicked: %v", entry.id, r)
		}
	}()
	cs, err := entry.info.Functions.AddCommands(m.host, entry.env)
	if err != nil {
		m.logger.Error("plugin add_commands failed", "plugin", entry.id, "error", err)
		return nil, err
	}
	return cs, nil
}

// Disable removes the plugin from the enabled set, withdraws its
// commands, then runs its quit. A quit panic or error unloads the plugin.
// Disabling a not-enabled plugin is a no-op.
func (m *Manager) Disable(id string) error {
	m.logger.Info("disabling plugin", "plugin", id)
	m.mu.Lock()
	entry, ok := m.enabled[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.enabled, id)
	m.mu.Unlock()

	registry := m.host.Commands()
	for _, name := range entry.commands {
		registry.Unregister(name)
	}
	entry.commands = nil

	if m.hub != nil {
		m.hub.Publish("plugin.disabled", map[string]any{"plugin": id})
	}

	if entry.info.Functions.Quit == nil {
		m.logger.Warn("plugin does not define quit; skipping", "plugin", id)
		return nil
	}
	return m.callQuit(entry)
}

func (m *Manager) callQuit(entry *Entry) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("plugin quit panicked; plugin will be unloaded", "plugin", entry.id, "panic", r)
			_ = m.Unload(entry.id)
			err = fmt.Errorf("plugin %s quit panicked: %v", entry.id, r)
		}
	}()
	if qerr := entry.info.Functions.Quit(m.host, entry.env); qerr != nil {
		m.logger.Error("plugin quit failed; plugin will be unloaded", "plugin", entry.id, "error", qerr)
		_ = m.Unload(entry.id)
		return fmt.Errorf("plugin %s quit: %w", entry.id, qerr)
	}
	return nil
}

// IsLoaded reports whether the id is in the loaded set.
func (m *Manager) IsLoaded(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.loaded[id]
	return ok
}

// IsEnabled reports whether the id is in the enabled set.
func (m *Manager) IsEnabled(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.enabled[id]
	return ok
}

// Loaded returns all loaded plugin ids, sorted.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.loaded))
	for id := range m.loaded {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Describe returns the queryable view of every loaded plugin, sorted by id.
func (m *Manager) Describe() []Description {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Description, 0, len(m.loaded))
	for id, entry := range m.loaded {
		_, enabled := m.enabled[id]
		out = append(out, Description{
			ID:       id,
			Version:  entry.info.Version,
			Path:     entry.path,
			Checksum: entry.checksum,
			Enabled:  enabled,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Shutdown disables every enabled plugin and closes every bundle.
func (m *Manager) Shutdown() {
	for _, id := range m.enabledIDs() {
		if err := m.Disable(id); err != nil {
			m.logger.Error("disable at shutdown failed", "plugin", id, "error", err)
		}
	}
	for _, id := range m.Loaded() {
		if err := m.Unload(id); err != nil {
			m.logger.Error("unload at shutdown failed", "plugin", id, "error", err)
		}
	}
}

func (m *Manager) enabledIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.enabled))
	for id := range m.enabled {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (m *Manager) entryFor(id string) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded[id]
}
