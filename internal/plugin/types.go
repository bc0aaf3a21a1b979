// Package plugin implements discovery, load, enable, disable, and unload
// of external code bundles that extend commands, devices, and agent
// properties.
package plugin

import (
	"errors"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/agent"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/cmd"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/device"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
)

var (
	// ErrNotLoaded is returned when an operation names an unloaded plugin.
	ErrNotLoaded = errors.New("plugin not loaded")

	// ErrAlreadyLoaded is returned when a plugin id is already loaded.
	ErrAlreadyLoaded = errors.New("plugin id already loaded")

	// ErrAlreadyEnabled is returned when enabling an enabled plugin.
	ErrAlreadyEnabled = errors.New("plugin already enabled")

	// ErrUnknownExtension is returned when no loader handles a path.
	ErrUnknownExtension = errors.New("no loader for file extension")

	// ErrBadInfo is returned when a bundle's info getter fails or
	// produces nothing usable.
	ErrBadInfo = errors.New("plugin info unavailable")
)

// Host is the runtime surface plugins may touch.
type Host interface {
	event.Runtime
	Commands() *cmd.Registry
	InputDevices() *device.Registry[device.InputDevice]
	OutputDevices() *device.Registry[device.OutputDevice]
	Agent() *agent.Agent
}

// FunctionTable is a plugin's optional entry points. Unset entries are
// skipped with a warning.
type FunctionTable struct {
	// Init runs at enable time and produces the plugin's local
	// environment. The core never reads or mutates the environment.
	Init func(h Host) (env any, err error)

	// Quit runs at disable time.
	Quit func(h Host, env any) error

	AddInputDevices  func(h Host, env any) error
	AddOutputDevices func(h Host, env any) error
	AddAgentProps    func(h Host, env any) error

	// AddCommands returns command descriptors to register.
	AddCommands func(h Host, env any) ([]*cmd.Command, error)
}

// Info is a plugin's immutable info record.
type Info struct {
	Name      string
	Version   string
	Functions FunctionTable
}

// Bundle is an opened plugin library.
type Bundle interface {
	// Info retrieves the plugin's info record. The manager invokes it
	// exactly once per load.
	Info() (*Info, error)
	Close() error
}

// Loader opens plugin bundles from the filesystem. Dynamic-library
// primitives stay behind this interface.
type Loader interface {
	Open(path string) (Bundle, error)
}
