// Package agent holds the agent persona: its name, how it addresses the
// user, and the property bag plugins extend. Utterances fan out to every
// attached output device.
package agent

import (
	"fmt"
	"strings"
	"sync"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/device"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
)

// Agent is the runtime persona.
type Agent struct {
	Name string

	mu        sync.RWMutex
	userTitle string
	props     map[string]string

	outputs *device.Registry[device.OutputDevice]
}

// New creates an agent writing to the given output registry.
func New(name string, outputs *device.Registry[device.OutputDevice]) *Agent {
	return &Agent{
		Name:      name,
		userTitle: "Master",
		props:     make(map[string]string),
		outputs:   outputs,
	}
}

// SetUserTitle changes how the agent addresses the user.
func (a *Agent) SetUserTitle(title string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.userTitle = title
}

// SetProp sets an agent property. Plugins add properties through this.
func (a *Agent) SetProp(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.props[key] = value
}

// Prop returns an agent property.
func (a *Agent) Prop(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.props[key]
	return v, ok
}

// Say emits an utterance to every attached output device, expanding
// $USER_TITLE references first. With no devices attached, the utterance
// goes to the log so it is never silently lost.
func (a *Agent) Say(text string) {
	a.mu.RLock()
	expanded := strings.ReplaceAll(text, "$USER_TITLE", a.userTitle)
	a.mu.RUnlock()

	line := fmt.Sprintf("%s: %s", a.Name, expanded)
	delivered := false
	a.outputs.Each(func(d device.OutputDevice) {
		if err := d.WriteLine(line); err != nil {
			log.WithComponent("agent").Warn("output device write failed", "device", d.ID(), "error", err)
			return
		}
		delivered = true
	})
	if !delivered {
		log.WithComponent("agent").Info("say", "text", expanded)
	}
}
