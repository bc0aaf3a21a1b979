// Package cmd implements the named-command registry. The event module and
// plugins contribute commands here; input devices resolve and invoke them.
package cmd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Handler executes a command invocation. Commands close over whatever
// runtime state they need; the registry imposes no signature beyond the
// parsed parameter list.
type Handler func(params ParamList) error

// Command is a named command with option flags and a handler.
type Command struct {
	Name        string
	Description string
	Usage       string
	// Options is the set of single-rune option flags the command accepts,
	// e.g. "r" for a recurring flag.
	Options string
	Handler Handler
}

// ParamList is a parsed command invocation: positional arguments plus the
// single-rune options that were set.
type ParamList struct {
	Args    []string
	Options map[rune]bool
}

// ParseParams splits raw tokens into options (tokens beginning with '-')
// and positional arguments.
func ParseParams(tokens []string) ParamList {
	p := ParamList{Options: make(map[rune]bool)}
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "-") && len(tok) > 1 {
			for _, r := range tok[1:] {
				p.Options[r] = true
			}
			continue
		}
		p.Args = append(p.Args, tok)
	}
	return p
}

// ArgCount returns the number of positional arguments.
func (p ParamList) ArgCount() int { return len(p.Args) }

// Arg returns the i-th positional argument, or "" when out of range.
func (p ParamList) Arg(i int) string {
	if i < 0 || i >= len(p.Args) {
		return ""
	}
	return p.Args[i]
}

// HasOption reports whether the single-rune option was set.
func (p ParamList) HasOption(r rune) bool { return p.Options[r] }

// Registry holds registered commands indexed by name.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]*Command
}

// NewRegistry creates an empty command registry.
func NewRegistry() *Registry {
	return &Registry{commands: make(map[string]*Command)}
}

// Register adds a command. Registering a name that already exists is an
// error; the existing command stays.
func (r *Registry) Register(c *Command) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("command name is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.commands[c.Name]; exists {
		return fmt.Errorf("command %q already registered", c.Name)
	}
	r.commands[c.Name] = c
	return nil
}

// Unregister removes a command by name. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.commands, name)
}

// Lookup returns the command with the given name.
func (r *Registry) Lookup(name string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.commands[name]
	return c, ok
}

// Names returns all registered command names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.commands))
	for name := range r.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
