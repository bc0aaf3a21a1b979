package plugin

import (
	"fmt"
	goplugin "plugin"
)

// InfoSymbol is the well-known symbol every native plugin exposes: a
// function returning the plugin's immutable info record.
const InfoSymbol = "PluginInfo"

// NativeLoader opens Go plugin shared objects.
type NativeLoader struct{}

func (NativeLoader) Open(path string) (Bundle, error) {
	p, err := goplugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open plugin library: %w", err)
	}
	return &nativeBundle{p: p}, nil
}

type nativeBundle struct {
	p *goplugin.Plugin
}

func (b *nativeBundle) Info() (*Info, error) {
	sym, err := b.p.Lookup(InfoSymbol)
	if err != nil {
		return nil, fmt.Errorf("%w: symbol %s missing: %v", ErrBadInfo, InfoSymbol, err)
	}
	getter, ok := sym.(func() *Info)
	if !ok {
		return nil, fmt.Errorf("%w: symbol %s has type %T, want func() *Info", ErrBadInfo, InfoSymbol, sym)
	}
	return getter(), nil
}

// Close is a no-op: the Go runtime keeps loaded plugin objects mapped for
// the life of the process.
func (b *nativeBundle) Close() error {
	return nil
}
