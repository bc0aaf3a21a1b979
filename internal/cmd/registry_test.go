package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterLookupUnregister(t *testing.T) {
	r := NewRegistry()
	c := &Command{Name: "TIMER", Handler: func(ParamList) error { return nil }}
	require.NoError(t, r.Register(c))

	got, ok := r.Lookup("TIMER")
	require.True(t, ok)
	assert.Same(t, c, got)

	r.Unregister("TIMER")
	_, ok = r.Lookup("TIMER")
	assert.False(t, ok)
}

func TestRegisterDuplicateFails(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "TIMER"}))
	assert.Error(t, r.Register(&Command{Name: "TIMER"}))
}

func TestRegisterEmptyNameFails(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.Register(&Command{}))
	assert.Error(t, r.Register(nil))
}

func TestUnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unregister("NOPE")
	assert.Empty(t, r.Names())
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&Command{Name: "DELTIMER"}))
	require.NoError(t, r.Register(&Command{Name: "TIMER"}))
	assert.Equal(t, []string{"DELTIMER", "TIMER"}, r.Names())
}

func TestParseParams(t *testing.T) {
	p := ParseParams([]string{"-r", "500", "echo", "hello"})
	assert.True(t, p.HasOption('r'))
	assert.False(t, p.HasOption('x'))
	assert.Equal(t, 3, p.ArgCount())
	assert.Equal(t, "500", p.Arg(0))
	assert.Equal(t, "hello", p.Arg(2))
	assert.Equal(t, "", p.Arg(9))
}
