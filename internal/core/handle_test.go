package core

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/config"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/journal"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/plugin"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

func fastConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Event.IdleSleepTime = 1
	cfg.Event.TickResolution = 1
	return cfg
}

func initRuntime(t *testing.T, cfg *config.Config) *Handle {
	t.Helper()
	h, err := Init(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.Quit()
		_ = h.Dispose()
	})
	return h
}

func TestHandleSatisfiesContracts(t *testing.T) {
	var _ event.Runtime = (*Handle)(nil)
	var _ plugin.Host = (*Handle)(nil)
}

func TestInitReachesRunning(t *testing.T) {
	h := initRuntime(t, fastConfig())
	assert.Equal(t, StatusRunning, h.Status())
	assert.Equal(t, "RUNNING", h.StatusString())
}

func TestBuiltinCommandsRegisteredAtInit(t *testing.T) {
	h := initRuntime(t, fastConfig())
	_, ok := h.Commands().Lookup("TIMER")
	assert.True(t, ok)
	_, ok = h.Commands().Lookup("DELTIMER")
	assert.True(t, ok)

	require.NoError(t, h.Quit())
	_, ok = h.Commands().Lookup("TIMER")
	assert.False(t, ok, "teardown must withdraw built-in commands")
}

func TestGenerateReachesSubscriber(t *testing.T) {
	h := initRuntime(t, fastConfig())

	var calls atomic.Int32
	h.Subscribe(event.TopicTextInput, func(_ event.Runtime, _ *event.Event, _ *event.HandlerSync) {
		calls.Add(1)
	})
	h.Generate(event.TopicTextInput, event.NewTextArgs("hi"))

	assert.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)
}

func TestQuitIsIdempotent(t *testing.T) {
	h := initRuntime(t, fastConfig())
	require.NoError(t, h.Quit())
	assert.Equal(t, StatusStopped, h.Status())
	require.NoError(t, h.Quit())
	assert.Equal(t, StatusStopped, h.Status())
}

func TestDisposeBeforeQuitFails(t *testing.T) {
	h := initRuntime(t, fastConfig())
	err := h.Dispose()
	assert.ErrorIs(t, err, ErrEventNotStopped)
	assert.Equal(t, 1, DisposeExitCode(err))

	require.NoError(t, h.Quit())
	assert.NoError(t, h.Dispose())
	assert.Equal(t, 0, DisposeExitCode(nil))
}

func TestQuitFromInsideHandlerReachesStopped(t *testing.T) {
	h := initRuntime(t, fastConfig())

	handlerReturned := make(chan struct{})
	h.Subscribe(event.TopicTextInput, func(rt event.Runtime, _ *event.Event, _ *event.HandlerSync) {
		require.NoError(t, rt.Quit())
		close(handlerReturned)
	})
	h.Generate(event.TopicTextInput, nil)

	select {
	case <-handlerReturned:
	case <-time.After(5 * time.Second):
		t.Fatal("quit from inside handler hung")
	}
	assert.Eventually(t, func() bool { return h.Status() == StatusStopped },
		time.Second, time.Millisecond)
	assert.NoError(t, h.Dispose())
}

func TestRuntimeOpsAfterQuit(t *testing.T) {
	h := initRuntime(t, fastConfig())
	require.NoError(t, h.Quit())

	h.Generate(event.TopicTextInput, nil) // no-op
	_, err := h.Delay(time.Second, event.TopicTextInput, nil)
	assert.ErrorIs(t, err, ErrStopped)
	_, err = h.AddTimer(time.Second, event.TopicTextInput, nil)
	assert.ErrorIs(t, err, ErrStopped)
	assert.ErrorIs(t, h.RemoveTimer(0), ErrStopped)
	assert.Nil(t, h.Timers())
}

func TestJournalRecordsDispatches(t *testing.T) {
	cfg := fastConfig()
	cfg.Journal.Path = filepath.Join(t.TempDir(), "journal.db")
	h := initRuntime(t, cfg)

	require.NotNil(t, h.Journal())

	var calls atomic.Int32
	h.Subscribe(event.TopicTextInput, func(_ event.Runtime, _ *event.Event, _ *event.HandlerSync) {
		calls.Add(1)
	})
	h.Generate(event.TopicTextInput, event.NewTextArgs("note"))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	assert.Eventually(t, func() bool {
		recs, err := h.Journal().RecentEvents(context.Background(), 10)
		return err == nil && len(recs) >= 1
	}, time.Second, 5*time.Millisecond)

	recs, err := h.Journal().RecentEvents(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, journal.StatusDispatched, recs[0].Status)
	assert.Equal(t, "TEXT_INPUT", recs[0].Topic)
}

func TestPluginAutoloadAtInit(t *testing.T) {
	dir := t.TempDir()
	bundle := `
return {
  name = "hello",
  version = "1.0.0",
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.lua"), []byte(bundle), 0o644))

	cfg := fastConfig()
	cfg.Plugins.Dir = dir
	h := initRuntime(t, cfg)

	require.NotNil(t, h.Plugins())
	assert.Equal(t, []string{"hello"}, h.Plugins().Loaded())
	assert.False(t, h.Plugins().IsEnabled("hello"))
}

func TestTimerLifecycleThroughHandle(t *testing.T) {
	h := initRuntime(t, fastConfig())

	id, err := h.Delay(time.Hour, event.TopicTextOutput, nil)
	require.NoError(t, err)
	assert.Contains(t, h.Timers(), id)

	require.NoError(t, h.RemoveTimer(id))
	assert.NotContains(t, h.Timers(), id)

	past, err := h.Schedule(time.Now().Add(-time.Second), event.TopicTextOutput, nil)
	assert.Equal(t, int16(-1), past)
	assert.ErrorIs(t, err, event.ErrScheduleInPast)
}
