package event

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCheckpointWithoutRequestReturnsImmediately(t *testing.T) {
	s := NewHandlerSync()
	done := make(chan struct{})
	go func() {
		s.Checkpoint()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Checkpoint blocked without a suspend request")
	}
}

func TestSuspendAcknowledgeResume(t *testing.T) {
	s := NewHandlerSync()
	var resumed atomic.Bool

	s.RequestSuspend()
	go func() {
		s.Checkpoint() // acknowledges, blocks until resumed
		resumed.Store(true)
	}()

	assert.True(t, s.AwaitSuspended(time.Second))
	assert.True(t, s.Suspended())
	assert.False(t, resumed.Load())

	s.Resume()
	assert.Eventually(t, resumed.Load, time.Second, time.Millisecond)
	assert.False(t, s.Suspended())
	assert.False(t, s.SuspendRequested())
}

func TestAwaitSuspendedTimesOut(t *testing.T) {
	s := NewHandlerSync()
	s.RequestSuspend()
	start := time.Now()
	assert.False(t, s.AwaitSuspended(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestSyscallOriginBit(t *testing.T) {
	s := NewHandlerSync()
	assert.False(t, s.SyscallOrigin())
	s.MarkSyscallOrigin()
	assert.True(t, s.SyscallOrigin())
}
