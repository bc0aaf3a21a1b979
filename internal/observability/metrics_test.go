package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewMetricsRecorder(t *testing.T) {
	m := NewMetricsRecorder()
	assert.NotNil(t, m)

	// Recording against the default (no-op SDK) meter must not panic.
	ctx := context.Background()
	m.RecordDispatch(ctx, "TEXT_INPUT", 5, 12*time.Millisecond)
	m.RecordPreemption(ctx)
	m.RecordDiscard(ctx, "TEXT_OUTPUT")
	m.RecordTimerFired(ctx, true)
}

func TestNoopMetrics(t *testing.T) {
	var m MetricsRecorder = NoopMetrics{}
	ctx := context.Background()
	m.RecordDispatch(ctx, "t", 0, 0)
	m.RecordPreemption(ctx)
	m.RecordDiscard(ctx, "t")
	m.RecordTimerFired(ctx, false)
}
