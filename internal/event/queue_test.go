package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pushWithSeq(q *eventQueue, e *Event, seq uint64) {
	e.seq = seq
	q.push(e)
}

func TestQueueOrdersByPriorityDescending(t *testing.T) {
	q := &eventQueue{}
	pushWithSeq(q, NewEvent(TopicTextInput, 1, nil), 0)
	pushWithSeq(q, NewEvent(TopicTextInput, 9, nil), 1)
	pushWithSeq(q, NewEvent(TopicTextInput, 5, nil), 2)

	assert.Equal(t, uint8(9), q.pop().Priority)
	assert.Equal(t, uint8(5), q.pop().Priority)
	assert.Equal(t, uint8(1), q.pop().Priority)
}

func TestQueueTiesAreFIFO(t *testing.T) {
	q := &eventQueue{}
	first := NewEvent(TopicTextInput, 5, NewTextArgs("first"))
	second := NewEvent(TopicTextInput, 5, NewTextArgs("second"))
	third := NewEvent(TopicTextInput, 5, NewTextArgs("third"))
	pushWithSeq(q, first, 0)
	pushWithSeq(q, second, 1)
	pushWithSeq(q, third, 2)

	assert.Same(t, first, q.pop())
	assert.Same(t, second, q.pop())
	assert.Same(t, third, q.pop())
}

func TestQueuePeekBorrows(t *testing.T) {
	q := &eventQueue{}
	assert.Nil(t, q.peek())

	e := NewEvent(TopicTextInput, 3, nil)
	pushWithSeq(q, e, 0)
	require.Same(t, e, q.peek())
	assert.Equal(t, 1, q.Len())

	assert.Same(t, e, q.pop())
	assert.Equal(t, 0, q.Len())
}

func TestQueueMixedPrioritiesStaySorted(t *testing.T) {
	q := &eventQueue{}
	priorities := []uint8{3, 7, 1, 7, 9, 0, 3}
	for i, p := range priorities {
		pushWithSeq(q, NewEvent(TopicTextInput, p, nil), uint64(i))
	}

	var got []uint8
	for q.Len() > 0 {
		got = append(got, q.pop().Priority)
	}
	assert.Equal(t, []uint8{9, 7, 7, 3, 3, 1, 0}, got)
}
