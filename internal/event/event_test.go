package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopicStringRoundTrip(t *testing.T) {
	for topic, name := range topicNames {
		if topic == TopicInvalid {
			continue
		}
		parsed, err := ParseTopic(name)
		require.NoError(t, err)
		assert.Equal(t, topic, parsed)
		assert.Equal(t, name, topic.String())
	}
}

func TestParseTopicUnknown(t *testing.T) {
	_, err := ParseTopic("NOT_A_TOPIC")
	assert.Error(t, err)
}

func TestTopicStringUnknownValue(t *testing.T) {
	assert.Equal(t, "INVALID", Topic(999).String())
}

func TestDefaultPriorities(t *testing.T) {
	assert.Equal(t, uint8(9), TopicAgentAlarm.DefaultPriority())
	assert.Equal(t, uint8(1), TopicAgentIdle.DefaultPriority())
	assert.Greater(t, TopicAgentAlarm.DefaultPriority(), TopicTextInput.DefaultPriority())
}

func TestNewEventDefaultsArgs(t *testing.T) {
	e := NewEvent(TopicTextInput, 5, nil)
	require.NotNil(t, e.Args)
	assert.True(t, e.Args.Equal(EmptyArgs{}))
	assert.NotEqual(t, e.ID.String(), NewEvent(TopicTextInput, 5, nil).ID.String())
}

func TestTextArgs(t *testing.T) {
	a := NewTextArgs("hello")
	assert.Equal(t, "hello", a.String())
	assert.True(t, a.Equal(a.Copy()))
	assert.False(t, a.Equal(NewTextArgs("other")))
	assert.False(t, a.Equal(EmptyArgs{}))
}

func TestMapArgsCopyIsDeep(t *testing.T) {
	a := MapArgs{"nested": map[string]any{"k": "v"}, "list": []any{1, 2}}
	b := a.Copy().(MapArgs)
	require.True(t, a.Equal(b))

	b["nested"].(map[string]any)["k"] = "changed"
	b["list"].([]any)[0] = 99

	assert.Equal(t, "v", a["nested"].(map[string]any)["k"])
	assert.Equal(t, 1, a["list"].([]any)[0])
	assert.False(t, a.Equal(b))
}

func TestEmptyArgs(t *testing.T) {
	var a Args = EmptyArgs{}
	assert.Equal(t, "", a.String())
	assert.True(t, a.Equal(a.Copy()))
	assert.False(t, a.Equal(NewTextArgs("x")))
	a.Dispose()
}
