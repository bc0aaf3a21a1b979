package event

import (
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Topic identifies a class of event. The set is closed; new topics are a
// source change, not a runtime registration.
type Topic int

const (
	TopicInvalid Topic = iota
	TopicTextInput
	TopicTextOutput
	TopicAgentIdle
	TopicAgentActive
	TopicAgentAlarm
	TopicPluginEnabled
	TopicPluginDisabled
)

var topicNames = map[Topic]string{
	TopicInvalid:        "INVALID",
	TopicTextInput:      "TEXT_INPUT",
	TopicTextOutput:     "TEXT_OUTPUT",
	TopicAgentIdle:      "AGENT_IDLE",
	TopicAgentActive:    "AGENT_ACTIVE",
	TopicAgentAlarm:     "AGENT_ALARM",
	TopicPluginEnabled:  "PLUGIN_ENABLED",
	TopicPluginDisabled: "PLUGIN_DISABLED",
}

var topicValues = map[string]Topic{
	"TEXT_INPUT":      TopicTextInput,
	"TEXT_OUTPUT":     TopicTextOutput,
	"AGENT_IDLE":      TopicAgentIdle,
	"AGENT_ACTIVE":    TopicAgentActive,
	"AGENT_ALARM":     TopicAgentAlarm,
	"PLUGIN_ENABLED":  TopicPluginEnabled,
	"PLUGIN_DISABLED": TopicPluginDisabled,
}

// topicPriorities assigns each topic its default event priority.
// Higher is more urgent.
var topicPriorities = map[Topic]uint8{
	TopicTextInput:      5,
	TopicTextOutput:     5,
	TopicAgentIdle:      1,
	TopicAgentActive:    3,
	TopicAgentAlarm:     9,
	TopicPluginEnabled:  2,
	TopicPluginDisabled: 2,
}

func (t Topic) String() string {
	if name, ok := topicNames[t]; ok {
		return name
	}
	return "INVALID"
}

// ParseTopic resolves a topic name.
func ParseTopic(name string) (Topic, error) {
	if t, ok := topicValues[name]; ok {
		return t, nil
	}
	return TopicInvalid, fmt.Errorf("unknown topic %q", name)
}

// DefaultPriority returns the default priority for events on this topic.
func (t Topic) DefaultPriority() uint8 {
	return topicPriorities[t]
}

// Args is an event's argument bundle. Bundles are owned by whoever holds
// them; Copy produces an independently-owned deep copy.
type Args interface {
	Copy() Args
	Equal(other Args) bool
	String() string
	Dispose()
}

// EmptyArgs is the empty argument bundle.
type EmptyArgs struct{}

func (EmptyArgs) Copy() Args            { return EmptyArgs{} }
func (EmptyArgs) Equal(other Args) bool { _, ok := other.(EmptyArgs); return ok }
func (EmptyArgs) String() string        { return "" }
func (EmptyArgs) Dispose()              {}

// TextArgs carries a single text payload.
type TextArgs struct {
	Text string
}

// NewTextArgs wraps text as an argument bundle.
func NewTextArgs(text string) TextArgs { return TextArgs{Text: text} }

func (a TextArgs) Copy() Args { return a }
func (a TextArgs) Equal(other Args) bool {
	o, ok := other.(TextArgs)
	return ok && o.Text == a.Text
}
func (a TextArgs) String() string { return a.Text }
func (a TextArgs) Dispose()       {}

// MapArgs carries a keyed payload of JSON-shaped values.
type MapArgs map[string]any

func (a MapArgs) Copy() Args { return copyMapArgs(a) }

func copyMapArgs(m map[string]any) MapArgs {
	out := make(MapArgs, len(m))
	for k, v := range m {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		return map[string]any(copyMapArgs(vv))
	case []any:
		cp := make([]any, len(vv))
		for i, e := range vv {
			cp[i] = copyValue(e)
		}
		return cp
	default:
		return v
	}
}

func (a MapArgs) Equal(other Args) bool {
	o, ok := other.(MapArgs)
	return ok && reflect.DeepEqual(map[string]any(a), map[string]any(o))
}

func (a MapArgs) String() string { return fmt.Sprintf("%v", map[string]any(a)) }
func (a MapArgs) Dispose()       {}

// Event is an immutable occurrence record. From the moment it enters the
// queue it is owned by the dispatcher, until its handler context releases
// it or it is discarded for lack of a subscriber.
type Event struct {
	ID       uuid.UUID
	Topic    Topic
	Priority uint8
	Args     Args
	At       time.Time

	seq uint64 // queue insertion order, assigned under the queue lock
}

// NewEvent creates an event with an explicit priority.
func NewEvent(t Topic, priority uint8, args Args) *Event {
	if args == nil {
		args = EmptyArgs{}
	}
	return &Event{
		ID:       uuid.New(),
		Topic:    t,
		Priority: priority,
		Args:     args,
		At:       time.Now().UTC(),
	}
}

// Dispose releases the event's argument bundle.
func (e *Event) Dispose() {
	if e.Args != nil {
		e.Args.Dispose()
	}
}
