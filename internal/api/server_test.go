package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AOE-khkhan/moe-serifu-agent/internal/event"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/log"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/notify"
	"github.com/AOE-khkhan/moe-serifu-agent/internal/plugin"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR") // Suppress logs in tests
	os.Exit(m.Run())
}

type fakeRuntime struct {
	status    string
	timers    []int16
	generated []generatedEvent
}

type generatedEvent struct {
	topic    event.Topic
	priority *uint8
	args     event.Args
}

func (f *fakeRuntime) StatusString() string { return f.status }

func (f *fakeRuntime) Uptime() time.Duration { return 90 * time.Second }

func (f *fakeRuntime) Timers() []int16 { return f.timers }

func (f *fakeRuntime) Generate(t event.Topic, args event.Args) {
	f.generated = append(f.generated, generatedEvent{topic: t, args: args})
}

func (f *fakeRuntime) GenerateWithPriority(t event.Topic, priority uint8, args event.Args) {
	f.generated = append(f.generated, generatedEvent{topic: t, priority: &priority, args: args})
}

type fakePlugins struct {
	descs []plugin.Description
}

func (f *fakePlugins) Describe() []plugin.Description { return f.descs }

func newTestServer(rt *fakeRuntime, plugins PluginRegistry, hub *notify.Hub) *httptest.Server {
	s := New(Config{}, rt, plugins, hub, nil)
	return httptest.NewServer(s.Routes())
}

func TestStatusEndpoint(t *testing.T) {
	rt := &fakeRuntime{status: "RUNNING", timers: []int16{0, 3}}
	ts := newTestServer(rt, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got statusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "RUNNING", got.Status)
	assert.Equal(t, int64(90), got.UptimeSeconds)
	assert.Equal(t, 2, got.TimerCount)
}

func TestTimersEndpoint(t *testing.T) {
	rt := &fakeRuntime{timers: []int16{5}}
	ts := newTestServer(rt, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/timers")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got timersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, []int16{5}, got.Timers)
}

func TestPluginsEndpoint(t *testing.T) {
	rt := &fakeRuntime{}
	plugins := &fakePlugins{descs: []plugin.Description{
		{ID: "echo", Version: "1.0.0", Enabled: true},
	}}
	ts := newTestServer(rt, plugins, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/plugins")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got []plugin.Description
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "echo", got[0].ID)
	assert.True(t, got[0].Enabled)
}

func TestPluginsEndpointWithoutManager(t *testing.T) {
	ts := newTestServer(&fakeRuntime{}, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/plugins")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestNotificationsEndpoint(t *testing.T) {
	hub := notify.NewHub(8)
	hub.Publish("timer.fired", map[string]any{"id": 1})
	hub.Publish("event.dispatched", nil)

	ts := newTestServer(&fakeRuntime{}, nil, hub)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/notifications?since=1")
	require.NoError(t, err)
	defer resp.Body.Close()

	var got []notify.Notification
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got, 1)
	assert.Equal(t, "event.dispatched", got[0].Kind)
}

func TestNotificationsBadSince(t *testing.T) {
	ts := newTestServer(&fakeRuntime{}, nil, notify.NewHub(8))
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/notifications?since=soon")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInjectEvent(t *testing.T) {
	rt := &fakeRuntime{}
	ts := newTestServer(rt, nil, nil)
	defer ts.Close()

	body := bytes.NewBufferString(`{"topic": "TEXT_INPUT", "text": "hello"}`)
	resp, err := http.Post(ts.URL+"/v1/events", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, rt.generated, 1)
	assert.Equal(t, event.TopicTextInput, rt.generated[0].topic)
	assert.Nil(t, rt.generated[0].priority)
	assert.True(t, rt.generated[0].args.Equal(event.NewTextArgs("hello")))
}

func TestInjectEventWithPriority(t *testing.T) {
	rt := &fakeRuntime{}
	ts := newTestServer(rt, nil, nil)
	defer ts.Close()

	body := bytes.NewBufferString(`{"topic": "AGENT_ALARM", "priority": 9}`)
	resp, err := http.Post(ts.URL+"/v1/events", "application/json", body)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, rt.generated, 1)
	require.NotNil(t, rt.generated[0].priority)
	assert.Equal(t, uint8(9), *rt.generated[0].priority)
}

func TestInjectEventBadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{`},
		{"unknown topic", `{"topic": "NOT_A_TOPIC"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rt := &fakeRuntime{}
			ts := newTestServer(rt, nil, nil)
			defer ts.Close()

			resp, err := http.Post(ts.URL+"/v1/events", "application/json", bytes.NewBufferString(tt.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Empty(t, rt.generated)
		})
	}
}

func TestJournalEndpointWithoutJournal(t *testing.T) {
	ts := newTestServer(&fakeRuntime{}, nil, nil)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/journal")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
