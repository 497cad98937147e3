package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/compiler"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-devcaps/internal/resolver"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

type fakeMQTT struct {
	mu           sync.Mutex
	handlers     map[string]mqtt.MessageHandler
	published    []published
	subscribeErr error
	publishErr   error
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{handlers: make(map[string]mqtt.MessageHandler)}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{topic, payload, qos, retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[topic] = handler
	return nil
}

func (f *fakeMQTT) Unsubscribe(topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, topic)
	return nil
}

// deliver routes a message to the snapshot handler, as the broker would.
func (f *fakeMQTT) deliver(t *testing.T, topic string, payload string) error {
	t.Helper()
	f.mu.Lock()
	handler, ok := f.handlers[mqtt.Topics{}.AllSnapshots()]
	f.mu.Unlock()
	require.True(t, ok, "snapshot handler not subscribed")
	return handler(topic, []byte(payload))
}

func (f *fakeMQTT) last(t *testing.T) (published, ResolutionMessage) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.published)
	p := f.published[len(f.published)-1]
	var msg ResolutionMessage
	require.NoError(t, json.Unmarshal(p.payload, &msg))
	return p, msg
}

func ios(keys ...capability.IOKey) capability.IOMap {
	m := make(capability.IOMap, len(keys))
	for _, k := range keys {
		m[k] = capability.IOAttributeSpec{}
	}
	return m
}

// testResolver serves a static switch and a dynamic panel with a default mode.
func testResolver(t *testing.T) *resolver.Resolver {
	t.Helper()
	sw := &capability.DeviceConfig{
		DeviceType:  "SL_SW_IF3",
		DisplayName: "switch",
		Features:    capability.FeatureSet{Generation: capability.GenerationLegacy},
		Platforms:   capability.PlatformMap{capability.PlatformSwitch: ios("L1", "L2", "L3")},
	}
	panel := &capability.DeviceConfig{
		DeviceType:  "SL_NATURE",
		DisplayName: "panel",
		Features:    capability.FeatureSet{Generation: capability.GenerationLegacy, IsDynamic: true},
		Modes: []capability.ModeEntry{
			{
				Name:      "switch_mode",
				Condition: capability.NewCondition("P5", 1),
				Platforms: capability.PlatformMap{capability.PlatformSwitch: ios("P1", "P2")},
			},
			{
				Name:      "climate_mode",
				Condition: capability.NewCondition("P5", 3, 6),
				Platforms: capability.PlatformMap{capability.PlatformClimate: ios("P4", "P6")},
			},
		},
		DefaultMode: "switch_mode",
	}
	table, err := compiler.NewTable(sw, panel)
	require.NoError(t, err)
	return resolver.New(table)
}

func startedBridge(t *testing.T) (*SnapshotBridge, *fakeMQTT, *resolver.Resolver) {
	t.Helper()
	client := newFakeMQTT()
	r := testResolver(t)
	b, err := NewSnapshotBridge(SnapshotBridgeOptions{MQTT: client, Resolver: r, QoS: 1})
	require.NoError(t, err)
	b.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	require.NoError(t, b.Start())
	return b, client, r
}

func TestNewSnapshotBridge_RequiresDependencies(t *testing.T) {
	_, err := NewSnapshotBridge(SnapshotBridgeOptions{Resolver: testResolver(t)})
	assert.Error(t, err)

	_, err = NewSnapshotBridge(SnapshotBridgeOptions{MQTT: newFakeMQTT()})
	assert.Error(t, err)
}

func TestSnapshotBridge_ModeMatch(t *testing.T) {
	b, client, _ := startedBridge(t)

	err := client.deliver(t, "devcaps/snapshot/SL_NATURE/hall-panel", `{"P5": {"val": 3, "type": 0}}`)
	require.NoError(t, err)

	p, msg := client.last(t)
	assert.Equal(t, "devcaps/resolution/hall-panel", p.topic)
	assert.True(t, p.retained)
	assert.Equal(t, byte(1), p.qos)

	assert.Equal(t, "hall-panel", msg.DeviceID)
	assert.Equal(t, "SL_NATURE", msg.DeviceType)
	assert.Equal(t, "success", msg.Status)
	assert.Equal(t, "climate_mode", msg.ActiveMode)
	assert.Equal(t, []capability.IOKey{"P4", "P6"}, msg.Platforms[capability.PlatformClimate])
	assert.Empty(t, msg.Error)
	assert.Equal(t, Metrics{Received: 1, Published: 1}, b.Metrics())
}

func TestSnapshotBridge_BareNumberValues(t *testing.T) {
	_, client, _ := startedBridge(t)

	require.NoError(t, client.deliver(t, "devcaps/snapshot/SL_NATURE/kitchen", `{"P5": 1}`))

	_, msg := client.last(t)
	assert.Equal(t, "switch_mode", msg.ActiveMode)
}

func TestSnapshotBridge_DefaultFallback(t *testing.T) {
	_, client, _ := startedBridge(t)

	require.NoError(t, client.deliver(t, "devcaps/snapshot/SL_NATURE/hall", `{"P5": 9}`))

	_, msg := client.last(t)
	assert.Equal(t, "warning", msg.Status)
	assert.Equal(t, "switch_mode", msg.ActiveMode)
	assert.Equal(t, capability.ReasonDefaultMode, msg.Reason)
	assert.Contains(t, msg.Platforms, capability.PlatformSwitch)
}

func TestSnapshotBridge_UnknownDeviceType(t *testing.T) {
	_, client, r := startedBridge(t)

	require.NoError(t, client.deliver(t, "devcaps/snapshot/NOPE/garage", `{}`))

	_, msg := client.last(t)
	assert.Equal(t, "error", msg.Status)
	assert.Contains(t, msg.Error, "unknown device type")
	assert.Nil(t, msg.Platforms)
	assert.Equal(t, uint64(1), r.Stats().Unknown)
}

func TestSnapshotBridge_StaticDevice(t *testing.T) {
	_, client, _ := startedBridge(t)

	require.NoError(t, client.deliver(t, "devcaps/snapshot/SL_SW_IF3/porch", `{"L1": {"val": 1, "type": 129}}`))

	_, msg := client.last(t)
	assert.Equal(t, "success", msg.Status)
	assert.Empty(t, msg.ActiveMode)
	assert.Equal(t, []capability.IOKey{"L1", "L2", "L3"}, msg.Platforms[capability.PlatformSwitch])
}

func TestSnapshotBridge_RejectsBadInput(t *testing.T) {
	tests := []struct {
		name    string
		topic   string
		payload string
		wantErr error
	}{
		{"not json", "devcaps/snapshot/SL_NATURE/hall", `{"P5":`, ErrInvalidSnapshot},
		{"bad value type", "devcaps/snapshot/SL_NATURE/hall", `{"P5": "three"}`, ErrInvalidSnapshot},
		{"bad io key", "devcaps/snapshot/SL_NATURE/hall", `{"5P": 1}`, ErrInvalidSnapshot},
		{"array payload", "devcaps/snapshot/SL_NATURE/hall", `[1, 2]`, ErrInvalidSnapshot},
		{"bad topic", "devcaps/snapshot/SL_NATURE", `{}`, ErrInvalidTopic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, client, _ := startedBridge(t)

			err := client.deliver(t, tt.topic, tt.payload)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, client.published)
			assert.Equal(t, uint64(1), b.Metrics().DecodeErrors)
		})
	}
}

func TestSnapshotBridge_EmptyPayloadIgnored(t *testing.T) {
	b, client, _ := startedBridge(t)

	require.NoError(t, client.deliver(t, "devcaps/snapshot/SL_NATURE/hall", ""))

	assert.Empty(t, client.published)
	assert.Equal(t, Metrics{}, b.Metrics())
}

func TestSnapshotBridge_PublishError(t *testing.T) {
	b, client, _ := startedBridge(t)
	client.publishErr = mqtt.ErrNotConnected

	err := client.deliver(t, "devcaps/snapshot/SL_NATURE/hall", `{"P5": 1}`)
	assert.ErrorIs(t, err, mqtt.ErrNotConnected)
	assert.Equal(t, Metrics{Received: 1, PublishErrors: 1}, b.Metrics())
}

func TestSnapshotBridge_StartStop(t *testing.T) {
	client := newFakeMQTT()
	b, err := NewSnapshotBridge(SnapshotBridgeOptions{MQTT: client, Resolver: testResolver(t)})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Stop(), ErrNotStarted)

	require.NoError(t, b.Start())
	require.NoError(t, b.Start())
	assert.Len(t, client.handlers, 1)

	require.NoError(t, b.Stop())
	assert.Empty(t, client.handlers)
}

func TestSnapshotBridge_SubscribeError(t *testing.T) {
	client := newFakeMQTT()
	client.subscribeErr = mqtt.ErrSubscribeFailed
	b, err := NewSnapshotBridge(SnapshotBridgeOptions{MQTT: client, Resolver: testResolver(t)})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Start(), mqtt.ErrSubscribeFailed)
	assert.ErrorIs(t, b.Run(context.Background()), mqtt.ErrSubscribeFailed)
}

func TestSnapshotBridge_Run(t *testing.T) {
	client := newFakeMQTT()
	b, err := NewSnapshotBridge(SnapshotBridgeOptions{MQTT: client, Resolver: testResolver(t)})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		client.mu.Lock()
		defer client.mu.Unlock()
		return len(client.handlers) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, client.handlers)
}

func TestSnapshotBridge_ConcurrentMessages(t *testing.T) {
	b, client, r := startedBridge(t)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			payload := `{"P5": 1}`
			if i%2 == 1 {
				payload = `{"P5": 6}`
			}
			assert.NoError(t, client.deliver(t, "devcaps/snapshot/SL_NATURE/d", payload))
		}()
	}
	wg.Wait()

	assert.Equal(t, uint64(16), b.Metrics().Published)
	assert.Equal(t, uint64(16), r.Stats().ModeMatched)
}

func TestDecodeSnapshot(t *testing.T) {
	snapshot, err := DecodeSnapshot([]byte(`{"P5": {"val": 3, "type": 2, "v": 21.5}, "P6": 0}`))
	require.NoError(t, err)

	require.Len(t, snapshot, 2)
	assert.Equal(t, 3, snapshot["P5"].Val)
	assert.Equal(t, 2, snapshot["P5"].Type)
	require.NotNil(t, snapshot["P5"].V)
	assert.InDelta(t, 21.5, *snapshot["P5"].V, 1e-9)
	assert.Equal(t, capability.IOValue{}, snapshot["P6"])

	_, err = DecodeSnapshot([]byte(`null`))
	assert.NoError(t, err)
}

func TestNewResolutionMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 13, 0, 0, 0, time.FixedZone("CET", 3600))

	msg := NewResolutionMessage("X", "dev", capability.Failure(errors.New("boom")), at)
	assert.Equal(t, "error", msg.Status)
	assert.Equal(t, "boom", msg.Error)
	assert.Nil(t, msg.Platforms)
	assert.Equal(t, time.UTC, msg.Timestamp.Location())

	body, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.NotContains(t, string(body), "platforms")
	assert.NotContains(t, string(body), "active_mode")
}
