package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Enabled: true,
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "devcaps-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
	}
}

// offlineClient returns a client that was never connected.
func offlineClient() *Client {
	return &Client{cfg: testConfig(), subscriptions: make(map[string]subscription)}
}

// =============================================================================
// Topic Tests
// =============================================================================

func TestTopicBuilders(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"Snapshot", Topics{}.Snapshot("SL_NATURE", "hall-panel"), "devcaps/snapshot/SL_NATURE/hall-panel"},
		{"Resolution", Topics{}.Resolution("hall-panel"), "devcaps/resolution/hall-panel"},
		{"Status", Topics{}.Status(), "devcaps/status"},
		{"AllSnapshots", Topics{}.AllSnapshots(), "devcaps/snapshot/+/+"},
		{"AllResolutions", Topics{}.AllResolutions(), "devcaps/resolution/+"},
		{"AllTopics", Topics{}.AllTopics(), "devcaps/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestParseSnapshot(t *testing.T) {
	tests := []struct {
		topic      string
		wantType   string
		wantDevice string
		wantOk     bool
	}{
		{"devcaps/snapshot/SL_NATURE/hall-panel", "SL_NATURE", "hall-panel", true},
		{Topics{}.Snapshot("SL_SW_IF3", "kitchen"), "SL_SW_IF3", "kitchen", true},
		{"devcaps/snapshot/SL_NATURE", "", "", false},
		{"devcaps/snapshot//hall-panel", "", "", false},
		{"devcaps/snapshot/SL_NATURE/", "", "", false},
		{"devcaps/snapshot/SL_NATURE/a/b", "", "", false},
		{"devcaps/resolution/hall-panel", "", "", false},
		{"other/snapshot/SL_NATURE/hall-panel", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			deviceType, deviceID, ok := Topics{}.ParseSnapshot(tt.topic)
			if ok != tt.wantOk || deviceType != tt.wantType || deviceID != tt.wantDevice {
				t.Errorf("ParseSnapshot(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.topic, deviceType, deviceID, ok, tt.wantType, tt.wantDevice, tt.wantOk)
			}
		})
	}
}

// =============================================================================
// Option Tests
// =============================================================================

func TestBuildClientOptions(t *testing.T) {
	t.Run("plain tcp", func(t *testing.T) {
		opts := buildClientOptions(testConfig())

		if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
			t.Errorf("Servers = %v, want [tcp://127.0.0.1:1883]", opts.Servers)
		}
		if opts.ClientID != "devcaps-test" {
			t.Errorf("ClientID = %q, want devcaps-test", opts.ClientID)
		}
		if opts.Username != "" {
			t.Errorf("Username = %q, want empty", opts.Username)
		}
		if !opts.AutoReconnect || !opts.CleanSession {
			t.Error("expected auto-reconnect and clean session")
		}
		if opts.TLSConfig != nil {
			t.Error("TLSConfig should be nil without TLS")
		}
	})

	t.Run("tls with credentials", func(t *testing.T) {
		cfg := testConfig()
		cfg.Broker.TLS = true
		cfg.Broker.Port = 8883
		cfg.Auth = config.MQTTAuthConfig{Username: "devcaps", Password: "secret"}

		opts := buildClientOptions(cfg)

		if opts.Servers[0].String() != "ssl://127.0.0.1:8883" {
			t.Errorf("Servers[0] = %v, want ssl://127.0.0.1:8883", opts.Servers[0])
		}
		if opts.Username != "devcaps" || opts.Password != "secret" {
			t.Errorf("credentials = %q/%q, want devcaps/secret", opts.Username, opts.Password)
		}
		if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
			t.Error("expected TLS config with minimum version")
		}
	})
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, "devcaps-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("expected retained will message")
	}
	if opts.WillTopic != "devcaps/status" {
		t.Errorf("WillTopic = %q, want devcaps/status", opts.WillTopic)
	}

	var payload statusPayload
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload.Status != statusOffline || payload.Reason != reasonUnexpected || payload.ClientID != "devcaps-test" {
		t.Errorf("will payload = %+v", payload)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	var online statusPayload
	if err := json.Unmarshal(buildStatusPayload(statusOnline, "devcaps", ""), &online); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if online.Status != "online" || online.Timestamp == "" {
		t.Errorf("online payload = %+v", online)
	}
	if strings.Contains(string(buildStatusPayload(statusOnline, "devcaps", "")), "reason") {
		t.Error("empty reason should be omitted")
	}
}

// =============================================================================
// Validation Tests (no broker)
// =============================================================================

func TestPublish_Validation(t *testing.T) {
	client := offlineClient()

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("{}"), 1, ErrInvalidTopic},
		{"invalid qos", "devcaps/test", []byte("{}"), 3, ErrInvalidQoS},
		{"oversized payload", "devcaps/test", make([]byte, maxPayloadSize+1), 1, ErrPublishFailed},
		{"not connected", "devcaps/test", []byte("{}"), 1, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribe_Validation(t *testing.T) {
	client := offlineClient()
	handler := func(string, []byte) error { return nil }

	tests := []struct {
		name    string
		topic   string
		qos     byte
		handler MessageHandler
		want    error
	}{
		{"empty topic", "", 1, handler, ErrInvalidTopic},
		{"invalid qos", Topics{}.AllSnapshots(), 5, handler, ErrInvalidQoS},
		{"nil handler", Topics{}.AllSnapshots(), 1, nil, ErrSubscribeFailed},
		{"not connected", Topics{}.AllSnapshots(), 1, handler, ErrNotConnected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Subscribe(tt.topic, tt.qos, tt.handler)
			if !errors.Is(err, tt.want) {
				t.Errorf("Subscribe() error = %v, want %v", err, tt.want)
			}
		})
	}

	if client.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0 after failed subscribes", client.SubscriptionCount())
	}
}

func TestUnsubscribe_Validation(t *testing.T) {
	client := offlineClient()

	if err := client.Unsubscribe(""); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Unsubscribe(\"\") error = %v, want ErrInvalidTopic", err)
	}
	if err := client.Unsubscribe("devcaps/test"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v, want ErrNotConnected", err)
	}
}

func TestOfflineClient(t *testing.T) {
	client := &Client{}

	if client.IsConnected() {
		t.Error("IsConnected() should be false for uninitialised client")
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v, want nil", err)
	}
	if err := client.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := client.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}

func TestQoS(t *testing.T) {
	if got := offlineClient().QoS(); got != 1 {
		t.Errorf("QoS() = %d, want 1", got)
	}
}

// =============================================================================
// Handler Wrapping Tests
// =============================================================================

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 1 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

type mockLogger struct {
	mu     sync.Mutex
	errors []string
	warns  []string
}

func (l *mockLogger) Error(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func (l *mockLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestWrapHandler(t *testing.T) {
	msg := fakeMessage{topic: "devcaps/snapshot/SL_NATURE/hall", payload: []byte(`{"P5":3}`)}

	t.Run("delivers topic and payload", func(t *testing.T) {
		client := offlineClient()
		var gotTopic, gotPayload string
		client.wrapHandler(func(topic string, payload []byte) error {
			gotTopic, gotPayload = topic, string(payload)
			return nil
		})(nil, msg)

		if gotTopic != msg.topic || gotPayload != `{"P5":3}` {
			t.Errorf("handler got (%q, %q)", gotTopic, gotPayload)
		}
	})

	t.Run("logs handler error", func(t *testing.T) {
		client := offlineClient()
		logger := &mockLogger{}
		client.SetLogger(logger)

		client.wrapHandler(func(string, []byte) error { return errors.New("bad snapshot") })(nil, msg)

		if len(logger.warns) != 1 {
			t.Errorf("warns = %v, want one entry", logger.warns)
		}
	})

	t.Run("recovers panic", func(t *testing.T) {
		client := offlineClient()
		logger := &mockLogger{}
		client.SetLogger(logger)

		client.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)

		if len(logger.errors) != 1 {
			t.Errorf("errors = %v, want one entry", logger.errors)
		}
	})

	t.Run("no logger", func(t *testing.T) {
		client := offlineClient()
		client.wrapHandler(func(string, []byte) error { panic("boom") })(nil, msg)
	})
}

func TestConnectionCallbacks(t *testing.T) {
	client := offlineClient()

	var lost error
	client.SetOnDisconnect(func(err error) { lost = err })

	client.handleDisconnect(errors.New("broker went away"))

	if lost == nil || lost.Error() != "broker went away" {
		t.Errorf("onDisconnect got %v", lost)
	}
	if client.IsConnected() {
		t.Error("IsConnected() = true after disconnect")
	}

	// An unconnected paho client rejects the status publish without blocking.
	client.client = pahomqtt.NewClient(pahomqtt.NewClientOptions())
	connected := 0
	client.SetOnConnect(func() { connected++ })

	client.handleConnect()
	client.handleConnect()

	if connected != 2 {
		t.Errorf("onConnect called %d times, want 2", connected)
	}
}
