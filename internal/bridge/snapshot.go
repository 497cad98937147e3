package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
	"github.com/nerrad567/gray-logic-devcaps/internal/infrastructure/mqtt"
)

// MQTTClient is the part of mqtt.Client the bridge uses.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Resolver answers capability queries. *resolver.Resolver and
// *resolver.Facade both satisfy it.
type Resolver interface {
	Resolve(deviceType string, snapshot capability.IOSnapshot) capability.Result
}

// Logger defines the logging interface used by the bridge.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// SnapshotBridgeOptions holds the dependencies of a SnapshotBridge.
type SnapshotBridgeOptions struct {
	MQTT     MQTTClient
	Resolver Resolver

	// QoS is used for both the subscription and published results.
	QoS byte

	// Logger is optional.
	Logger Logger
}

// SnapshotBridge resolves every IO snapshot received on
// devcaps/snapshot/{device_type}/{device_id} and publishes the result as a
// retained message on devcaps/resolution/{device_id}.
//
// Thread Safety: All methods are safe for concurrent use. Handlers may run
// on several paho goroutines at once.
type SnapshotBridge struct {
	mqtt     MQTTClient
	resolver Resolver
	qos      byte
	logger   Logger
	now      func() time.Time

	started bool
	mu      sync.Mutex

	received      atomic.Uint64
	published     atomic.Uint64
	decodeErrors  atomic.Uint64
	publishErrors atomic.Uint64
}

// NewSnapshotBridge creates a bridge. Call Start or Run to subscribe.
func NewSnapshotBridge(opts SnapshotBridgeOptions) (*SnapshotBridge, error) {
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}
	if opts.Resolver == nil {
		return nil, fmt.Errorf("resolver is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &SnapshotBridge{
		mqtt:     opts.MQTT,
		resolver: opts.Resolver,
		qos:      opts.QoS,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// Start subscribes to all snapshot topics. Calling it twice is a no-op.
func (b *SnapshotBridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	topic := mqtt.Topics{}.AllSnapshots()
	if err := b.mqtt.Subscribe(topic, b.qos, b.handleMessage); err != nil {
		return fmt.Errorf("subscribe to snapshots: %w", err)
	}
	b.started = true

	b.logger.Info("snapshot bridge started", "topic", topic)
	return nil
}

// Stop unsubscribes. It returns ErrNotStarted if Start never succeeded.
func (b *SnapshotBridge) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return ErrNotStarted
	}
	b.started = false

	if err := b.mqtt.Unsubscribe(mqtt.Topics{}.AllSnapshots()); err != nil {
		return fmt.Errorf("unsubscribe from snapshots: %w", err)
	}

	b.logger.Info("snapshot bridge stopped", "metrics", b.Metrics())
	return nil
}

// Run starts the bridge and blocks until ctx is cancelled, then stops it.
func (b *SnapshotBridge) Run(ctx context.Context) error {
	if err := b.Start(); err != nil {
		return err
	}
	<-ctx.Done()

	if err := b.Stop(); err != nil {
		b.logger.Warn("stopping snapshot bridge", "error", err)
	}
	return nil
}

// handleMessage is the MQTT handler for snapshot topics. Returned errors are
// logged by the MQTT client.
func (b *SnapshotBridge) handleMessage(topic string, payload []byte) error {
	deviceType, deviceID, ok := mqtt.Topics{}.ParseSnapshot(topic)
	if !ok {
		b.decodeErrors.Add(1)
		return fmt.Errorf("%w: %s", ErrInvalidTopic, topic)
	}

	// An empty payload clears a retained snapshot; there is nothing to resolve.
	if len(payload) == 0 {
		return nil
	}

	b.received.Add(1)

	snapshot, err := DecodeSnapshot(payload)
	if err != nil {
		b.decodeErrors.Add(1)
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	return b.publish(deviceType, deviceID, b.resolver.Resolve(deviceType, snapshot))
}

func (b *SnapshotBridge) publish(deviceType, deviceID string, res capability.Result) error {
	msg := NewResolutionMessage(deviceType, deviceID, res, b.now())

	switch res.Status {
	case capability.StatusWarning:
		b.logger.Debug("resolution fell back",
			"device_id", deviceID, "device_type", deviceType, "reason", res.Reason)
	case capability.StatusError:
		b.logger.Warn("resolution failed",
			"device_id", deviceID, "device_type", deviceType, "error", res.Err)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		b.publishErrors.Add(1)
		return fmt.Errorf("encoding resolution for %s: %w", deviceID, err)
	}

	if err := b.mqtt.Publish(mqtt.Topics{}.Resolution(deviceID), body, b.qos, true); err != nil {
		b.publishErrors.Add(1)
		return fmt.Errorf("publishing resolution for %s: %w", deviceID, err)
	}

	b.published.Add(1)
	return nil
}

// Metrics contains bridge counters for logging and stats export.
type Metrics struct {
	Received      uint64 `json:"snapshots_received"`
	Published     uint64 `json:"resolutions_published"`
	DecodeErrors  uint64 `json:"decode_errors"`
	PublishErrors uint64 `json:"publish_errors"`
}

// Metrics returns the current counters.
func (b *SnapshotBridge) Metrics() Metrics {
	return Metrics{
		Received:      b.received.Load(),
		Published:     b.published.Load(),
		DecodeErrors:  b.decodeErrors.Load(),
		PublishErrors: b.publishErrors.Load(),
	}
}
