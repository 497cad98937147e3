package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-devcaps/internal/capability"
)

// ResolutionMessage is published after every snapshot.
// Topic: devcaps/resolution/{device_id}
type ResolutionMessage struct {
	DeviceID   string `json:"device_id"`
	DeviceType string `json:"device_type"`

	// Status is "success", "warning" or "error".
	Status string `json:"status"`

	ActiveMode string `json:"active_mode,omitempty"`

	// Reason names the fallback taken for "warning" results.
	Reason string `json:"reason,omitempty"`

	Error string `json:"error,omitempty"`

	// Platforms maps each active platform to its sorted IO keys.
	// Omitted for "error" results.
	Platforms map[capability.PlatformName][]capability.IOKey `json:"platforms,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewResolutionMessage flattens a resolution result for publishing.
func NewResolutionMessage(deviceType, deviceID string, res capability.Result, at time.Time) ResolutionMessage {
	msg := ResolutionMessage{
		DeviceID:   deviceID,
		DeviceType: deviceType,
		Status:     res.Status.String(),
		ActiveMode: res.ActiveMode,
		Reason:     res.Reason,
		Timestamp:  at.UTC(),
	}
	if res.Err != nil {
		msg.Error = res.Err.Error()
	}
	if res.OK() {
		msg.Platforms = res.Platforms.IOKeys()
	}
	return msg
}

// wireValue accepts both the full IO object and a bare number.
//
//	{"P5": {"val": 3, "type": 0}}
//	{"P5": 3}
type wireValue capability.IOValue

func (w *wireValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var v capability.IOValue
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*w = wireValue(v)
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("io value must be an object or integer: %w", err)
	}
	*w = wireValue{Val: n}
	return nil
}

// DecodeSnapshot parses a snapshot payload. IO keys are checked with the
// same rules the compiler applies to catalog entries.
func DecodeSnapshot(payload []byte) (capability.IOSnapshot, error) {
	var raw map[capability.IOKey]wireValue
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}

	snapshot := make(capability.IOSnapshot, len(raw))
	for key, v := range raw {
		if err := capability.ValidateIOKey(key); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		snapshot[key] = capability.IOValue(v)
	}
	return snapshot, nil
}
