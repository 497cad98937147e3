package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix is the root of every devcaps topic.
const TopicPrefix = "devcaps"

// Topics provides builders for devcaps MQTT topics.
//
//	topics := mqtt.Topics{}
//	topics.Snapshot("SL_NATURE", "hall-panel")  // devcaps/snapshot/SL_NATURE/hall-panel
//	topics.Resolution("hall-panel")             // devcaps/resolution/hall-panel
type Topics struct{}

// Snapshot returns the topic a gateway publishes a device's IO snapshot on.
func (Topics) Snapshot(deviceType, deviceID string) string {
	return fmt.Sprintf("%s/snapshot/%s/%s", TopicPrefix, deviceType, deviceID)
}

// Resolution returns the topic the resolved configuration is published on.
func (Topics) Resolution(deviceID string) string {
	return fmt.Sprintf("%s/resolution/%s", TopicPrefix, deviceID)
}

// Status returns the retained online/offline status topic.
func (Topics) Status() string {
	return TopicPrefix + "/status"
}

// AllSnapshots matches snapshots for every device type and device.
//
// Pattern: devcaps/snapshot/+/+
func (Topics) AllSnapshots() string {
	return TopicPrefix + "/snapshot/+/+"
}

// AllResolutions matches published results for every device.
//
// Pattern: devcaps/resolution/+
func (Topics) AllResolutions() string {
	return TopicPrefix + "/resolution/+"
}

// AllTopics matches all devcaps traffic.
//
// Pattern: devcaps/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// ParseSnapshot extracts the device type and device id from a snapshot
// topic. ok is false for any other topic shape.
func (Topics) ParseSnapshot(topic string) (deviceType, deviceID string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefix+"/snapshot/")
	if !found {
		return "", "", false
	}
	deviceType, deviceID, found = strings.Cut(rest, "/")
	if !found || deviceType == "" || deviceID == "" || strings.Contains(deviceID, "/") {
		return "", "", false
	}
	return deviceType, deviceID, true
}
