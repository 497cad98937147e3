// Package mqtt provides the MQTT client used by the devcaps snapshot bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS validation and a payload size limit
//   - Subscriptions that are restored after a reconnect
//   - A retained status topic with Last Will for offline detection
//
// # Topics
//
//	devcaps/snapshot/{device_type}/{device_id}   IO snapshot in (JSON)
//	devcaps/resolution/{device_id}               resolution result out (JSON)
//	devcaps/status                               retained online/offline
//
// # Security Considerations
//
//   - Set cfg.Broker.TLS for anything beyond a local broker
//   - Credentials come from DEVCAPS_MQTT_USERNAME / DEVCAPS_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllSnapshots(), 1,
//	    func(topic string, payload []byte) error {
//	        deviceType, deviceID, _ := mqtt.Topics{}.ParseSnapshot(topic)
//	        ...
//	    })
package mqtt
