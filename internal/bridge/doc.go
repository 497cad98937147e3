// Package bridge connects the resolver to the outside world. Both adapters
// are optional and disabled by default.
//
// SnapshotBridge subscribes to IO snapshots over MQTT and publishes the
// resolved configuration of each device:
//
//	devcaps/snapshot/SL_NATURE/hall-panel    {"P5": {"val": 3, "type": 0}, "P6": 1}
//	devcaps/resolution/hall-panel            {"device_type": "SL_NATURE", "status": "success",
//	                                          "active_mode": "cool", "platforms": {...}}
//
// StatsExporter samples resolver and bridge counters on a fixed interval
// and writes them through a StatsWriter, normally the InfluxDB client.
package bridge
