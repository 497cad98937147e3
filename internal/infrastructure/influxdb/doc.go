// Package influxdb exports devcaps statistics to InfluxDB v2.
//
// It wraps influxdb-client-go with connection management and two
// measurements:
//
//	resolver_stats    resolver outcome counters, tagged by table fingerprint
//	catalog_compile   valid/excluded/warning counts of a catalog compile
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteResolverStats(table.Fingerprint(), counters, time.Now())
//
// Writes are non-blocking and batched per influxdb.batch_size and
// influxdb.flush_interval. Batch failures are delivered to the SetOnError
// callback; connection errors are returned directly.
package influxdb
