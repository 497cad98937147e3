package influxdb

import (
	"math"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by devcaps.
const (
	MeasurementResolverStats = "resolver_stats"
	MeasurementCatalog       = "catalog_compile"
)

// WriteResolverStats records one sample of the resolver counters, tagged
// with the fingerprint of the table they were collected against.
//
// Example:
//
//	client.WriteResolverStats(table.Fingerprint(), map[string]uint64{
//	    "calls": 120, "mode_matched": 97, "no_match": 3,
//	}, time.Now())
func (c *Client) WriteResolverStats(fingerprint string, counters map[string]uint64, at time.Time) {
	if !c.IsConnected() || len(counters) == 0 {
		return
	}

	fields := make(map[string]any, len(counters))
	for name, v := range counters {
		fields[name] = clampInt64(v)
	}

	c.WritePointWithTime(MeasurementResolverStats, map[string]string{"table": fingerprint}, fields, at)
}

// CatalogSummary is the outcome of one catalog compile.
type CatalogSummary struct {
	Fingerprint string
	Source      string
	Valid       int
	Excluded    int
	Warnings    int
}

// WriteCatalogSummary records a compile outcome, typically once at startup.
func (c *Client) WriteCatalogSummary(s CatalogSummary, at time.Time) {
	c.WritePointWithTime(MeasurementCatalog,
		map[string]string{
			"table":  s.Fingerprint,
			"source": s.Source,
		},
		map[string]any{
			"valid":    s.Valid,
			"excluded": s.Excluded,
			"warnings": s.Warnings,
		},
		at,
	)
}

// WritePoint writes a custom point timestamped now.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]any) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with an explicit timestamp.
// Writes on a closed client are dropped.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]any, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
