package history

import (
	"context"
	"time"
)

// PointWriter writes one property value as a telemetry point and reports
// whether the value was accepted. *influxdb.Client implements it.
type PointWriter interface {
	WriteApplianceProperty(haID, applianceType, key string, value any, at time.Time) bool
}

// InfluxSink forwards numeric and boolean changes to InfluxDB. Other
// values, and removals, are skipped.
type InfluxSink struct {
	w PointWriter
}

// NewInfluxSink creates a sink writing through w.
func NewInfluxSink(w PointWriter) *InfluxSink {
	return &InfluxSink{w: w}
}

// Record writes c.New. Writes are asynchronous; failures surface through
// the client's error callback.
func (s *InfluxSink) Record(_ context.Context, c Change) error {
	if c.New == nil {
		return nil
	}
	s.w.WriteApplianceProperty(c.HaID, string(c.Type), c.Key, c.New, c.At)
	return nil
}
