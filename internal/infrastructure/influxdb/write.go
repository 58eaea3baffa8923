package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementApplianceProperty holds one point per observed property change.
const MeasurementApplianceProperty = "appliance_property"

// WriteApplianceProperty writes a numeric or boolean property value.
//
// Tags are the appliance id, the property key and the appliance type, all
// bounded by the number of appliances on the account. The field is "value"
// and always a float (see FieldValue). Values of any other kind are
// ignored; enum strings belong in the SQLite history instead.
//
// Example:
//
//	client.WriteApplianceProperty("SIEMENS-...", "Washer",
//	    "BSH.Common.Option.ProgramProgress", int64(42), at)
func (c *Client) WriteApplianceProperty(haID, applianceType, key string, value any, at time.Time) bool {
	field, ok := FieldValue(value)
	if !ok || !c.IsConnected() {
		return false
	}

	c.writeAPI.WritePoint(write.NewPoint(
		MeasurementApplianceProperty,
		map[string]string{
			"ha_id": haID,
			"key":   key,
			"type":  applianceType,
		},
		map[string]any{"value": field},
		at,
	))
	return true
}

// FieldValue converts a property value to the float64 stored in the
// "value" field. InfluxDB fixes a field's type per measurement and shard,
// so integers are widened and booleans become 1 or 0. Strings and other
// kinds are rejected.
func FieldValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int64:
		return float64(t), true
	case int:
		return float64(t), true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
