// Package influxdb writes appliance telemetry to InfluxDB v2.
//
// It wraps influxdb-client-go with connection checks, batched non-blocking
// writes and an error callback.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteApplianceProperty(haID, "Oven", "Cooking.Oven.Status.CurrentCavityTemperature", 180.5, time.Now())
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Write failures are delivered asynchronously via SetOnError. Connection
// and health check errors are returned directly.
package influxdb
