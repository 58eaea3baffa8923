// Package mqtt wraps paho.mqtt.golang for the Home Connect bridge.
//
// It manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with QoS and payload size checks
//   - Subscriptions that are restored after a reconnect
//   - A retained bridge status topic with a Last Will for crash detection
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topics := client.Topics()
//	err = client.Subscribe(topics.AllApplianceCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        haID, _, _ := topics.ParseAppliance(topic)
//	        return handle(haID, payload)
//	    })
//
// Handlers run on paho's goroutines; a panicking handler is recovered and
// logged.
package mqtt
